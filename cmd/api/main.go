package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medisync/clinic-api/internal/auth/attempt"
	"github.com/medisync/clinic-api/internal/auth/rbac"
	"github.com/medisync/clinic-api/internal/auth/session"
	"github.com/medisync/clinic-api/internal/config"
	"github.com/medisync/clinic-api/internal/email"
	audithandler "github.com/medisync/clinic-api/internal/handler/audit"
	authhandler "github.com/medisync/clinic-api/internal/handler/auth"
	healthhandler "github.com/medisync/clinic-api/internal/handler/health"
	orghandler "github.com/medisync/clinic-api/internal/handler/organization"
	userhandler "github.com/medisync/clinic-api/internal/handler/user"
	"github.com/medisync/clinic-api/internal/middleware"
	"github.com/medisync/clinic-api/internal/repository/postgres"
	"github.com/medisync/clinic-api/internal/router"
	auditService "github.com/medisync/clinic-api/internal/service/audit"
	authService "github.com/medisync/clinic-api/internal/service/auth"
	orgService "github.com/medisync/clinic-api/internal/service/organization"
	userService "github.com/medisync/clinic-api/internal/service/user"
	"github.com/medisync/clinic-api/internal/tenant"
	"github.com/medisync/clinic-api/internal/worker"
	"github.com/medisync/clinic-api/pkg/logger"
	"github.com/medisync/clinic-api/pkg/messaging"
	redisbroker "github.com/medisync/clinic-api/pkg/messaging/redis"
	"github.com/medisync/clinic-api/pkg/metrics"
	"github.com/medisync/clinic-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	zl := appLogger.Zerolog()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("clinic_api", "core")

	base := postgres.NewBaseRepository(db, m)
	userRepo := postgres.NewUserRepository(base)
	orgRepo := postgres.NewOrganizationRepository(base)
	tokenRepo := postgres.NewTokenRepository(base)
	rbacRepo := postgres.NewRBACRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	// The broker is optional; audit events still reach the database
	// when redis is down.
	var broker messaging.Broker
	if b, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, zl); err != nil {
		zl.Warn().Err(err).Msg("redis unavailable, audit fan-out disabled")
	} else {
		broker = b
		defer broker.Close()
	}

	recorder := auditService.NewRecorder(auditRepo, broker, cfg.Audit.Channel, zl, m)

	tracker := attempt.NewTracker(attempt.Config{
		Window:     cfg.Auth.RateLimitWindow,
		Threshold:  cfg.Auth.RateLimitThreshold,
		MaxEntries: cfg.Auth.AttemptHistoryCap,
	}, *zl)
	stopCleanup := make(chan struct{})
	tracker.StartCleanup(5*time.Minute, stopCleanup)
	defer close(stopCleanup)

	sessions := session.NewManager(session.Config{
		InactivityTimeout: cfg.Auth.SessionTimeout,
	}, *zl, m.ActiveSessions, m.SessionsExpired)

	overrides, err := rbacRepo.LoadOverrides(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load permission overrides")
	}
	evaluator := rbac.NewEvaluator(overrides)

	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost)
	emailSvc := email.NewService(cfg.SMTP, zl)

	authSvc := authService.NewService(userRepo, tokenRepo, tracker, sessions, hasher, emailSvc, recorder, m, zl, cfg.Auth)
	orgSvc := orgService.NewService(orgRepo, recorder)
	userSvc := userService.NewService(userRepo, hasher, recorder)

	resolver := tenant.NewResolver(orgRepo, cfg.Server.ApexDomain, *zl)

	authmw := middleware.NewAuthMiddleware(sessions, evaluator, cfg.Auth.SessionCookieName, m)
	tenantmw := middleware.NewTenantMiddleware(resolver, recorder, m)

	r := router.NewRouter(
		authmw,
		tenantmw,
		authhandler.NewHandler(authSvc, cfg.Auth.SessionCookieName),
		orghandler.NewHandler(orgSvc),
		userhandler.NewHandler(userSvc),
		audithandler.NewHandler(recorder),
		healthhandler.NewHandler(db),
		cfg,
	)
	r.Setup()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	cleanup := worker.NewAuditCleanupWorker(auditRepo, cfg.Audit.Retention, cfg.Audit.CleanupInterval, zl)
	go cleanup.Start(workerCtx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zl.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	zl.Info().Msg("server exited properly")
}
