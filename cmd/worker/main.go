package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/medisync/clinic-api/internal/config"
	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/repository/postgres"
	"github.com/medisync/clinic-api/internal/worker"
	"github.com/medisync/clinic-api/pkg/logger"
	redisbroker "github.com/medisync/clinic-api/pkg/messaging/redis"
)

// The worker binary owns audit maintenance: it retires rows past the
// retention horizon and tails the security event channel so a single
// process is the forwarding point for downstream log collectors.
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

	auditRepo := postgres.NewAuditRepository(postgres.NewBaseRepository(db, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanup := worker.NewAuditCleanupWorker(auditRepo, cfg.Audit.Retention, cfg.Audit.CleanupInterval, zl)
	go cleanup.Start(ctx)

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	events, err := broker.Subscribe(ctx, cfg.Audit.Channel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to audit channel")
	}

	go func() {
		for payload := range events {
			var entry model.AuditLog
			if err := json.Unmarshal(payload, &entry); err != nil {
				zl.Warn().Err(err).Msg("malformed audit event")
				continue
			}
			zl.Info().
				Str("action", entry.Action).
				Str("entity_type", entry.EntityType).
				Str("user_id", entry.UserID.String()).
				Str("organization_id", entry.OrganizationID.String()).
				Str("ip_address", entry.IPAddress).
				Msg("security event")
		}
	}()

	zl.Info().Str("channel", cfg.Audit.Channel).Msg("audit worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info().Msg("audit worker exiting")
}
