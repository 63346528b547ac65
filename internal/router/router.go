package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/medisync/clinic-api/internal/config"
	audithandler "github.com/medisync/clinic-api/internal/handler/audit"
	authhandler "github.com/medisync/clinic-api/internal/handler/auth"
	healthhandler "github.com/medisync/clinic-api/internal/handler/health"
	orghandler "github.com/medisync/clinic-api/internal/handler/organization"
	userhandler "github.com/medisync/clinic-api/internal/handler/user"
	"github.com/medisync/clinic-api/internal/middleware"
)

type Router struct {
	engine   *gin.Engine
	authmw   *middleware.AuthMiddleware
	tenantmw *middleware.TenantMiddleware
	authH    *authhandler.Handler
	orgH     *orghandler.Handler
	userH    *userhandler.Handler
	auditH   *audithandler.Handler
	healthH  *healthhandler.Handler
	cfg      *config.Config
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

func NewRouter(
	authmw *middleware.AuthMiddleware,
	tenantmw *middleware.TenantMiddleware,
	authH *authhandler.Handler,
	orgH *orghandler.Handler,
	userH *userhandler.Handler,
	auditH *audithandler.Handler,
	healthH *healthhandler.Handler,
	cfg *config.Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterValidators()
	engine := gin.New()

	r := &Router{
		engine:   engine,
		authmw:   authmw,
		tenantmw: tenantmw,
		authH:    authH,
		orgH:     orgH,
		userH:    userH,
		auditH:   auditH,
		healthH:  healthH,
		cfg:      cfg,
		metrics:  initRouterMetrics(),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: 30 * time.Second}),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig()),
	)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Security.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Security.AllowedOrigins
	}
	engine.Use(middleware.CORS(corsConfig))

	if cfg.Security.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.Security.RequestsPerSecond),
			Burst: cfg.Security.Burst,
		})
		engine.Use(limiter.RateLimit())
	}

	return r
}

// Setup mounts all routes. Origin-based tenant resolution runs on every
// API request; principal-based resolution runs inside the membership
// gate, which is attached per route group so cross-tenant admin routes
// can opt out explicitly.
func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.healthH.RegisterRoutes(&r.engine.RouterGroup)

	api := r.engine.Group(r.cfg.Server.APIPrefix)
	api.Use(middleware.NoStore())
	api.Use(middleware.Compress(middleware.DefaultCompressConfig()))
	api.Use(r.tenantmw.Resolve())

	r.authH.RegisterRoutes(api, r.authmw)
	r.orgH.RegisterRoutes(api, r.authmw, r.tenantmw)
	r.userH.RegisterRoutes(api, r.authmw, r.tenantmw)
	r.auditH.RegisterRoutes(api, r.authmw, r.tenantmw)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics() *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		}, []string{"method", "path", "status"}),
		requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		errorTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "path", "status"}),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		}
	}
}
