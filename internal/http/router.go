// Package httpapi wires the Gin transport to the webhook and admin handlers
// and the shared middleware stack: tracing, correlation ids, redacted access
// logs, panic recovery, metrics, CORS and security headers.
//
// Routes (relative to API_BASE_PATH, "/" by default):
//
//	POST /webhook   ungated; idempotency, never rate limited
//	GET  /config    basic auth, rate limit
//	POST /config    basic auth, rate limit
//	GET  /logs      basic auth, rate limit, gzip
//
// plus /health, /metrics and, when enabled, /swagger/*.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-reqlarr/internal/config"
	"github.com/tbourn/go-reqlarr/internal/http/handlers"
	"github.com/tbourn/go-reqlarr/internal/http/middleware"
	"github.com/tbourn/go-reqlarr/internal/repo"
	"github.com/tbourn/go-reqlarr/internal/services"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// Deps are the collaborators the routes need. DB backs the idempotency
// lookup and the health check.
type Deps struct {
	DB       *gorm.DB
	Ledger   handlers.LedgerReader
	Settings handlers.SettingsStore
	Notifier handlers.WebhookNotifier
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. CORS and security headers
//
// The admin group runs basic auth before the rate limiter so buckets are per
// admin. The webhook has no limiter: every Download event must be recorded.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", healthHandler(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Ledger, deps.Settings, deps.Notifier)
	base := groupWithPrefix(r, cfg.APIBasePath)

	base.POST("/webhook",
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{Scope: services.IdempotencyScopeWebhook, MaxLen: 200},
			idempotencyLookup(deps.DB),
		),
		h.Webhook,
	)

	adminLimiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAdminOrIP())
	admin := base.Group("",
		gin.BasicAuthForRealm(gin.Accounts{cfg.Admin.Username: cfg.Admin.Password}, "reqlarr"),
		adminLimiter.Handler(),
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
	)
	{
		admin.GET("/config", h.GetConfig)
		admin.POST("/config", h.UpdateConfig)
		admin.GET("/logs", gzip.Gzip(gzip.DefaultCompression), h.GetLogs)
	}
}

// idempotencyLookup reports whether a webhook key already produced a record.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
		if db == nil {
			return false, nil
		}
		rec, err := repo.GetIdempotency(ctx, db, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return rec != nil, nil
	}
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
				err = sqlDB.PingContext(ctx)
				cancel()
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey, "If-None-Match"}
	expose := []string{"X-Request-ID", "Content-Length", "ETag"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins: true,
				AllowMethods:    []string{"GET", "POST", "OPTIONS"},
				AllowHeaders:    allowHeaders,
				ExposeHeaders:   expose,
				MaxAge:          12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  allowHeaders,
			ExposeHeaders: expose,
			MaxAge:        12 * time.Hour,
		}),
	}
}

// limitBody caps request bodies with http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
