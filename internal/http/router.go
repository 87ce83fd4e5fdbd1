// Package httpapi wires the HTTP transport (Gin) to the todo service,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
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

	"github.com/tbourn/go-todos-backend/docs"
	"github.com/tbourn/go-todos-backend/internal/config"
	"github.com/tbourn/go-todos-backend/internal/domain"
	"github.com/tbourn/go-todos-backend/internal/http/handlers"
	"github.com/tbourn/go-todos-backend/internal/http/middleware"
	"github.com/tbourn/go-todos-backend/internal/identity"
	"github.com/tbourn/go-todos-backend/internal/repo"
	"github.com/tbourn/go-todos-backend/internal/services"
)

// todoRepoShim adapts the repository free functions to the services.TodoRepo
// interface expected by the TodoService.
type todoRepoShim struct{}

func (todoRepoShim) CreateTodo(ctx context.Context, db *gorm.DB, t *domain.Todo) error {
	return repo.CreateTodo(ctx, db, t)
}

func (todoRepoShim) GetTodo(ctx context.Context, db *gorm.DB, id string) (*domain.Todo, error) {
	return repo.GetTodo(ctx, db, id)
}

func (todoRepoShim) ListTodos(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Todo, error) {
	return repo.ListTodos(ctx, db, ownerID)
}

func (todoRepoShim) CountTodos(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	return repo.CountTodos(ctx, db, ownerID)
}

func (todoRepoShim) ListTodosPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Todo, error) {
	return repo.ListTodosPage(ctx, db, ownerID, offset, limit)
}

func (todoRepoShim) UpdateTodoFields(ctx context.Context, db *gorm.DB, id, title, description string, isCompleted bool) error {
	return repo.UpdateTodoFields(ctx, db, id, title, description, isCompleted)
}

func (todoRepoShim) SetTodoCompleted(ctx context.Context, db *gorm.DB, id string, completed bool) error {
	return repo.SetTodoCompleted(ctx, db, id, completed)
}

func (todoRepoShim) DeleteTodo(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteTodo(ctx, db, id)
}

func (todoRepoShim) TodosStats(ctx context.Context, db *gorm.DB, ownerID string) (int64, *time.Time, error) {
	return repo.TodosStats(ctx, db, ownerID)
}

func (todoRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, userID, scope, key, now)
}

func (todoRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, todoID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, scope, key, todoID, status, ttl)
}
func (todoRepoShim) DeleteIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, todoID string) error {
	return repo.DeleteIdempotency(ctx, db, userID, scope, key, todoID)
}

// corsConfig allows every origin when none are configured. Credentials are
// never allowed: the API authenticates with bearer tokens, not cookies.
func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "Location", "ETag", "X-Total-Count", "X-Total-Pages", "Idempotency-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the authenticated todo API under cfg.APIBasePath.
//
// Global middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id and seed the request logger
//  3. RedactingLogger: structured access logs, Authorization masked
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. gzip
//  7. Metrics
//  8. CORS and security headers
//
// The API group then runs Authenticate, IdempotencyValidator (needs the
// caller) and the per-user RateLimiter (honors the replay bypass).
func RegisterRoutes(r *gin.Engine, db *gorm.DB, verifier identity.Verifier, cfg config.Config, checks ...HealthCheck) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(limitBody(maxBody))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	// Todo payloads are per-user; shared caches must not keep them.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		PrivateCache: true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", healthHandler(db, checks...))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	todoSvc := services.NewTodoService(db, todoRepoShim{})
	if cfg.IdempotencyTTL > 0 {
		todoSvc.IdempotencyTTL = cfg.IdempotencyTTL
	}
	h := handlers.New(todoSvc)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.Authenticate(verifier),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)),
		rl.Handler(),
	)
	{
		api.GET("/todos", h.ListTodos)
		api.GET("/todos/:id", h.GetTodo)
		api.POST("/todos", h.CreateTodo)
		api.PUT("/todos/:id", h.UpdateTodo)
		api.DELETE("/todos/:id", h.DeleteTodo)
		api.PATCH("/todos/:id/toggle", h.ToggleTodo)

		api.GET("/auth/validate", h.ValidateAuth)
	}
}

// idempotencyLookup reports whether the caller already used key for a
// create. A missing record is not an error.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, userID, services.IdempotencyScopeCreate, key, now)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
}

// HealthCheck is an optional dependency pinged by /health next to the store,
// such as the token cache.
type HealthCheck struct {
	Name string
	Ping func(context.Context) error
}

// healthHandler pings the store and every check so orchestrators can tell a
// wedged dependency from a live process.
func healthHandler(db *gorm.DB, checks ...HealthCheck) gin.HandlerFunc {
	checks = append([]HealthCheck{{Name: "store", Ping: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}}, checks...)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(gin.H, len(checks))
		for _, hc := range checks {
			if err := hc.Ping(ctx); err != nil {
				middleware.LoggerFrom(c).Warn().Err(err).Str("dependency", hc.Name).Msg("health: ping failed")
				deps[hc.Name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[hc.Name] = "ok"
		}
		body := gin.H{"status": "ok", "checks": deps}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
