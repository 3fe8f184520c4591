// Package httpapi builds the Gin engine that serves the vote API: the shared
// middleware chain, the operational endpoints and the public routes.
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

	"github.com/tbourn/go-comment-rating/internal/config"
	"github.com/tbourn/go-comment-rating/internal/domain"
	"github.com/tbourn/go-comment-rating/internal/http/handlers"
	"github.com/tbourn/go-comment-rating/internal/http/middleware"
	"github.com/tbourn/go-comment-rating/internal/i18n"
	"github.com/tbourn/go-comment-rating/internal/repo"
	"github.com/tbourn/go-comment-rating/internal/services"
)

// idempotencyLookup reports whether key was already used by voter on
// commentID. The vote transaction makes the authoritative check; this one
// only decides whether the rate limiter is skipped.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, voter domain.VoterKey, commentID int64, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, voter, commentID, key, now)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		}
		return false, err
	}
}

// RegisterRoutes installs the middleware chain, the operational endpoints and
// the vote API under cfg.APIBasePath.
//
// Tracing and the request id come first so every later log line and span
// carries them. Recovery sits inside the access logger so a panic is still
// logged with its final status. CORS and security headers run before identity
// resolution so early rejections carry them too.
//
// POST /votes verifies the nonce first, so a forged request has no effect on
// the voter's rate limit. The idempotency validator runs before the per-voter
// rate limiter: a replayed request is not charged twice.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, nonces handlers.NonceIssuer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{MaskHeaders: []string{"X-API-Key"}}),
		middleware.Recovery(),
		limitBody(maxBodyBytes),
		middleware.Metrics(),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(
		middleware.SecurityHeaders(middleware.SecurityOptions{
			EnableHSTS:     cfg.Security.EnableHSTS,
			HSTSMaxAge:     cfg.Security.HSTSMaxAge,
			FrameAncestors: cfg.CORS.AllowedOrigins,
		}),
		middleware.Locale(i18n.Parse(cfg.DefaultLocale)),
		middleware.Session(middleware.SessionOptions{
			CookieName: cfg.Nonce.SessionCookie,
			Secure:     cfg.Nonce.CookieSecure,
		}),
		middleware.Auth(cfg.JWTSecret),
		middleware.Voter(),
	)

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, i18n.MsgRouteNotFound)
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, i18n.MsgMethodNotAllow)
	})

	r.GET("/health", health(db))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(
		services.NewVoteService(db, cfg.IdempotencyTTL),
		nonces,
		handlers.Options{FailureStatusOK: cfg.FailureStatusOK},
	)
	idem := middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idempotencyLookup(db))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByVoter())

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.POST("/votes", h.RequireNonce(), idem, rl.Handler(), h.Vote)
	api.GET("/votes/nonce", h.Nonce)
	api.GET("/comments/:id/votes", h.VoteState)
	api.GET("/comments/:id/widget", h.Widget)
}

// maxBodyBytes caps request bodies. A vote form is a few dozen bytes.
const maxBodyBytes = 1 << 20

var (
	corsMethods       = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowHeaders  = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderNonce, middleware.HeaderIdempotencyKey}
	corsExposeHeaders = []string{"X-Request-ID", "Content-Length", "Idempotency-Replayed"}
)

// corsMiddleware allows any origin without credentials when origins is empty.
// Otherwise only the listed origins are allowed, with credentials so the
// embedding page can forward the session cookie.
//
// The cors package skips requests whose Origin matches the Host, and sends
// nothing without an Origin header; the leading handler covers both cases.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:  corsMethods,
		AllowHeaders:  corsAllowHeaders,
		ExposeHeaders: corsExposeHeaders,
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		conf.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Header("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(conf),
		}
	}

	conf.AllowOrigins = origins
	conf.AllowCredentials = true
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Credentials", "true")
				c.Writer.Header().Add("Vary", "Origin")
			}
			c.Next()
		},
		cors.New(conf),
	}
}

// health answers 200 while the store responds to a ping.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := pingDB(c.Request.Context(), db); err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("no database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// limitBody makes body reads past n bytes fail.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "/" {
		prefix = ""
	}
	return r.Group(prefix)
}
