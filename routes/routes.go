package routes

import (
	"context"
	"net/http"
	"time"

	"community-help/controllers"
	middlewares "community-help/middleware"
	"community-help/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps is everything the router needs from main.
type Deps struct {
	Auth        *controllers.AuthController
	Reports     *controllers.ReportController
	Map         *controllers.MapController
	Tokens      middlewares.Authenticator
	Limiter     *middlewares.RateLimiter
	CORSOrigins []string
	// Ping checks backing services for /healthz. Nil means always healthy.
	Ping func(ctx context.Context) error
}

func SetupRoutes(r *gin.Engine, d Deps) {
	r.Use(middlewares.RequestLogger())
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	r.GET("/healthz", healthz(d.Ping))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	SetupAuthRoutes(r, d)
	SetupReportRoutes(r, d)
	SetupAdminRoutes(r, d)
	SetupWorkerRoutes(r, d)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			// browsers refuse credentials with a wildcard origin
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func healthz(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
