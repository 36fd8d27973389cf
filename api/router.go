package api

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
)

// HealthCheck reports the readiness of one dependency.
type HealthCheck func(ctx context.Context) error

type RouterDeps struct {
	Flights  *FlightHandler
	Bookings *BookingHandler
	Tokens   *auth.TokenService
	Logger   logrus.FieldLogger
	Health   map[string]HealthCheck
}

func NewRouter(cfg config.HTTPConfig, deps RouterDeps) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(deps.Logger))
	router.Use(Timeout(cfg.RequestTimeout()))

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
			MaxAge:        12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler(deps.Health))

	if cfg.SwaggerDir != "" {
		router.StaticFile("/openapi.json", filepath.Join(cfg.SwaggerDir, "swagger.json"))
		router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/openapi.json"))))
	}

	v1 := router.Group("/v1")
	authenticate := Authenticate(deps.Tokens, deps.Logger)
	deps.Flights.Register(v1.Group("/flights"), authenticate, RequireAdmin())
	deps.Bookings.Register(v1.Group("/bookings", authenticate))

	return router
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": result})
	}
}
