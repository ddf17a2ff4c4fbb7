package cmd

import (
	"github.com/vibast-solutions/ms-go-skywatch/app/apierror"
	"github.com/vibast-solutions/ms-go-skywatch/app/controller"
	"github.com/vibast-solutions/ms-go-skywatch/app/metrics"
	"github.com/vibast-solutions/ms-go-skywatch/app/middleware"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"
	"github.com/vibast-solutions/ms-go-skywatch/config"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type httpDeps struct {
	gateway         *service.Gateway
	userAuthService service.UserAuthService
	apiKeyService   service.APIKeyService
	sightingService service.SightingService
	// registry is nil when metrics are disabled.
	registry *prometheus.Registry
}

func newHTTPServer(cfg *config.Config, deps httpDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apierror.HTTPErrorHandler(cfg.Debug())

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogHost:      true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			if key, ok := middleware.APIKeyFromContext(c); ok {
				fields["api_key_id"] = key.ID
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.HeaderAPIKey},
		ExposeHeaders: []string{echo.HeaderRetryAfter, echo.HeaderXRequestID},
	}))
	e.Use(middleware.NewAPIKeyMiddleware(deps.gateway).Gateway)
	// Handler panics become errors the gateway records as 500.
	e.Use(echomiddleware.Recover())

	healthController := controller.NewHealthController(e.Routes)
	userAuthController := controller.NewUserAuthController(deps.userAuthService)
	apiKeyController := controller.NewAPIKeyController(deps.apiKeyService)
	usageController := controller.NewUsageController(deps.apiKeyService)
	sightingController := controller.NewSightingController(deps.sightingService)
	authMiddleware := middleware.NewAuthMiddleware(deps.userAuthService)

	e.GET("/", healthController.Landing)
	e.GET("/health", healthController.Health)
	e.GET("/docs", healthController.Docs)
	if deps.registry != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(deps.registry)))
	}

	auth := e.Group("/v1/auth")
	auth.POST("/register", userAuthController.Register)
	auth.POST("/login", userAuthController.Login)
	auth.GET("/me", userAuthController.Me, authMiddleware.RequireAuth)

	keys := auth.Group("/keys", authMiddleware.RequireAuth)
	keys.GET("", apiKeyController.List)
	keys.POST("", apiKeyController.Create)
	keys.POST("/:id/regenerate", apiKeyController.Regenerate)
	keys.DELETE("/:id", apiKeyController.Delete)

	auth.GET("/usage", usageController.Stats)
	auth.GET("/usage/history", usageController.History)

	sightings := e.Group("/v1/sightings")
	sightings.GET("", sightingController.List)
	sightings.GET("/stats", sightingController.ShapeStats, middleware.RequireTier(tier.Basic))
	sightings.GET("/:id", sightingController.Get)

	return e
}
