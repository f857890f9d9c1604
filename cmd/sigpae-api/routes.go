package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sigpae-api/internal/handler"
	"github.com/noah-isme/sigpae-api/internal/middleware"
	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/service"
	"github.com/noah-isme/sigpae-api/pkg/config"
	"github.com/noah-isme/sigpae-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sigpae-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sigpae-api/pkg/middleware/requestid"
)

type routeDeps struct {
	tokens    middleware.TokenValidator
	metrics   *service.MetricsService
	requests  *handler.RequestHandler
	workflows *handler.WorkflowHandler
	calendar  *handler.CalendarHandler
	probes    *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics, "/health", "/ready", "/metrics"))

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.tokens))

	requests := api.Group("/requests")
	requests.POST("", deps.requests.Create)
	requests.GET("", deps.requests.List)
	requests.GET("/export", deps.requests.Export)
	requests.GET("/:id", deps.requests.Get)
	requests.POST("/:id/transitions", deps.requests.Transition)
	requests.GET("/:id/events", deps.requests.Events)
	requests.GET("/:id/history", deps.requests.History)
	requests.GET("/:id/history/verify", deps.requests.VerifyHistory)

	api.GET("/workflows/:variant", deps.workflows.Definition)
	api.GET("/calendar/non-instructional-days", deps.calendar.List)

	sweeps := api.Group("/sweeps", middleware.RequireRoles(models.RoleCODAE))
	sweeps.GET("", deps.workflows.Sweeps)
	sweeps.POST("/:name", deps.workflows.RunSweep)

	return r
}
