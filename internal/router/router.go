package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/forum-archive-api/api/swagger"
	"github.com/noah-isme/forum-archive-api/internal/handler"
	"github.com/noah-isme/forum-archive-api/internal/middleware"
	"github.com/noah-isme/forum-archive-api/internal/service"
	"github.com/noah-isme/forum-archive-api/pkg/config"
	"github.com/noah-isme/forum-archive-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/forum-archive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/forum-archive-api/pkg/middleware/requestid"
)

// Deps bundles what the HTTP layer needs.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Auth     middleware.TokenValidator
	Archives *handler.ArchiveHandler
	Metrics  *service.MetricsService
	DB       handler.Pinger
}

// New builds the gin engine with every route registered.
func New(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.Logger))
	r.Use(corsmiddleware.New(d.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.Metrics))

	ops := handler.NewMetricsHandler(d.Metrics, d.DB)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if d.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.Config.APIPrefix)
	archives := api.Group("/archives/jobs", middleware.JWT(d.Auth))
	archives.POST("", d.Archives.CreateJob)
	archives.GET("", d.Archives.ListJobs)
	archives.GET("/:id", d.Archives.GetJob)
	archives.GET("/:id/items", d.Archives.ListItems)
	archives.GET("/:id/export", d.Archives.Export)

	return r
}
