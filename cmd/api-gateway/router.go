package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sia-krs-api/internal/handler"
	"github.com/noah-isme/sia-krs-api/internal/middleware"
	"github.com/noah-isme/sia-krs-api/internal/models"
	"github.com/noah-isme/sia-krs-api/internal/service"
	"github.com/noah-isme/sia-krs-api/pkg/config"
	"github.com/noah-isme/sia-krs-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sia-krs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sia-krs-api/pkg/middleware/requestid"
)

type routeDeps struct {
	verifier *service.TokenVerifier
	metrics  *service.MetricsService
	krs      *handler.KRSHandler
	admin    *handler.KRSAdminHandler
	ops      *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.verifier))

	student := api.Group("/krs", middleware.RequireStudent())
	{
		student.GET("", deps.krs.Summary)
		student.GET("/offerings", deps.krs.Offerings)
		student.POST("/selections", deps.krs.Select)
		student.DELETE("/selections/:id", deps.krs.Deselect)
		student.POST("/submit", deps.krs.Submit)
	}

	admin := api.Group("/admin/krs", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	{
		admin.GET("/submissions", deps.admin.Submissions)
		admin.GET("/batch/catalog", deps.admin.BatchCatalog)
		admin.POST("/batch/catalog/refresh", deps.admin.RefreshCatalog)
		admin.GET("/batch/unenrolled", deps.admin.BatchUnenrolled)
		admin.GET("/batch/cohort", deps.admin.BatchCohort)
		admin.POST("/batch/commit", deps.admin.BatchCommit)
		admin.GET("/:studentId", deps.admin.StudentSummary)
		admin.POST("/:studentId/approve", deps.admin.Approve)
		admin.POST("/:studentId/reject", deps.admin.Reject)
	}

	return r
}
