package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/membership-consent-api/internal/app"
	"github.com/noah-isme/membership-consent-api/internal/handler"
	"github.com/noah-isme/membership-consent-api/internal/middleware"
	"github.com/noah-isme/membership-consent-api/internal/models"
	"github.com/noah-isme/membership-consent-api/pkg/cache"
	"github.com/noah-isme/membership-consent-api/pkg/config"
	"github.com/noah-isme/membership-consent-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/membership-consent-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/membership-consent-api/pkg/middleware/requestid"
)

func newRouter(c *app.Container) *gin.Engine {
	cfg := c.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics))

	checks := map[string]handler.Pinger{"postgres": c.DB}
	if c.Redis != nil {
		checks["redis"] = handler.PingFunc(cache.Ping(c.Redis))
	}
	ops := handler.NewMetricsHandler(c.Metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	documents := handler.NewLegalDocumentHandler(c.Documents, c.Sync)
	membership := handler.NewMembershipHandler(c.Calculator, nil)
	consents := handler.NewConsentHandler(c.Consents)
	compliance := handler.NewComplianceHandler(c.Compliance)

	admin := middleware.RequireRoles(models.RoleAdmin)
	board := middleware.RequireRoles(models.RoleAdmin, models.RoleBoard)
	selfOrBoard := middleware.RBAC(string(models.RoleAdmin), string(models.RoleBoard), middleware.RoleSelf)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(c.Tokens))

	docs := api.Group("/legal-documents")
	docs.GET("", board, documents.List)
	docs.POST("", admin, documents.Create)
	docs.POST("/sync", admin, documents.SyncAll)
	docs.GET("/updates", admin, documents.CheckForUpdates)
	docs.GET("/required-versions", documents.RequiredVersions)
	docs.GET("/:id", board, documents.Get)
	docs.PUT("/:id", admin, documents.Update)
	docs.GET("/:id/versions", board, documents.Versions)
	docs.POST("/:id/sync", admin, documents.SyncOne)

	api.GET("/document-versions/:id", documents.GetVersion)

	members := api.Group("/members")
	members.POST("/status", board, membership.BatchStatus)
	members.GET("/:id/status", selfOrBoard, membership.Status)
	members.GET("/:id/consents", selfOrBoard, consents.List)
	members.POST("/:id/consents", middleware.SelfOnly(), consents.Record)

	reports := api.Group("/compliance", board)
	reports.GET("/non-compliant", compliance.NonCompliant)
	reports.GET("/report", compliance.Report)

	return r
}
