package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/veridian-labs/doccontrol-backend/internal/handlers"
	"github.com/veridian-labs/doccontrol-backend/internal/middleware"
	"github.com/veridian-labs/doccontrol-backend/internal/observability"
)

type RouterConfig struct {
	ActorMiddleware      *middleware.ActorMiddleware
	DocumentHandler      *handlers.DocumentHandler
	ChangeRequestHandler *handlers.ChangeRequestHandler
	AuditHandler         *handlers.AuditHandler
	ReviewHandler        *handlers.ReviewHandler
	ReportsHandler       *handlers.ReportsHandler
	Metrics              *observability.Metrics
	AllowOrigins         []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Actor-ID"},
		AllowCredentials: true,
	}))
	router.Use(middleware.MetricsMiddleware(cfg.Metrics))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := router.Group("/api")
	api.Use(cfg.ActorMiddleware.RequireActor())

	// Documents
	docs := api.Group("/documents")
	docs.POST("", cfg.DocumentHandler.Create)
	docs.GET("", cfg.DocumentHandler.List)
	docs.GET("/:id", cfg.DocumentHandler.Get)
	docs.POST("/:id/versions", cfg.DocumentHandler.CreateVersion)
	docs.GET("/:id/versions", cfg.DocumentHandler.ListVersions)
	docs.GET("/:id/approvals", cfg.DocumentHandler.ListApprovals)
	docs.POST("/:id/submit-review", cfg.DocumentHandler.SubmitForReview)
	docs.POST("/:id/submit-approval", cfg.DocumentHandler.SubmitForApproval)
	docs.POST("/:id/approvals/:approvalId/approve", cfg.DocumentHandler.Approve)
	docs.POST("/:id/approvals/:approvalId/reject", cfg.DocumentHandler.Reject)
	docs.POST("/:id/trigger-review", cfg.DocumentHandler.TriggerReview)
	docs.POST("/:id/archive", cfg.DocumentHandler.Archive)
	docs.POST("/:id/return-to-draft", cfg.DocumentHandler.ReturnToDraft)

	// Change requests
	crs := api.Group("/change-requests")
	crs.POST("", cfg.ChangeRequestHandler.Create)
	crs.GET("", cfg.ChangeRequestHandler.List)
	crs.GET("/:id", cfg.ChangeRequestHandler.Get)
	crs.GET("/:id/approvals", cfg.ChangeRequestHandler.ListApprovals)
	crs.POST("/:id/submit", cfg.ChangeRequestHandler.Submit)
	crs.POST("/:id/start-review", cfg.ChangeRequestHandler.StartReview)
	crs.POST("/:id/approvals/:approvalId/approve", cfg.ChangeRequestHandler.Approve)
	crs.POST("/:id/approvals/:approvalId/reject", cfg.ChangeRequestHandler.Reject)
	crs.POST("/:id/cancel", cfg.ChangeRequestHandler.Cancel)
	crs.POST("/:id/implement", cfg.ChangeRequestHandler.MarkImplemented)
	crs.POST("/:id/return-to-draft", cfg.ChangeRequestHandler.ReturnToDraft)

	// Audit ledger (read only)
	audit := api.Group("/audit")
	audit.GET("/recent", cfg.AuditHandler.GetRecent)
	audit.GET("/actor/:id", cfg.AuditHandler.GetByActor)
	audit.GET("/:entityType/:id", cfg.AuditHandler.GetTrail)
	audit.GET("/:entityType/:id/stats", cfg.AuditHandler.GetStats)

	// Review scheduling
	reviews := api.Group("/reviews")
	reviews.GET("/overdue", cfg.ReviewHandler.ListOverdue)
	reviews.GET("/upcoming", cfg.ReviewHandler.ListUpcoming)
	reviews.POST("/run-overdue", cfg.ReviewHandler.RunOverdueSweep)

	// Reporting
	reports := api.Group("/reports")
	reports.GET("/documents", cfg.ReportsHandler.DocumentSummary)
	reports.GET("/change-requests", cfg.ReportsHandler.ChangeRequestSummary)
	reports.GET("/compliance", cfg.ReportsHandler.ComplianceSnapshot)

	return router
}
