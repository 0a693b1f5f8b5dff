package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	dataagg "github.com/veridian-labs/doccontrol-backend/internal/data/aggregates"
	"github.com/veridian-labs/doccontrol-backend/internal/data/repos"
	"github.com/veridian-labs/doccontrol-backend/internal/db"
	"github.com/veridian-labs/doccontrol-backend/internal/handlers"
	"github.com/veridian-labs/doccontrol-backend/internal/middleware"
	"github.com/veridian-labs/doccontrol-backend/internal/observability"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
	"github.com/veridian-labs/doccontrol-backend/internal/server"
	"github.com/veridian-labs/doccontrol-backend/internal/services"
	"github.com/veridian-labs/doccontrol-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Observability
	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(rootCtx, log, observability.OtelConfig{
		ServiceName: utils.GetEnv("OTEL_SERVICE_NAME", "doccontrol-backend", log),
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	if metrics != nil {
		metrics.StartStatusCollector(rootCtx, log, thePG)
		metrics.StartServer(rootCtx, log, utils.GetEnv("METRICS_ADDR", "", log))
	}

	// Repos
	log.Info("Setting up repos...")
	repoSet := repos.NewSet(thePG, log)

	// Aggregates
	log.Info("Setting up aggregates...")
	baseDeps := dataagg.BaseDeps{
		DB:       thePG,
		Log:      log,
		Runner:   dataagg.NewGormTxRunner(thePG),
		Hooks:    dataagg.NewObservabilityHooks(metrics),
		CASGuard: dataagg.NewCASGuard(thePG),
	}
	docsAgg := dataagg.NewDocumentAggregate(dataagg.DocumentAggregateDeps{
		Base:      baseDeps,
		Documents: repoSet.Documents,
		Versions:  repoSet.DocumentVersions,
		Approvals: repoSet.Approvals,
		AuditLog:  repoSet.AuditLog,
	})
	crAgg := dataagg.NewChangeRequestAggregate(dataagg.ChangeRequestAggregateDeps{
		Base:           baseDeps,
		ChangeRequests: repoSet.ChangeRequests,
		Documents:      repoSet.Documents,
		Versions:       repoSet.DocumentVersions,
		Approvals:      repoSet.Approvals,
		AuditLog:       repoSet.AuditLog,
	})

	// Services
	log.Info("Setting up services...")
	schedulerService := services.NewReviewSchedulerService(thePG, log, repoSet.Documents, docsAgg, metrics)
	auditService := services.NewAuditQueryService(thePG, log, repoSet.AuditLog)
	reportingService := services.NewReportingService(thePG, log, repoSet.Documents, repoSet.ChangeRequests, schedulerService)

	startSweepLoop(rootCtx, log, schedulerService)

	// Handlers
	log.Info("Setting up handlers...")
	documentHandler := handlers.NewDocumentHandler(log, docsAgg, repoSet.Documents, repoSet.DocumentVersions, repoSet.Approvals)
	changeRequestHandler := handlers.NewChangeRequestHandler(log, crAgg, repoSet.ChangeRequests, repoSet.Approvals)
	auditHandler := handlers.NewAuditHandler(log, auditService)
	reviewHandler := handlers.NewReviewHandler(log, schedulerService)
	reportsHandler := handlers.NewReportsHandler(log, reportingService)

	// Router
	log.Info("Setting up router...")
	router := server.NewRouter(server.RouterConfig{
		ActorMiddleware:      middleware.NewActorMiddleware(log),
		DocumentHandler:      documentHandler,
		ChangeRequestHandler: changeRequestHandler,
		AuditHandler:         auditHandler,
		ReviewHandler:        reviewHandler,
		ReportsHandler:       reportsHandler,
		Metrics:              metrics,
		AllowOrigins:         splitCSV(utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)),
	})

	addr := ":" + utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown error", "error", err)
	}
	if otelShutdown != nil {
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn("OTel shutdown error", "error", err)
		}
	}
}

// startSweepLoop runs the overdue-review sweep on a fixed interval when
// REVIEW_SWEEP_ENABLED is set. Sweep mutations are attributed to
// REVIEW_SWEEP_ACTOR_ID in the audit ledger.
func startSweepLoop(ctx context.Context, log *logger.Logger, scheduler services.ReviewSchedulerService) {
	enabled := strings.EqualFold(utils.GetEnv("REVIEW_SWEEP_ENABLED", "false", log), "true")
	if !enabled {
		return
	}
	actorID, err := uuid.Parse(utils.GetEnv("REVIEW_SWEEP_ACTOR_ID", "", log))
	if err != nil || actorID == uuid.Nil {
		log.Warn("Review sweep enabled but REVIEW_SWEEP_ACTOR_ID is missing or malformed; sweep disabled")
		return
	}
	interval := time.Duration(utils.GetEnvAsInt("REVIEW_SWEEP_INTERVAL_SECONDS", 3600, log)) * time.Second

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := scheduler.RunOverdueSweep(ctx, actorID, time.Now().UTC(), 0); err != nil {
					log.Warn("Scheduled overdue sweep failed", "error", err)
				}
			}
		}
	}()
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
