package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/veridian-labs/doccontrol-backend/internal/data/repos"
	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

// ComplianceReport is the operational snapshot auditors ask for first:
// where every document sits, what changes are in flight, and how stale the
// review backlog is.
type ComplianceReport struct {
	GeneratedAt              time.Time                              `json:"generated_at"`
	DocumentsByStatus        map[domain.DocumentStatus]int64        `json:"documents_by_status"`
	ChangeRequestsByStatus   map[domain.ChangeRequestStatus]int64   `json:"change_requests_by_status"`
	ChangeRequestsByPriority map[domain.ChangeRequestPriority]int64 `json:"change_requests_by_priority"`
	OverdueByBucket          map[domain.OverdueBucket]int           `json:"overdue_by_bucket"`
	OverdueTotal             int                                    `json:"overdue_total"`
}

type ReportingService interface {
	DocumentStatusSummary(ctx context.Context) (map[domain.DocumentStatus]int64, error)
	ChangeRequestSummary(ctx context.Context) (map[domain.ChangeRequestStatus]int64, map[domain.ChangeRequestPriority]int64, error)
	OverdueBreakdown(ctx context.Context, asOf time.Time) (map[domain.OverdueBucket]int, int, error)
	ComplianceSnapshot(ctx context.Context, asOf time.Time) (*ComplianceReport, error)
}

type reportingService struct {
	db        *gorm.DB
	log       *logger.Logger
	docs      repos.DocumentRepo
	changes   repos.ChangeRequestRepo
	scheduler ReviewSchedulerService
}

func NewReportingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	docs repos.DocumentRepo,
	changes repos.ChangeRequestRepo,
	scheduler ReviewSchedulerService,
) ReportingService {
	return &reportingService{
		db:        db,
		log:       baseLog.With("service", "ReportingService"),
		docs:      docs,
		changes:   changes,
		scheduler: scheduler,
	}
}

func (s *reportingService) DocumentStatusSummary(ctx context.Context) (map[domain.DocumentStatus]int64, error) {
	if s == nil || s.docs == nil {
		return nil, fmt.Errorf("reporting service not configured")
	}
	return s.docs.CountByStatus(dbctx.Context{Ctx: ctx})
}

func (s *reportingService) ChangeRequestSummary(ctx context.Context) (map[domain.ChangeRequestStatus]int64, map[domain.ChangeRequestPriority]int64, error) {
	if s == nil || s.changes == nil {
		return nil, nil, fmt.Errorf("reporting service not configured")
	}
	byStatus, err := s.changes.CountByStatus(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, nil, err
	}
	byPriority, err := s.changes.CountByPriority(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, nil, err
	}
	return byStatus, byPriority, nil
}

func (s *reportingService) OverdueBreakdown(ctx context.Context, asOf time.Time) (map[domain.OverdueBucket]int, int, error) {
	if s == nil || s.scheduler == nil {
		return nil, 0, fmt.Errorf("reporting service not configured")
	}
	overdue, err := s.scheduler.ListOverdue(ctx, asOf, 0)
	if err != nil {
		return nil, 0, err
	}
	buckets := map[domain.OverdueBucket]int{
		domain.OverdueBucketWeek:    0,
		domain.OverdueBucketMonth:   0,
		domain.OverdueBucketQuarter: 0,
		domain.OverdueBucketBeyond:  0,
	}
	for _, od := range overdue {
		buckets[od.Bucket]++
	}
	return buckets, len(overdue), nil
}

func (s *reportingService) ComplianceSnapshot(ctx context.Context, asOf time.Time) (*ComplianceReport, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	docCounts, err := s.DocumentStatusSummary(ctx)
	if err != nil {
		return nil, err
	}
	crStatus, crPriority, err := s.ChangeRequestSummary(ctx)
	if err != nil {
		return nil, err
	}
	buckets, total, err := s.OverdueBreakdown(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return &ComplianceReport{
		GeneratedAt:              asOf,
		DocumentsByStatus:        docCounts,
		ChangeRequestsByStatus:   crStatus,
		ChangeRequestsByPriority: crPriority,
		OverdueByBucket:          buckets,
		OverdueTotal:             total,
	}, nil
}
