package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridian-labs/doccontrol-backend/internal/data/repos"
	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/domain/aggregates"
	"github.com/veridian-labs/doccontrol-backend/internal/observability"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

const defaultSweepLimit = 200

// OverdueDocument pairs an approved document with how late its review is.
type OverdueDocument struct {
	Document    *domain.Document     `json:"document"`
	DaysOverdue int                  `json:"days_overdue"`
	Bucket      domain.OverdueBucket `json:"bucket"`
}

// SweepResult reports the outcome of one overdue sweep. A failed document
// leaves the rest of the batch unaffected.
type SweepResult struct {
	Triggered []uuid.UUID `json:"triggered"`
	Failed    []uuid.UUID `json:"failed"`
}

type ReviewSchedulerService interface {
	ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]OverdueDocument, error)
	ListUpcoming(ctx context.Context, asOf time.Time, windowDays, limit int) ([]*domain.Document, error)

	// RunOverdueSweep moves every overdue approved document to under_review.
	// Documents that race out of approved are recorded as failed, not fatal.
	RunOverdueSweep(ctx context.Context, actorID uuid.UUID, asOf time.Time, limit int) (SweepResult, error)
}

type reviewSchedulerService struct {
	db      *gorm.DB
	log     *logger.Logger
	docs    repos.DocumentRepo
	docsAgg aggregates.DocumentAggregate
	metrics *observability.Metrics
}

func NewReviewSchedulerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	docs repos.DocumentRepo,
	docsAgg aggregates.DocumentAggregate,
	metrics *observability.Metrics,
) ReviewSchedulerService {
	return &reviewSchedulerService{
		db:      db,
		log:     baseLog.With("service", "ReviewSchedulerService"),
		docs:    docs,
		docsAgg: docsAgg,
		metrics: metrics,
	}
}

func (s *reviewSchedulerService) ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]OverdueDocument, error) {
	if s == nil || s.docs == nil {
		return nil, fmt.Errorf("review scheduler not configured")
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	rows, err := s.docs.ListDueBefore(dbctx.Context{Ctx: ctx}, asOf, limit)
	if err != nil {
		return nil, err
	}
	out := make([]OverdueDocument, 0, len(rows))
	for _, doc := range rows {
		if doc.NextReviewDate == nil {
			continue
		}
		days := domain.DaysOverdue(doc, asOf)
		out = append(out, OverdueDocument{
			Document:    doc,
			DaysOverdue: days,
			Bucket:      domain.BucketForDaysOverdue(days),
		})
	}
	return out, nil
}

func (s *reviewSchedulerService) ListUpcoming(ctx context.Context, asOf time.Time, windowDays, limit int) ([]*domain.Document, error) {
	if s == nil || s.docs == nil {
		return nil, fmt.Errorf("review scheduler not configured")
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	return s.docs.ListDueWithin(dbctx.Context{Ctx: ctx}, asOf, asOf.AddDate(0, 0, windowDays), limit)
}

func (s *reviewSchedulerService) RunOverdueSweep(ctx context.Context, actorID uuid.UUID, asOf time.Time, limit int) (SweepResult, error) {
	var result SweepResult
	if s == nil || s.docs == nil || s.docsAgg == nil {
		return result, fmt.Errorf("review scheduler not configured")
	}
	if actorID == uuid.Nil {
		return result, fmt.Errorf("missing actor_id")
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	rows, err := s.docs.ListDueBefore(dbctx.Context{Ctx: ctx}, asOf, limit)
	if err != nil {
		return result, err
	}

	for _, doc := range rows {
		if _, err := s.docsAgg.TriggerReview(ctx, aggregates.ActorInput{
			DocumentID: doc.ID,
			ActorID:    actorID,
		}); err != nil {
			result.Failed = append(result.Failed, doc.ID)
			s.log.Warn("overdue sweep: trigger review failed",
				"document_id", doc.ID,
				"code", string(aggregates.CodeOf(err)),
				"error", err)
			continue
		}
		result.Triggered = append(result.Triggered, doc.ID)
	}

	s.metrics.ObserveReviewSweep(len(result.Triggered), len(result.Failed))
	s.log.Info("overdue sweep complete",
		"as_of", asOf.Format(time.RFC3339),
		"triggered", len(result.Triggered),
		"failed", len(result.Failed))
	return result, nil
}
