package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
)

// Notifier is told about completed runs (Slack, event streams). Failures are
// logged, never propagated: notification is best-effort.
type Notifier interface {
	TriageComplete(ctx context.Context, run *Run) error
}

// SubmitResult is the outcome of submitting a ticket for triage.
type SubmitResult struct {
	ID string
}

// ErrReviewClosed is returned when approving or rejecting a review that is
// no longer pending.
var ErrReviewClosed = errors.New("review is not pending")

// Service is the business boundary for triage operations: run lifecycle,
// async dispatch, the review workflow, and notification fan-out.
type Service struct {
	store     Store
	engine    *Engine
	logger    log.Logger
	metrics   *Metrics
	notifiers []Notifier
}

// NewService creates a triage service. metrics may be nil; notifiers may be
// empty.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, notifiers ...Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:     store,
		engine:    engine,
		logger:    logger,
		metrics:   metrics,
		notifiers: notifiers,
	}
}

// Submit accepts a ticket, persists a pending run, and dispatches the
// pipeline asynchronously. The caller polls Get for completion.
func (s *Service) Submit(ctx context.Context, t *Ticket) (*SubmitResult, error) {
	id := ulid.Make().String()
	run := &Run{
		ID:        id,
		Status:    StatusPending,
		Ticket:    *t,
		CreatedAt: time.Now(),
	}

	if err := s.store.Put(ctx, run); err != nil {
		s.countSubmit("error")
		return nil, fmt.Errorf("persist pending run: %w", err)
	}
	s.countSubmit("accepted")

	// Kick off async triage - pass only the ID to avoid sharing the Run
	// pointer. WithoutCancel: the pipeline outlives the HTTP request.
	go s.run(context.WithoutCancel(ctx), id)

	return &SubmitResult{ID: id}, nil
}

// Get retrieves a triage run by ID.
func (s *Service) Get(ctx context.Context, id string) (*Run, bool, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) run(ctx context.Context, id string) {
	L := s.logger.With("run_id", id)

	run, ok, err := s.store.Get(ctx, id)
	if err != nil || !ok {
		L.Error(ctx, err, "failed to fetch run for triage")
		return
	}

	run.Status = StatusInProgress
	if err := s.store.Put(ctx, run); err != nil {
		L.Error(ctx, err, "failed to update status to in_progress")
		return
	}

	start := time.Now()
	result, rerr := s.engine.Run(ctx, &run.Ticket)

	run.CompletedAt = time.Now()
	run.Duration = time.Since(start).Seconds()

	if rerr != nil {
		run.Status = StatusFailed
		run.Error = rerr.Error()
		if s.metrics != nil {
			s.metrics.RunsTotal.WithLabelValues(string(StatusFailed)).Inc()
		}
		if err := s.store.Put(ctx, run); err != nil {
			L.Error(ctx, err, "failed to persist failed run")
		}
		L.Error(ctx, rerr, "triage run failed")
		return
	}

	run.Status = StatusComplete
	run.Result = result
	if err := s.store.Put(ctx, run); err != nil {
		L.Error(ctx, err, "failed to persist triage result")
		return
	}
	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues(string(StatusComplete)).Inc()
	}

	// Anything short of auto-send goes into the human review queue.
	if result.Decision.Decision != DecisionAutoSend {
		if err := s.createReview(ctx, run); err != nil {
			L.Error(ctx, err, "failed to create review")
		}
	}

	for _, n := range s.notifiers {
		if err := n.TriageComplete(ctx, run); err != nil {
			L.Error(ctx, err, "notifier failed")
		}
	}

	L.Info(ctx, "triage run complete",
		"status", run.Status,
		"decision", result.Decision.Decision,
		"duration", run.Duration,
	)
}

func (s *Service) createReview(ctx context.Context, run *Run) error {
	now := time.Now()
	review := &Review{
		ID:        ulid.Make().String(),
		RunID:     run.ID,
		Status:    ReviewPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.PutReview(ctx, review); err != nil {
		return err
	}
	s.countReview("created")
	return nil
}

// ListPendingReviews returns up to limit reviews awaiting a human, oldest
// first.
func (s *Service) ListPendingReviews(ctx context.Context, limit int) ([]*Review, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListPendingReviews(ctx, limit)
}

// ApproveReview marks a pending review approved with the reply a human
// finalized.
func (s *Service) ApproveReview(ctx context.Context, id, finalReply string) (*Review, error) {
	return s.resolveReview(ctx, id, ReviewApproved, func(r *Review) {
		r.FinalReply = finalReply
	})
}

// RejectReview marks a pending review rejected with the reviewer's notes.
func (s *Service) RejectReview(ctx context.Context, id, notes string) (*Review, error) {
	return s.resolveReview(ctx, id, ReviewRejected, func(r *Review) {
		r.ReviewerNotes = notes
	})
}

func (s *Service) resolveReview(ctx context.Context, id string, status ReviewStatus, apply func(*Review)) (*Review, error) {
	review, ok, err := s.store.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if review.Status != ReviewPending {
		return nil, ErrReviewClosed
	}

	review.Status = status
	review.UpdatedAt = time.Now()
	apply(review)

	if err := s.store.PutReview(ctx, review); err != nil {
		return nil, err
	}
	s.countReview(string(status))
	return review, nil
}

func (s *Service) countSubmit(result string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countReview(action string) {
	if s.metrics != nil {
		s.metrics.ReviewsTotal.WithLabelValues(action).Inc()
	}
}
