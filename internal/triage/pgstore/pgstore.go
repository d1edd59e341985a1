// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sift/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage runs and reviews in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// caller owns the pool's lifecycle.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const runColumns = `id, status, ticket, result, error, created_at, completed_at, duration_s`

// Get retrieves a triage run by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Run, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM triage_runs WHERE id = $1`
	r, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// Put inserts or updates a triage run (upsert on id).
func (s *Store) Put(ctx context.Context, r *triage.Run) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	ticketJSON, err := json.Marshal(r.Ticket)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}
	var resultJSON []byte
	if r.Result != nil {
		resultJSON, err = json.Marshal(r.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	var completedAt *time.Time
	if !r.CompletedAt.IsZero() {
		completedAt = &r.CompletedAt
	}

	query := `INSERT INTO triage_runs (id, status, ticket, result, error, created_at, completed_at, duration_s)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		status       = EXCLUDED.status,
		ticket       = EXCLUDED.ticket,
		result       = EXCLUDED.result,
		error        = EXCLUDED.error,
		completed_at = EXCLUDED.completed_at,
		duration_s   = EXCLUDED.duration_s`

	_, err = s.pool.Exec(ctx, query,
		r.ID, string(r.Status), ticketJSON, resultJSON, r.Error,
		r.CreatedAt, completedAt, r.Duration,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

const reviewColumns = `id, run_id, status, reviewer_notes, final_reply, created_at, updated_at`

// GetReview retrieves a review by ID.
func (s *Store) GetReview(ctx context.Context, id string) (*triage.Review, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetReview", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`
	r, err := scanReview(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// PutReview inserts or updates a review (upsert on id).
func (s *Store) PutReview(ctx context.Context, r *triage.Review) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutReview", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	query := `INSERT INTO reviews (id, run_id, status, reviewer_notes, final_reply, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (id) DO UPDATE SET
		status         = EXCLUDED.status,
		reviewer_notes = EXCLUDED.reviewer_notes,
		final_reply    = EXCLUDED.final_reply,
		updated_at     = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.RunID, string(r.Status), r.ReviewerNotes, r.FinalReply,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

// ListPendingReviews returns up to limit pending reviews, oldest first.
func (s *Store) ListPendingReviews(ctx context.Context, limit int) ([]*triage.Review, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListPendingReviews", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*triage.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}

// scanRun scans a single row into a triage.Run. Returns (nil, nil) when no
// row is found.
func scanRun(row pgx.Row) (*triage.Run, error) {
	var (
		r           triage.Run
		status      string
		ticketJSON  []byte
		resultJSON  []byte
		completedAt *time.Time
	)

	err := row.Scan(
		&r.ID, &status, &ticketJSON, &resultJSON, &r.Error,
		&r.CreatedAt, &completedAt, &r.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	r.Status = triage.Status(status)
	if completedAt != nil {
		r.CompletedAt = *completedAt
	}
	if err := json.Unmarshal(ticketJSON, &r.Ticket); err != nil {
		return nil, fmt.Errorf("unmarshal ticket: %w", err)
	}
	if len(resultJSON) > 0 {
		r.Result = &triage.TriageResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return &r, nil
}

// scanReview scans a single row into a triage.Review. Returns (nil, nil)
// when no row is found.
func scanReview(row pgx.Row) (*triage.Review, error) {
	var (
		r      triage.Review
		status string
	)
	err := row.Scan(
		&r.ID, &r.RunID, &status, &r.ReviewerNotes, &r.FinalReply,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}
	r.Status = triage.ReviewStatus(status)
	return &r, nil
}
