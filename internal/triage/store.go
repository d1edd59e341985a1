package triage

import "context"

// Store is the persistence interface for triage runs and their reviews.
// Lookups return (nil, false, nil) when the key does not exist.
type Store interface {
	Get(ctx context.Context, id string) (*Run, bool, error)
	Put(ctx context.Context, run *Run) error

	GetReview(ctx context.Context, id string) (*Review, bool, error)
	PutReview(ctx context.Context, review *Review) error
	ListPendingReviews(ctx context.Context, limit int) ([]*Review, error)
}
