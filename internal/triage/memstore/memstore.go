// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/sift/internal/triage"
)

// Store holds triage runs and reviews in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]*triage.Run    // run ID -> run
	reviews map[string]*triage.Review // review ID -> review
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		runs:    make(map[string]*triage.Run),
		reviews: make(map[string]*triage.Review),
	}
}

// Get retrieves a triage run by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// Put stores a copy of the triage run.
func (s *Store) Put(_ context.Context, r *triage.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.runs[r.ID] = &cp
	return nil
}

// GetReview retrieves a review by its ID. Returns a copy.
func (s *Store) GetReview(_ context.Context, id string) (*triage.Review, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// PutReview stores a copy of the review.
func (s *Store) PutReview(_ context.Context, r *triage.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reviews[r.ID] = &cp
	return nil
}

// ListPendingReviews returns up to limit pending reviews, oldest first.
func (s *Store) ListPendingReviews(_ context.Context, limit int) ([]*triage.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*triage.Review
	for _, r := range s.reviews {
		if r.Status != triage.ReviewPending {
			continue
		}
		cp := *r
		pending = append(pending, &cp)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}
