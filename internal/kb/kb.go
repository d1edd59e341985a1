// Package kb defines the knowledge-base retrieval contract the drafter
// consumes. The index itself is owned by the KB service; sift only queries it.
package kb

import "context"

// Hit is one ranked KB snippet. Distance is lower-is-closer; the provider
// returns hits best-first and sift trusts that ordering.
type Hit struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	ChunkID  int     `json:"chunk_id"`
	Distance float64 `json:"distance"`
}

// Retriever performs a ranked snippet lookup for a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}
