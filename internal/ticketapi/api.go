// Package ticketapi exposes the triage pipeline over HTTP: ticket
// submission, run polling, and the review workflow.
package ticketapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/triage"
)

// TriageService defines the business operations ticketapi needs.
type TriageService interface {
	Submit(ctx context.Context, t *triage.Ticket) (*triage.SubmitResult, error)
	Get(ctx context.Context, id string) (*triage.Run, bool, error)
	ListPendingReviews(ctx context.Context, limit int) ([]*triage.Review, error)
	ApproveReview(ctx context.Context, id, finalReply string) (*triage.Review, error)
	RejectReview(ctx context.Context, id, notes string) (*triage.Review, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tickets", a.handleSubmitTicket)
		r.Get("/triage/{id}", a.handleGetTriage)
		r.Get("/reviews", a.handleListReviews)
		r.Post("/reviews/{id}/approve", a.handleApproveReview)
		r.Post("/reviews/{id}/reject", a.handleRejectReview)
	})
}

func (a *API) handleGetTriage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sift.run.id", id))

	run, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get triage run", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	span.SetAttributes(attribute.String("sift.run.status", string(run.Status)))

	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
