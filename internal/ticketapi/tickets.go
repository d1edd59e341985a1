package ticketapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/linnemanlabs/sift/internal/triage"
)

const maxTicketBytes = 1 << 20 // 1 MiB

func (a *API) handleSubmitTicket(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTicketBytes)

	var t triage.Ticket
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	t.Subject = strings.TrimSpace(t.Subject)
	t.Body = strings.TrimSpace(t.Body)
	if t.Subject == "" && t.Body == "" {
		http.Error(w, `{"error":"subject or body is required"}`, http.StatusBadRequest)
		return
	}
	if t.Channel == "" {
		t.Channel = "api"
	}

	sr, err := a.svc.Submit(r.Context(), &t)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to submit ticket")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	a.logger.Info(r.Context(), "ticket accepted", "id", sr.ID, "channel", t.Channel)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": sr.ID})
}
