package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/sift/internal/triage"
)

func completedRun() *triage.Run {
	return &triage.Run{
		ID:     "01JN123",
		Status: triage.StatusComplete,
		Ticket: triage.Ticket{
			Subject: "Charged twice",
			Body:    "My card was charged twice.",
			Channel: "email",
		},
		Duration:    8.4,
		CompletedAt: time.Date(2026, 8, 26, 14, 23, 0, 0, time.UTC),
		Result: &triage.TriageResult{
			Redacted: triage.RedactedTicket{Subject: "Charged twice", Body: "My card was charged twice."},
			Classification: &triage.Classification{
				Intent:     triage.IntentBillingRefund,
				Priority:   triage.PriorityP2,
				Confidence: 0.91,
			},
			Draft: &triage.DraftReply{Subject: "Re: Charged twice", Body: "We will refund the duplicate charge."},
			Decision: &triage.DecisionResult{
				Decision:        triage.DecisionHumanReview,
				Reason:          "Auto-send disabled by configuration.",
				AutoSendAllowed: false,
			},
		},
	}
}

func TestTriageComplete_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.TriageComplete(context.Background(), completedRun()); err != nil {
		t.Fatalf("TriageComplete: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, draft, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Charged twice") {
		t.Errorf("header text = %q, want to contain ticket subject", headerText)
	}
	if !strings.Contains(headerText, "\U0001f7e1") {
		t.Error("header should contain yellow circle for human_review")
	}

	fields := blocks[2].(map[string]any)["fields"].([]any)
	var joined string
	for _, f := range fields {
		joined += f.(map[string]any)["text"].(string) + "\n"
	}
	for _, want := range []string{"*Decision:* human_review", "*Intent:* billing_refund", "*Priority:* P2", "*Confidence:* 0.91"} {
		if !strings.Contains(joined, want) {
			t.Errorf("fields missing %q in:\n%s", want, joined)
		}
	}
}

func TestTriageComplete_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.TriageComplete(context.Background(), &triage.Run{}); err != nil {
		t.Fatalf("TriageComplete with empty URL should be no-op, got: %v", err)
	}
}

func TestTriageComplete_WebhookError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no_service", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.TriageComplete(context.Background(), completedRun()); err == nil {
		t.Fatal("expected error for non-2xx webhook response")
	}
}

func TestTriageComplete_TruncatesLongDraft(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	run := completedRun()
	run.Result.Draft.Body = strings.Repeat("x", 4000)

	n := New(srv.URL)
	if err := n.TriageComplete(context.Background(), run); err != nil {
		t.Fatalf("TriageComplete: %v", err)
	}

	blocks := got["blocks"].([]any)
	draftSection := blocks[4].(map[string]any)
	text := draftSection["text"].(map[string]any)["text"].(string)

	if len(text) > maxDraftLen+len("*Draft reply*\n\n") {
		t.Errorf("draft text length = %d, expected <= %d", len(text), maxDraftLen+len("*Draft reply*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated draft to end with ...")
	}
}

func TestTriageComplete_FailedRun(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	run := &triage.Run{
		ID:     "01JN789",
		Status: triage.StatusFailed,
		Ticket: triage.Ticket{Subject: "Broken", Channel: "web"},
		Error:  "classify: retries exhausted",
	}

	n := New(srv.URL)
	if err := n.TriageComplete(context.Background(), run); err != nil {
		t.Fatalf("TriageComplete: %v", err)
	}

	blocks := got["blocks"].([]any)
	headerText := blocks[0].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Triage Failed") {
		t.Errorf("header = %q, want failure title", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Error("header should contain red circle for failed run")
	}

	draftText := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(draftText, "retries exhausted") {
		t.Errorf("draft block = %q, want run error", draftText)
	}
}

func TestDecisionEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  *triage.Run
		want string
	}{
		{"failed", &triage.Run{Status: triage.StatusFailed}, "\U0001f534"},
		{"no result", &triage.Run{Status: triage.StatusComplete}, "\U0001f7e2"},
		{"escalate", runWithDecision(triage.DecisionEscalate), "\U0001f534"},
		{"human review", runWithDecision(triage.DecisionHumanReview), "\U0001f7e1"},
		{"auto send", runWithDecision(triage.DecisionAutoSend), "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := decisionEmoji(tt.run); got != tt.want {
				t.Errorf("decisionEmoji = %q, want %q", got, tt.want)
			}
		})
	}
}

func runWithDecision(d triage.Decision) *triage.Run {
	return &triage.Run{
		Status: triage.StatusComplete,
		Result: &triage.TriageResult{
			Decision: &triage.DecisionResult{Decision: d},
		},
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	long := strings.Repeat("a", 20)
	got := truncate(long, 10)
	if len(got) != 10 {
		t.Errorf("len = %d, want 10", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("got = %q, want ... suffix", got)
	}
}
