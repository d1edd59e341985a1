package triage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/kb"
	"github.com/linnemanlabs/sift/internal/llm"
	"github.com/linnemanlabs/sift/internal/structured"
)

// Drafter produces a grounded customer reply from a redacted ticket, its
// classification, and retrieved KB snippets.
type Drafter struct {
	completer llm.Completer
	retry     structured.RetryPolicy
	logger    log.Logger
}

// NewDrafter creates a drafter. A zero RetryPolicy gets the default
// 3-attempt schedule.
func NewDrafter(completer llm.Completer, retry structured.RetryPolicy, logger log.Logger) *Drafter {
	if retry.MaxAttempts == 0 {
		retry = structured.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Drafter{completer: completer, retry: retry, logger: logger}
}

// Draft returns a validated DraftReply grounded in hits (which may be empty).
// When the model omits citations, they default to the deduplicated sorted set
// of all retrieved hit sources. Retry exhaustion is fatal to the run.
func (d *Drafter) Draft(ctx context.Context, subject, body string, cls *Classification, hits []kb.Hit) (*DraftReply, error) {
	prompt := buildDraftPrompt(subject, body, cls, hits)

	draft, err := structured.Complete[DraftReply](ctx, d.completer, prompt, d.retry)
	if err != nil {
		return nil, &StageError{Stage: StageDraft, Err: err}
	}

	if len(draft.Citations) == 0 {
		draft.Citations = fallbackCitations(hits)
	}

	d.logger.Info(ctx, "reply drafted",
		"needs_clarification", draft.NeedsClarification,
		"citations", len(draft.Citations),
	)
	return draft, nil
}

// fallbackCitations is the deduplicated, sorted source set of every retrieved
// hit, not filtered to hits actually used in the text.
func fallbackCitations(hits []kb.Hit) []string {
	if len(hits) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(hits))
	var sources []string
	for _, h := range hits {
		src := h.Source
		if src == "" {
			src = "unknown"
		}
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}
	sort.Strings(sources)
	return sources
}

func formatSnippets(hits []kb.Hit) string {
	if len(hits) == 0 {
		return "(no snippets retrieved)"
	}
	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = fmt.Sprintf("[KB %d] SOURCE=%s CHUNK=%d\n%s", i+1, h.Source, h.ChunkID, h.Text)
	}
	return strings.Join(lines, "\n\n")
}

func buildDraftPrompt(subject, body string, cls *Classification, hits []kb.Hit) string {
	return fmt.Sprintf(`You are a customer support agent. Draft a helpful reply.

STRICT RULES:
1) Use ONLY the KB snippets below for policy/steps.
2) If KB is insufficient or unclear, ask 1-2 clarification questions.
3) Do NOT mention internal systems, embeddings, vector search, or "KB".
4) Be polite, professional, concise.
5) Output MUST be valid JSON matching schema:
   {
     "subject": string,
     "body": string,
     "citations": [string],
     "needs_clarification": boolean
   }

Ticket context:
- Intent: %s
- Priority: %s
- Confidence: %v

Customer message:
SUBJECT: %s
BODY: %s

KB snippets (your only source of truth):
%s

Now return ONLY JSON.`,
		cls.Intent,
		cls.Priority,
		cls.Confidence,
		subject,
		body,
		formatSnippets(hits),
	)
}
