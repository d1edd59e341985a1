package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/llm"
	"github.com/linnemanlabs/sift/internal/redact"
	"github.com/linnemanlabs/sift/internal/structured"
)

// Classifier produces intent/priority/confidence/reasoning for a redacted
// ticket via the structured completion contract.
type Classifier struct {
	completer llm.Completer
	retry     structured.RetryPolicy
	logger    log.Logger
}

// NewClassifier creates a classifier. A zero RetryPolicy gets the default
// 3-attempt schedule.
func NewClassifier(completer llm.Completer, retry structured.RetryPolicy, logger log.Logger) *Classifier {
	if retry.MaxAttempts == 0 {
		retry = structured.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Classifier{completer: completer, retry: retry, logger: logger}
}

// Classify returns a validated Classification for the redacted subject and
// body. Retry exhaustion is fatal to the run: no default classification is
// ever substituted, because a guessed priority could misroute a genuinely
// urgent ticket.
func (c *Classifier) Classify(ctx context.Context, subject, body string) (*Classification, error) {
	prompt := buildClassifyPrompt(subject, body)

	cls, err := structured.Complete[Classification](ctx, c.completer, prompt, c.retry)
	if err != nil {
		return nil, &StageError{Stage: StageClassify, Err: err}
	}

	// The prompt forbids PII in reasoning, but the model is not trusted to
	// comply. Scrub defensively; findings here are discarded.
	var r redact.Redactor
	cls.Reasoning, _ = r.Redact(cls.Reasoning)

	c.logger.Info(ctx, "ticket classified",
		"intent", cls.Intent,
		"priority", cls.Priority,
		"confidence", cls.Confidence,
	)
	return cls, nil
}

func buildClassifyPrompt(subject, body string) string {
	intents := make([]string, len(Intents))
	for i, intent := range Intents {
		intents[i] = fmt.Sprintf("%q", string(intent))
	}
	priorities := make([]string, len(Priorities))
	for i, p := range Priorities {
		priorities[i] = fmt.Sprintf("%q", string(p))
	}

	return fmt.Sprintf(`You are a support ticket triage classifier.

Classify the ticket into:
- intent: one of [%s]
- priority: one of [%s]
- confidence: number 0.0 to 1.0
- reasoning: 1-2 short lines (no PII)

Priority guidance:
- P0: security/privacy breach, payment fraud, legal threats, account takeover, credit card exposure
- P1: user blocked from core usage (cannot login, app down, payment failed)
- P2: degraded experience (bug with workaround, delivery delay < 7 days, partial issues)
- P3: general questions, feature requests, low urgency

Ticket:
SUBJECT: %s
BODY: %s

Return ONLY valid JSON with keys: intent, priority, confidence, reasoning.`,
		strings.Join(intents, ","),
		strings.Join(priorities, ","),
		subject,
		body,
	)
}
