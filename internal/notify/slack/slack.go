// Package slack sends triage notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/sift/internal/triage"
)

const (
	maxDraftLen = 3000
	httpTimeout = 10 * time.Second
)

// Notifier sends completed triage runs to a Slack webhook. Implements
// triage.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, TriageComplete is
// a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// TriageComplete posts a finished run to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) TriageComplete(ctx context.Context, run *triage.Run) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(run)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(run *triage.Run) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(run),
			{"type": "divider"},
			fieldsBlock(run),
			{"type": "divider"},
			draftBlock(run),
			{"type": "divider"},
			contextBlock(run),
		},
	}
}

func headerBlock(run *triage.Run) map[string]any {
	emoji := decisionEmoji(run)
	title := "Triage Complete"
	if run.Status == triage.StatusFailed {
		title = "Triage Failed"
	}
	text := fmt.Sprintf("%s %s: %s", emoji, title, run.Ticket.Subject)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(run *triage.Run) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", run.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Channel:* %s", run.Ticket.Channel),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", run.Duration),
		},
	}

	if r := run.Result; r != nil {
		fields = append(fields,
			map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Decision:* %s", r.Decision.Decision),
			},
			map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Intent:* %s", r.Classification.Intent),
			},
			map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Priority:* %s", r.Classification.Priority),
			},
			map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Confidence:* %.2f", r.Classification.Confidence),
			},
			map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*PII findings:* %d", len(r.Redacted.Findings)),
			},
		)
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func draftBlock(run *triage.Run) map[string]any {
	text := "_No draft available._"
	if run.Result != nil && run.Result.Draft != nil {
		text = truncate(run.Result.Draft.Body, maxDraftLen)
	} else if run.Error != "" {
		text = truncate(run.Error, maxDraftLen)
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Draft reply*\n\n%s", text),
		},
	}
}

func contextBlock(run *triage.Run) map[string]any {
	ts := run.CompletedAt
	if ts.IsZero() {
		ts = run.CreatedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("sift • run %s • %s", run.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func decisionEmoji(run *triage.Run) string {
	if run.Status == triage.StatusFailed {
		return "\U0001f534" // red circle
	}
	if run.Result == nil || run.Result.Decision == nil {
		return "\U0001f7e2" // green circle
	}
	switch run.Result.Decision.Decision {
	case triage.DecisionEscalate:
		return "\U0001f534" // red circle
	case triage.DecisionHumanReview:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
