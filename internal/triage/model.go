package triage

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/sift/internal/redact"
)

// Intent is the closed-set classification of what the customer wants.
type Intent string

const (
	IntentBillingRefund       Intent = "billing_refund"
	IntentTechnicalIssue      Intent = "technical_issue"
	IntentAccountAccess       Intent = "account_access"
	IntentShippingDelivery    Intent = "shipping_delivery"
	IntentProductQuestion     Intent = "product_question"
	IntentComplaintEscalation Intent = "complaint_escalation"
	IntentUnknown             Intent = "unknown"
)

// Intents lists every valid intent, in prompt order.
var Intents = []Intent{
	IntentBillingRefund,
	IntentTechnicalIssue,
	IntentAccountAccess,
	IntentShippingDelivery,
	IntentProductQuestion,
	IntentComplaintEscalation,
	IntentUnknown,
}

// Valid reports whether i is a member of the closed intent set.
func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// ParseIntent converts a string to an Intent, rejecting non-members.
func ParseIntent(s string) (Intent, error) {
	i := Intent(s)
	if !i.Valid() {
		return "", fmt.Errorf("unknown intent %q", s)
	}
	return i, nil
}

// Priority is the closed-set urgency tier, P0 (highest) to P3 (lowest).
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Priorities lists every valid priority, highest first.
var Priorities = []Priority{PriorityP0, PriorityP1, PriorityP2, PriorityP3}

// Valid reports whether p is a member of the closed priority set.
func (p Priority) Valid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// ParsePriority converts a string to a Priority, rejecting non-members.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

// Ticket is an incoming customer support request. Ephemeral input to the
// pipeline; ownership of persistence sits with the Service layer, never the
// Engine.
type Ticket struct {
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Channel       string `json:"channel"`
}

// RedactedTicket is the PII-masked view of a ticket plus what was masked.
// Finding offsets refer to the combined "SUBJECT: ...\nBODY: ..." text the
// redactor saw.
type RedactedTicket struct {
	Subject  string           `json:"subject"`
	Body     string           `json:"body"`
	Findings []redact.Finding `json:"findings"`
}

// Classification is the model's verdict on a ticket. Immutable once produced.
type Classification struct {
	Intent     Intent   `json:"intent"`
	Priority   Priority `json:"priority"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// Validate enforces the classification schema: closed enums and confidence
// within [0,1]. Used by the structured completion layer to gate retries.
func (c *Classification) Validate() error {
	if !c.Intent.Valid() {
		return fmt.Errorf("intent %q not in closed set", c.Intent)
	}
	if !c.Priority.Valid() {
		return fmt.Errorf("priority %q not in closed set", c.Priority)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", c.Confidence)
	}
	return nil
}

// DraftReply is a grounded customer reply. Citations are KB source
// identifiers; their order is not significant.
type DraftReply struct {
	Subject            string   `json:"subject"`
	Body               string   `json:"body"`
	Citations          []string `json:"citations"`
	NeedsClarification bool     `json:"needs_clarification"`
}

// Validate enforces the draft schema.
func (d *DraftReply) Validate() error {
	if d.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if d.Body == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// Decision routes a drafted reply.
type Decision string

const (
	DecisionAutoSend    Decision = "auto_send"
	DecisionHumanReview Decision = "human_review"
	DecisionEscalate    Decision = "escalate"
)

// DecisionResult is the policy outcome. AutoSendAllowed is true iff
// Decision == DecisionAutoSend.
type DecisionResult struct {
	Decision        Decision `json:"decision"`
	Reason          string   `json:"reason"`
	AutoSendAllowed bool     `json:"auto_send_allowed"`
}

// TriageResult is the immutable record of one pipeline run, assembled by the
// Engine and handed to the caller.
type TriageResult struct {
	Ticket         Ticket          `json:"ticket"`
	Redacted       RedactedTicket  `json:"redacted"`
	Classification *Classification `json:"classification"`
	Draft          *DraftReply     `json:"draft"`
	Decision       *DecisionResult `json:"decision"`
	LatencyMS      int64           `json:"latency_ms"`
}

// Status tracks where a triage run is in its lifecycle.
type Status string

const (
	// StatusPending means accepted, not yet started.
	StatusPending Status = "pending"

	// StatusInProgress means the pipeline is running.
	StatusInProgress Status = "in_progress"

	// StatusComplete means finished with a decision.
	StatusComplete Status = "complete"

	// StatusFailed means a pipeline stage failed; no decision was recorded.
	StatusFailed Status = "failed"
)

// Run is the stored lifecycle record for one submitted ticket.
type Run struct {
	ID          string        `json:"id"`
	Status      Status        `json:"status"`
	Ticket      Ticket        `json:"ticket"`
	Result      *TriageResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
	Duration    float64       `json:"duration_seconds,omitempty"`
}

// ReviewStatus tracks a human review's lifecycle.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Review is a pending or resolved human review of a non-auto-send run.
type Review struct {
	ID            string       `json:"id"`
	RunID         string       `json:"run_id"`
	Status        ReviewStatus `json:"status"`
	ReviewerNotes string       `json:"reviewer_notes,omitempty"`
	FinalReply    string       `json:"final_reply,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
