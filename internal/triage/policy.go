package triage

import (
	"errors"
	"fmt"
)

// PolicyConfig is the externally supplied auto-send policy. It is passed
// explicitly into Decide and read fresh for every evaluation; the evaluator
// never consults ambient state.
type PolicyConfig struct {
	AutoSendEnabled     bool
	ConfidenceThreshold float64
	BlockedIntents      map[Intent]bool
	BlockedPriorities   map[Priority]bool
}

// DefaultPolicyConfig returns the shipped policy: auto-send on, 0.80
// threshold, complaints and P0/P1 never auto-sent.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		AutoSendEnabled:     true,
		ConfidenceThreshold: 0.80,
		BlockedIntents:      map[Intent]bool{IntentComplaintEscalation: true},
		BlockedPriorities:   map[Priority]bool{PriorityP0: true, PriorityP1: true},
	}
}

// Validate checks the policy for configuration errors. Detected eagerly,
// never retried.
func (p PolicyConfig) Validate() error {
	var errs []error
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence threshold %v outside [0,1]", p.ConfidenceThreshold))
	}
	for intent := range p.BlockedIntents {
		if !intent.Valid() {
			errs = append(errs, fmt.Errorf("blocked intent %q not in closed set", intent))
		}
	}
	for priority := range p.BlockedPriorities {
		if !priority.Valid() {
			errs = append(errs, fmt.Errorf("blocked priority %q not in closed set", priority))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// PolicySource supplies the policy for each decision evaluation, so config
// changes apply without restart.
type PolicySource func() PolicyConfig

// StaticPolicy adapts a fixed PolicyConfig to a PolicySource.
func StaticPolicy(p PolicyConfig) PolicySource {
	return func() PolicyConfig { return p }
}

// guard is one rule in the decision chain: if applies fires, the decision is
// outcome with the rendered reason and later guards are never evaluated.
type guard struct {
	name    string
	applies func(c *Classification, d *DraftReply, p PolicyConfig) bool
	outcome Decision
	reason  func(c *Classification, d *DraftReply, p PolicyConfig) string
}

// decisionGuards is the policy as data, evaluated first-match-wins. Ordering
// is safety-first: clarification need and P0 override everything, including a
// confidence of 1.0.
var decisionGuards = []guard{
	{
		name: "needs_clarification",
		applies: func(_ *Classification, d *DraftReply, _ PolicyConfig) bool {
			return d.NeedsClarification
		},
		outcome: DecisionHumanReview,
		reason: func(_ *Classification, _ *DraftReply, _ PolicyConfig) string {
			return "Draft requires clarification from customer; avoid auto-send."
		},
	},
	{
		name: "p0_escalate",
		applies: func(c *Classification, _ *DraftReply, _ PolicyConfig) bool {
			return c.Priority == PriorityP0
		},
		outcome: DecisionEscalate,
		reason: func(_ *Classification, _ *DraftReply, _ PolicyConfig) string {
			return "Priority P0 detected (security/legal/payment-fraud risk)."
		},
	},
	{
		name: "blocked_priority",
		applies: func(c *Classification, _ *DraftReply, p PolicyConfig) bool {
			return p.BlockedPriorities[c.Priority]
		},
		outcome: DecisionHumanReview,
		reason: func(c *Classification, _ *DraftReply, _ PolicyConfig) string {
			return fmt.Sprintf("Priority %s requires human verification.", c.Priority)
		},
	},
	{
		name: "blocked_intent",
		applies: func(c *Classification, _ *DraftReply, p PolicyConfig) bool {
			return p.BlockedIntents[c.Intent]
		},
		outcome: DecisionHumanReview,
		reason: func(c *Classification, _ *DraftReply, _ PolicyConfig) string {
			return fmt.Sprintf("Intent %q is blocked from auto-send.", c.Intent)
		},
	},
	{
		name: "auto_send_disabled",
		applies: func(_ *Classification, _ *DraftReply, p PolicyConfig) bool {
			return !p.AutoSendEnabled
		},
		outcome: DecisionHumanReview,
		reason: func(_ *Classification, _ *DraftReply, _ PolicyConfig) string {
			return "Auto-send is disabled by configuration."
		},
	},
	{
		name: "below_confidence_threshold",
		applies: func(c *Classification, _ *DraftReply, p PolicyConfig) bool {
			return c.Confidence < p.ConfidenceThreshold
		},
		outcome: DecisionHumanReview,
		reason: func(c *Classification, _ *DraftReply, p PolicyConfig) string {
			return fmt.Sprintf("Confidence %.2f below threshold %.2f.", c.Confidence, p.ConfidenceThreshold)
		},
	},
}

// Decide routes a classified, drafted ticket. Pure and deterministic: no
// external calls, no ambient reads, auditable by enumerating decisionGuards.
func Decide(c *Classification, d *DraftReply, p PolicyConfig) DecisionResult {
	for _, g := range decisionGuards {
		if g.applies(c, d, p) {
			return DecisionResult{
				Decision:        g.outcome,
				Reason:          g.reason(c, d, p),
				AutoSendAllowed: g.outcome == DecisionAutoSend,
			}
		}
	}
	return DecisionResult{
		Decision:        DecisionAutoSend,
		Reason:          "Meets confidence threshold and not blocked by policy.",
		AutoSendAllowed: true,
	}
}
