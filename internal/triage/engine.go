package triage

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/kb"
	"github.com/linnemanlabs/sift/internal/redact"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/triage")

// Subject and body are redacted as one combined text so PII spanning either
// field is caught once; the redacted text is split back on these markers.
const (
	subjectMarker = "SUBJECT: "
	bodyMarker    = "\nBODY: "
)

// CompleteEvent summarizes one finished pipeline run for metrics hooks.
type CompleteEvent struct {
	Decision   Decision
	Intent     Intent
	Priority   Priority
	Confidence float64
	Findings   []redact.Finding
	Hits       int
	Duration   float64
}

// EngineHooks lets the caller observe pipeline execution without the engine
// knowing about metrics. All fields are optional.
type EngineHooks struct {
	OnStage    func(stage Stage, duration float64, err error)
	OnComplete func(e *CompleteEvent)
}

// Engine runs the triage pipeline for one ticket: redact, classify, retrieve,
// draft, decide. It is pure orchestration: no persistence, no retry logic of
// its own (the structured completion layer owns retries), no fan-out. Each
// run shares no mutable state with any other, so one Engine serves concurrent
// runs.
type Engine struct {
	redactor   redact.Redactor
	classifier *Classifier
	retriever  kb.Retriever
	drafter    *Drafter
	policy     PolicySource
	topK       int
	logger     log.Logger
	hooks      EngineHooks
}

// NewEngine creates an engine. policy is consulted fresh on every run so
// policy changes apply without restart.
func NewEngine(
	redactor redact.Redactor,
	classifier *Classifier,
	retriever kb.Retriever,
	drafter *Drafter,
	policy PolicySource,
	topK int,
	logger log.Logger,
	hooks EngineHooks,
) *Engine {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		redactor:   redactor,
		classifier: classifier,
		retriever:  retriever,
		drafter:    drafter,
		policy:     policy,
		topK:       topK,
		logger:     logger,
		hooks:      hooks,
	}
}

// Run executes the full pipeline and returns one immutable TriageResult. Any
// fatal stage failure aborts the run with no partial result.
func (e *Engine) Run(ctx context.Context, t *Ticket) (*TriageResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "triage.run", trace.WithAttributes(
		attribute.String("sift.ticket.channel", t.Channel),
	))
	defer span.End()

	// Redact: local, compute-bound, never fails.
	redacted := e.redactStage(t)
	span.SetAttributes(attribute.Int("sift.redact.findings", len(redacted.Findings)))

	// Classify: one external round-trip under bounded retry.
	cls, err := timedStage(e, StageClassify, func() (*Classification, error) {
		return e.classifier.Classify(ctx, redacted.Subject, redacted.Body)
	})
	if err != nil {
		return nil, e.fail(ctx, span, err)
	}
	span.SetAttributes(
		attribute.String("sift.classification.intent", string(cls.Intent)),
		attribute.String("sift.classification.priority", string(cls.Priority)),
		attribute.Float64("sift.classification.confidence", cls.Confidence),
	)

	// Retrieve: intent plus customer text gives better hits than text alone.
	query := string(cls.Intent) + ". " + redacted.Subject + "\n" + redacted.Body
	hits, err := timedStage(e, StageRetrieve, func() ([]kb.Hit, error) {
		hits, err := e.retriever.Search(ctx, query, e.topK)
		if err != nil {
			return nil, &StageError{Stage: StageRetrieve, Err: err}
		}
		return hits, nil
	})
	if err != nil {
		return nil, e.fail(ctx, span, err)
	}
	span.SetAttributes(attribute.Int("sift.kb.hits", len(hits)))

	// Draft: one external round-trip under bounded retry.
	draft, err := timedStage(e, StageDraft, func() (*DraftReply, error) {
		return e.drafter.Draft(ctx, redacted.Subject, redacted.Body, cls, hits)
	})
	if err != nil {
		return nil, e.fail(ctx, span, err)
	}

	// Decide: pure, never suspends. Policy read fresh for this evaluation.
	decision := Decide(cls, draft, e.policy())
	span.SetAttributes(attribute.String("sift.decision", string(decision.Decision)))

	elapsed := time.Since(start)
	result := &TriageResult{
		Ticket:         *t,
		Redacted:       redacted,
		Classification: cls,
		Draft:          draft,
		Decision:       &decision,
		LatencyMS:      elapsed.Milliseconds(),
	}

	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Decision:   decision.Decision,
			Intent:     cls.Intent,
			Priority:   cls.Priority,
			Confidence: cls.Confidence,
			Findings:   redacted.Findings,
			Hits:       len(hits),
			Duration:   elapsed.Seconds(),
		})
	}

	e.logger.Info(ctx, "triage run complete",
		"decision", decision.Decision,
		"intent", cls.Intent,
		"priority", cls.Priority,
		"confidence", cls.Confidence,
		"findings", len(redacted.Findings),
		"latency_ms", result.LatencyMS,
	)
	return result, nil
}

// redactStage masks the combined subject+body text and splits it back.
func (e *Engine) redactStage(t *Ticket) RedactedTicket {
	start := time.Now()

	combined := subjectMarker + t.Subject + bodyMarker + t.Body
	masked, findings := e.redactor.Redact(combined)

	subject, body, ok := strings.Cut(masked, bodyMarker)
	if ok {
		subject = strings.TrimPrefix(subject, subjectMarker)
	} else {
		// Unreachable while placeholders contain no newline, but never
		// fall back to unredacted input.
		subject, body = "", masked
	}

	if e.hooks.OnStage != nil {
		e.hooks.OnStage(StageRedact, time.Since(start).Seconds(), nil)
	}
	return RedactedTicket{
		Subject:  strings.TrimSpace(subject),
		Body:     strings.TrimSpace(body),
		Findings: findings,
	}
}

// timedStage runs fn and reports its duration and outcome to the stage hook.
func timedStage[T any](e *Engine, stage Stage, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	if e.hooks.OnStage != nil {
		e.hooks.OnStage(stage, time.Since(start).Seconds(), err)
	}
	return out, err
}

// fail records the stage error on the run span and returns it unchanged.
func (e *Engine) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.logger.Error(ctx, err, "triage run aborted")
	return err
}
