// Package kafka publishes triage decision events to a Kafka topic for
// downstream consumers (analytics, audit).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sift/internal/triage"
)

// DecisionEvent is the wire format for one completed triage run.
type DecisionEvent struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	Decision    string    `json:"decision,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Intent      string    `json:"intent,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	Channel     string    `json:"channel"`
	Findings    int       `json:"findings"`
	LatencyMS   int64     `json:"latency_ms,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// writer is the subset of kafka.Writer the publisher needs.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends decision events keyed by run ID. Implements
// triage.Notifier.
type Publisher struct {
	writer writer
	logger log.Logger
}

// New creates a publisher for the given brokers and topic.
func New(brokers []string, topic string, logger log.Logger) *Publisher {
	if logger == nil {
		logger = log.Nop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{writer: w, logger: logger}
}

// TriageComplete publishes one event for the finished run.
func (p *Publisher) TriageComplete(ctx context.Context, run *triage.Run) error {
	event := DecisionEvent{
		RunID:       run.ID,
		Status:      string(run.Status),
		Channel:     run.Ticket.Channel,
		Error:       run.Error,
		CompletedAt: run.CompletedAt,
	}
	if r := run.Result; r != nil {
		event.Decision = string(r.Decision.Decision)
		event.Reason = r.Decision.Reason
		event.Intent = string(r.Classification.Intent)
		event.Priority = string(r.Classification.Priority)
		event.Confidence = r.Classification.Confidence
		event.Findings = len(r.Redacted.Findings)
		event.LatencyMS = r.LatencyMS
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(run.ID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write event: %w", err)
	}

	p.logger.Info(ctx, "decision event published", "run_id", run.ID, "decision", event.Decision)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
