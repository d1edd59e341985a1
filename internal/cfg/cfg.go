package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/sift/internal/structured"
	"github.com/linnemanlabs/sift/internal/triage"
)

// Config adds sift-specific configuration fields to the common
// cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	ClaudeAPIKey          string
	ClaudeModel           string
	ClaudeTemperature     float64
	ClaudeTimeoutSeconds  int
	DatabaseURL           string
	KBEndpoint            string
	KBTenantID            string
	KBTopK                int
	SlackWebhookURL       string
	KafkaBrokers          string
	KafkaTopic            string
	AutoSendEnabled       bool
	ConfidenceThreshold   float64
	BlockedIntents        string
	BlockedPriorities     string
	RetryMaxAttempts      int
	RetryInitialDelayS    int
	RetryMaxDelayS        int
	KeepPIIValues         bool
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests (empty = auth disabled)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.Float64Var(&c.ClaudeTemperature, "claude-temperature", 0.2, "sampling temperature for Claude completions (0..1)")
	fs.IntVar(&c.ClaudeTimeoutSeconds, "claude-timeout-seconds", 60, "per-call timeout for Claude completions (1..600)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.KBEndpoint, "kb-endpoint", "", "knowledge base search service endpoint")
	fs.StringVar(&c.KBTenantID, "kb-tenant-id", "", "knowledge base tenant ID for multi-tenant setups")
	fs.IntVar(&c.KBTopK, "kb-top-k", 5, "number of KB snippets retrieved per ticket (1..20)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for notifications")
	fs.StringVar(&c.KafkaBrokers, "kafka-brokers", "", "comma-separated Kafka broker addresses (empty = events disabled)")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", "sift.decisions", "Kafka topic for decision events")
	fs.BoolVar(&c.AutoSendEnabled, "auto-send-enabled", true, "allow replies to be sent without human review")
	fs.Float64Var(&c.ConfidenceThreshold, "confidence-threshold", 0.80, "minimum classification confidence for auto-send (0..1)")
	fs.StringVar(&c.BlockedIntents, "blocked-intents", "complaint_escalation", "comma-separated intents that always require human review")
	fs.StringVar(&c.BlockedPriorities, "blocked-priorities", "P0,P1", "comma-separated priorities that always require human review")
	fs.IntVar(&c.RetryMaxAttempts, "retry-max-attempts", 3, "max attempts per structured LLM call (1..10)")
	fs.IntVar(&c.RetryInitialDelayS, "retry-initial-delay-seconds", 1, "initial backoff delay between structured LLM attempts (1..60)")
	fs.IntVar(&c.RetryMaxDelayS, "retry-max-delay-seconds", 6, "backoff delay cap between structured LLM attempts (1..120)")
	fs.BoolVar(&c.KeepPIIValues, "keep-pii-values", false, "keep matched PII text on findings (debugging only)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Claude API key is required for LLM access
	if c.ClaudeAPIKey == "" {
		errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
	}

	// Claude model is required for LLM access
	if c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required"))
	}

	if c.ClaudeTemperature < 0 || c.ClaudeTemperature > 1 {
		errs = append(errs, fmt.Errorf("invalid CLAUDE_TEMPERATURE %v (must be 0..1)", c.ClaudeTemperature))
	}
	if c.ClaudeTimeoutSeconds <= 0 || c.ClaudeTimeoutSeconds > 600 {
		errs = append(errs, fmt.Errorf("invalid CLAUDE_TIMEOUT_SECONDS %d (must be 1..600)", c.ClaudeTimeoutSeconds))
	}

	// KB endpoint is required for grounded drafting
	if c.KBEndpoint == "" {
		errs = append(errs, errors.New("KB_ENDPOINT is required"))
	}
	if c.KBTopK <= 0 || c.KBTopK > 20 {
		errs = append(errs, fmt.Errorf("invalid KB_TOP_K %d (must be 1..20)", c.KBTopK))
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("invalid CONFIDENCE_THRESHOLD %v (must be 0..1)", c.ConfidenceThreshold))
	}
	if c.RetryMaxAttempts <= 0 || c.RetryMaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("invalid RETRY_MAX_ATTEMPTS %d (must be 1..10)", c.RetryMaxAttempts))
	}
	if c.RetryInitialDelayS <= 0 || c.RetryInitialDelayS > 60 {
		errs = append(errs, fmt.Errorf("invalid RETRY_INITIAL_DELAY_SECONDS %d (must be 1..60)", c.RetryInitialDelayS))
	}
	if c.RetryMaxDelayS < c.RetryInitialDelayS || c.RetryMaxDelayS > 120 {
		errs = append(errs, fmt.Errorf("invalid RETRY_MAX_DELAY_SECONDS %d (must be RETRY_INITIAL_DELAY_SECONDS..120)", c.RetryMaxDelayS))
	}

	// Blocked enums must be members of the closed sets
	for _, s := range splitCSV(c.BlockedIntents) {
		if _, err := triage.ParseIntent(s); err != nil {
			errs = append(errs, fmt.Errorf("invalid BLOCKED_INTENTS entry %q", s))
		}
	}
	for _, s := range splitCSV(c.BlockedPriorities) {
		if _, err := triage.ParsePriority(s); err != nil {
			errs = append(errs, fmt.Errorf("invalid BLOCKED_PRIORITIES entry %q", s))
		}
	}

	if c.KafkaBrokers != "" && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// PolicyConfig converts the flat flag fields into the decision policy.
// Call only after Validate.
func (c *Config) PolicyConfig() triage.PolicyConfig {
	blockedIntents := make(map[triage.Intent]bool)
	for _, s := range splitCSV(c.BlockedIntents) {
		blockedIntents[triage.Intent(s)] = true
	}
	blockedPriorities := make(map[triage.Priority]bool)
	for _, s := range splitCSV(c.BlockedPriorities) {
		blockedPriorities[triage.Priority(s)] = true
	}
	return triage.PolicyConfig{
		AutoSendEnabled:     c.AutoSendEnabled,
		ConfidenceThreshold: c.ConfidenceThreshold,
		BlockedIntents:      blockedIntents,
		BlockedPriorities:   blockedPriorities,
	}
}

// RetryPolicy converts the retry flag fields into the structured completion
// retry schedule.
func (c *Config) RetryPolicy() structured.RetryPolicy {
	return structured.RetryPolicy{
		MaxAttempts:  uint(c.RetryMaxAttempts),
		InitialDelay: time.Duration(c.RetryInitialDelayS) * time.Second,
		MaxDelay:     time.Duration(c.RetryMaxDelayS) * time.Second,
	}
}

// Brokers returns the Kafka broker list, nil when events are disabled.
func (c *Config) Brokers() []string {
	return splitCSV(c.KafkaBrokers)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
