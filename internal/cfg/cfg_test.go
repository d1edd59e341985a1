package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/sift/internal/triage"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		ClaudeAPIKey:          "sk-test-key",
		ClaudeModel:           "claude-sonnet-4-20250514",
		ClaudeTemperature:     0.2,
		ClaudeTimeoutSeconds:  60,
		KBEndpoint:            "http://localhost:8090",
		KBTopK:                5,
		ConfidenceThreshold:   0.80,
		BlockedPriorities:     "P0,P1",
		BlockedIntents:        "complaint_escalation",
		RetryMaxAttempts:      3,
		RetryInitialDelayS:    1,
		RetryMaxDelayS:        6,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-sonnet-4-20250514")
	}
	if c.ConfidenceThreshold != 0.80 {
		t.Errorf("ConfidenceThreshold = %v, want 0.80", c.ConfidenceThreshold)
	}
	if c.BlockedPriorities != "P0,P1" {
		t.Errorf("BlockedPriorities = %q, want %q", c.BlockedPriorities, "P0,P1")
	}
	if !c.AutoSendEnabled {
		t.Error("AutoSendEnabled = false, want true by default")
	}
	if c.KafkaTopic != "sift.decisions" {
		t.Errorf("KafkaTopic = %q", c.KafkaTopic)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-claude-api-key", "sk-override",
		"-claude-model", "claude-opus-4-20250514",
		"-kb-endpoint", "http://kb:8090",
		"-confidence-threshold", "0.9",
		"-auto-send-enabled=false",
		"-kafka-brokers", "k1:9092,k2:9092",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.ClaudeAPIKey != "sk-override" {
		t.Errorf("ClaudeAPIKey = %q, want %q", c.ClaudeAPIKey, "sk-override")
	}
	if c.KBEndpoint != "http://kb:8090" {
		t.Errorf("KBEndpoint = %q, want %q", c.KBEndpoint, "http://kb:8090")
	}
	if c.ConfidenceThreshold != 0.9 {
		t.Errorf("ConfidenceThreshold = %v, want 0.9", c.ConfidenceThreshold)
	}
	if c.AutoSendEnabled {
		t.Error("AutoSendEnabled = true, want false")
	}
	if c.KafkaBrokers != "k1:9092,k2:9092" {
		t.Errorf("KafkaBrokers = %q", c.KafkaBrokers)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	mutate := func(fn func(*Config)) Config {
		c := validBase()
		fn(&c)
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name:      "drain zero",
			cfg:       mutate(func(c *Config) { c.DrainSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       mutate(func(c *Config) { c.DrainSeconds = 301; c.ShutdownBudgetSeconds = 300 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "budget zero",
			cfg:       mutate(func(c *Config) { c.ShutdownBudgetSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget equals drain",
			cfg:       mutate(func(c *Config) { c.ShutdownBudgetSeconds = c.DrainSeconds }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:      "port zero",
			cfg:       mutate(func(c *Config) { c.APIPort = 0 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       mutate(func(c *Config) { c.APIPort = 65536 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "empty claude api key",
			cfg:       mutate(func(c *Config) { c.ClaudeAPIKey = "" }),
			wantErr:   true,
			errSubstr: []string{"CLAUDE_API_KEY"},
		},
		{
			name:      "empty claude model",
			cfg:       mutate(func(c *Config) { c.ClaudeModel = "" }),
			wantErr:   true,
			errSubstr: []string{"CLAUDE_MODEL"},
		},
		{
			name:      "temperature above one",
			cfg:       mutate(func(c *Config) { c.ClaudeTemperature = 1.5 }),
			wantErr:   true,
			errSubstr: []string{"CLAUDE_TEMPERATURE"},
		},
		{
			name:      "timeout zero",
			cfg:       mutate(func(c *Config) { c.ClaudeTimeoutSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"CLAUDE_TIMEOUT_SECONDS"},
		},
		{
			name:      "empty kb endpoint",
			cfg:       mutate(func(c *Config) { c.KBEndpoint = "" }),
			wantErr:   true,
			errSubstr: []string{"KB_ENDPOINT"},
		},
		{
			name:      "top-k zero",
			cfg:       mutate(func(c *Config) { c.KBTopK = 0 }),
			wantErr:   true,
			errSubstr: []string{"KB_TOP_K"},
		},
		{
			name:      "top-k above max",
			cfg:       mutate(func(c *Config) { c.KBTopK = 21 }),
			wantErr:   true,
			errSubstr: []string{"KB_TOP_K"},
		},
		{
			name:      "threshold above one",
			cfg:       mutate(func(c *Config) { c.ConfidenceThreshold = 1.1 }),
			wantErr:   true,
			errSubstr: []string{"CONFIDENCE_THRESHOLD"},
		},
		{
			name:      "retry attempts zero",
			cfg:       mutate(func(c *Config) { c.RetryMaxAttempts = 0 }),
			wantErr:   true,
			errSubstr: []string{"RETRY_MAX_ATTEMPTS"},
		},
		{
			name:      "retry initial delay zero",
			cfg:       mutate(func(c *Config) { c.RetryInitialDelayS = 0 }),
			wantErr:   true,
			errSubstr: []string{"RETRY_INITIAL_DELAY_SECONDS"},
		},
		{
			name:      "retry max delay below initial",
			cfg:       mutate(func(c *Config) { c.RetryInitialDelayS = 5; c.RetryMaxDelayS = 2 }),
			wantErr:   true,
			errSubstr: []string{"RETRY_MAX_DELAY_SECONDS"},
		},
		{
			name:      "blocked intent not in closed set",
			cfg:       mutate(func(c *Config) { c.BlockedIntents = "spam" }),
			wantErr:   true,
			errSubstr: []string{"BLOCKED_INTENTS", "spam"},
		},
		{
			name:      "blocked priority not in closed set",
			cfg:       mutate(func(c *Config) { c.BlockedPriorities = "P0,P9" }),
			wantErr:   true,
			errSubstr: []string{"BLOCKED_PRIORITIES", "P9"},
		},
		{
			name:    "empty blocked lists are valid",
			cfg:     mutate(func(c *Config) { c.BlockedIntents = ""; c.BlockedPriorities = "" }),
			wantErr: false,
		},
		{
			name:      "brokers without topic",
			cfg:       mutate(func(c *Config) { c.KafkaBrokers = "k1:9092"; c.KafkaTopic = "" }),
			wantErr:   true,
			errSubstr: []string{"KAFKA_TOPIC"},
		},
		{
			name:      "all fields invalid",
			cfg:       Config{},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "CLAUDE_API_KEY", "CLAUDE_MODEL", "KB_ENDPOINT", "KB_TOP_K", "RETRY_MAX_ATTEMPTS"},
		},
		{
			name: "extreme negative values",
			cfg: Config{
				DrainSeconds:          math.MinInt32,
				ShutdownBudgetSeconds: math.MinInt32,
				APIPort:               math.MinInt32,
			},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func TestPolicyConfig(t *testing.T) {
	t.Parallel()

	c := validBase()
	c.AutoSendEnabled = true
	c.BlockedIntents = "complaint_escalation, unknown"
	c.BlockedPriorities = "P0"

	p := c.PolicyConfig()
	if !p.AutoSendEnabled {
		t.Error("AutoSendEnabled = false")
	}
	if p.ConfidenceThreshold != 0.80 {
		t.Errorf("ConfidenceThreshold = %v, want 0.80", p.ConfidenceThreshold)
	}
	if !p.BlockedIntents[triage.IntentComplaintEscalation] || !p.BlockedIntents[triage.IntentUnknown] {
		t.Errorf("BlockedIntents = %v", p.BlockedIntents)
	}
	if !p.BlockedPriorities[triage.PriorityP0] || p.BlockedPriorities[triage.PriorityP1] {
		t.Errorf("BlockedPriorities = %v", p.BlockedPriorities)
	}
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	c := validBase()
	c.RetryMaxAttempts = 5
	c.RetryInitialDelayS = 2
	c.RetryMaxDelayS = 10

	p := c.RetryPolicy()
	if p.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", p.MaxAttempts)
	}
	if p.InitialDelay != 2*time.Second {
		t.Errorf("InitialDelay = %v, want 2s", p.InitialDelay)
	}
	if p.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want 10s", p.MaxDelay)
	}
}

func TestBrokers(t *testing.T) {
	t.Parallel()

	c := Config{}
	if got := c.Brokers(); got != nil {
		t.Errorf("Brokers() = %v, want nil when unset", got)
	}

	c.KafkaBrokers = "k1:9092, k2:9092 ,,"
	got := c.Brokers()
	if len(got) != 2 || got[0] != "k1:9092" || got[1] != "k2:9092" {
		t.Errorf("Brokers() = %v", got)
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port int
		key, model, kb      string
		threshold           float64
	}{
		{60, 90, 8080, "sk-test", "claude-sonnet", "http://kb", 0.8},
		{1, 2, 1, "k", "m", "http://p", 0},
		{299, 300, 65535, "k", "m", "http://p", 1},
		{0, 0, 0, "", "", "", 0},
		{-1, -1, -1, "", "", "", -0.1},
		{300, 300, 65535, "k", "m", "http://p", 0.5},
		{301, 302, 65536, "", "", "", 1.1},
		{150, 100, 8080, "k", "m", "http://p", 0.8},
		{math.MinInt32, math.MinInt32, math.MinInt32, "", "", "", 0.8},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, "", "", "", 0.8},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.key, s.model, s.kb, s.threshold)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, key, model, kb string, threshold float64) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.ClaudeAPIKey = key
		c.ClaudeModel = model
		c.KBEndpoint = kb
		c.ConfidenceThreshold = threshold

		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		keyOK := key != ""
		modelOK := model != ""
		kbOK := kb != ""
		thresholdOK := !(threshold < 0 || threshold > 1)

		allValid := drainOK && budgetOK && portOK && crossOK && keyOK && modelOK && kbOK && thresholdOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
