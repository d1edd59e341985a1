package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	SubmitsTotal   *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	DecisionsTotal *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	StageDuration  *prometheus.HistogramVec
	StageErrors    *prometheus.CounterVec
	PIIFindings    *prometheus.CounterVec
	KBHits         prometheus.Histogram
	Confidence     prometheus.Histogram
	ReviewsTotal   *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_submits_total",
			Help: "Total ticket submissions by result.",
		}, []string{"result"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_runs_total",
			Help: "Total triage runs by final status.",
		}, []string{"status"}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_decisions_total",
			Help: "Decision outcomes by decision, intent and priority.",
		}, []string{"decision", "intent", "priority"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_run_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}, []string{"decision"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_stage_duration_seconds",
			Help:    "Per-stage duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"stage"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_stage_errors_total",
			Help: "Fatal stage failures by stage.",
		}, []string{"stage"}),
		PIIFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_pii_findings_total",
			Help: "Redacted PII findings by category.",
		}, []string{"category"}),
		KBHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_kb_hits",
			Help:    "Retrieved KB snippets per run.",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0 .. 10
		}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_classification_confidence",
			Help:    "Self-reported classification confidence.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 .. 1.0
		}),
		ReviewsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_reviews_total",
			Help: "Review lifecycle events by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		m.SubmitsTotal,
		m.RunsTotal,
		m.DecisionsTotal,
		m.RunDuration,
		m.StageDuration,
		m.StageErrors,
		m.PIIFindings,
		m.KBHits,
		m.Confidence,
		m.ReviewsTotal,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
// The engine stays metrics-free; main attaches this.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnStage: func(stage Stage, duration float64, err error) {
			m.StageDuration.WithLabelValues(string(stage)).Observe(duration)
			if err != nil {
				m.StageErrors.WithLabelValues(string(stage)).Inc()
			}
		},
		OnComplete: func(e *CompleteEvent) {
			m.DecisionsTotal.WithLabelValues(string(e.Decision), string(e.Intent), string(e.Priority)).Inc()
			m.RunDuration.WithLabelValues(string(e.Decision)).Observe(e.Duration)
			m.Confidence.Observe(e.Confidence)
			m.KBHits.Observe(float64(e.Hits))
			for _, f := range e.Findings {
				m.PIIFindings.WithLabelValues(string(f.Category)).Inc()
			}
		},
	}
}
