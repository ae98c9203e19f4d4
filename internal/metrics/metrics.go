package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newsdigest/internal/domain"
)

// Outcome labels for completed topic runs.
const (
	outcomeSent         = "sent"
	outcomeShortCircuit = "short_circuit"
	outcomeFailed       = "failed"
)

// Collector exposes Prometheus metrics for pipeline runs.
type Collector struct {
	registry         *prometheus.Registry
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	articlesFetched  *prometheus.CounterVec
	articlesDeduped  *prometheus.CounterVec
	articlesSelected *prometheus.CounterVec
	sourceFailures   *prometheus.CounterVec
	summaryFallbacks *prometheus.CounterVec
}

// NewCollector constructs a collector backed by its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newsdigest",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Completed topic runs by outcome.",
	}, []string{"topic", "outcome"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "newsdigest",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of topic runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic"})

	articlesFetched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newsdigest",
		Subsystem: "pipeline",
		Name:      "articles_fetched_total",
		Help:      "Articles collected from sources before deduplication.",
	}, []string{"topic"})

	articlesDeduped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newsdigest",
		Subsystem: "pipeline",
		Name:      "articles_deduped_total",
		Help:      "Articles surviving deduplication.",
	}, []string{"topic"})

	articlesSelected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newsdigest",
		Subsystem: "pipeline",
		Name:      "articles_selected_total",
		Help:      "Articles selected for delivery after ranking.",
	}, []string{"topic"})

	sourceFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newsdigest",
		Subsystem: "pipeline",
		Name:      "source_failures_total",
		Help:      "Source fetch failures by kind.",
	}, []string{"topic", "source", "kind"})

	summaryFallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "newsdigest",
		Subsystem: "pipeline",
		Name:      "summary_fallbacks_total",
		Help:      "Selected articles delivered with fallback description text.",
	}, []string{"topic"})

	collectors := []prometheus.Collector{
		runsTotal, runDuration, articlesFetched, articlesDeduped,
		articlesSelected, sourceFailures, summaryFallbacks,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:         registry,
		runsTotal:        runsTotal,
		runDuration:      runDuration,
		articlesFetched:  articlesFetched,
		articlesDeduped:  articlesDeduped,
		articlesSelected: articlesSelected,
		sourceFailures:   sourceFailures,
		summaryFallbacks: summaryFallbacks,
	}, nil
}

// Handler returns an HTTP handler exposing the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRun records every metric derivable from one completed topic run.
func (c *Collector) ObserveRun(result domain.RunResult) {
	topic := result.Topic

	outcome := outcomeSent
	switch {
	case result.Err != nil:
		outcome = outcomeFailed
	case result.StageReached != domain.StageSent:
		outcome = outcomeShortCircuit
	}
	c.runsTotal.WithLabelValues(topic, outcome).Inc()

	if !result.FinishedAt.IsZero() && !result.StartedAt.IsZero() {
		c.runDuration.WithLabelValues(topic).Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	}

	c.articlesFetched.WithLabelValues(topic).Add(float64(result.Fetched))
	c.articlesDeduped.WithLabelValues(topic).Add(float64(result.Deduped))
	c.articlesSelected.WithLabelValues(topic).Add(float64(len(result.Selected)))

	for source, failure := range result.SourceFailures {
		c.sourceFailures.WithLabelValues(topic, source, string(failure.Kind)).Inc()
	}

	for _, selected := range result.Selected {
		if selected.SummaryFallback {
			c.summaryFallbacks.WithLabelValues(topic).Inc()
		}
	}
}
