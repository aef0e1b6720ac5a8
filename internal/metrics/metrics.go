// Package metrics counts link placements, rule failures and fallback
// latency with Prometheus collectors.
//
// linkweaver runs as a batch job, not a server, so nothing is scraped.
// Instead WriteTextfile exports the registry in the text exposition format
// for the node exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/linkweaver/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "linkweaver"

// Recorder holds the collectors of one process. It implements the batch
// recorder and fallback observer interfaces.
type Recorder struct {
	registry *prometheus.Registry

	pages        *prometheus.CounterVec
	placements   *prometheus.CounterVec
	ruleFailures *prometheus.CounterVec
	scopes       *prometheus.CounterVec
	fallback     *prometheus.HistogramVec
	lastBatch    prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages processed, by outcome.",
		}, []string{"outcome"}),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_total",
			Help:      "Links after injection, by placement method and status.",
		}, []string{"method", "status"}),
		ruleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_failures_total",
			Help:      "Validation rule failures, by rule.",
		}, []string{"rule"}),
		scopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scopes_validated_total",
			Help:      "Scopes validated, by result.",
		}, []string{"result"}),
		fallback: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fallback_duration_seconds",
			Help:      "Latency of text-rewriting calls, by outcome.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		lastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_batch_timestamp_seconds",
			Help:      "Unix time at which the last batch settled.",
		}),
	}

	r.registry.MustRegister(r.pages, r.placements, r.ruleFailures, r.scopes, r.fallback, r.lastBatch)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObservePage records the outcome and links of one page.
func (r *Recorder) ObservePage(result model.PageResult) {
	outcome := "succeeded"
	switch {
	case result.Canceled:
		outcome = "canceled"
	case !result.Succeeded():
		outcome = "failed"
	}
	r.pages.WithLabelValues(outcome).Inc()
	r.lastBatch.SetToCurrentTime()

	if result.Canceled {
		return
	}
	for _, l := range result.Links {
		r.placements.WithLabelValues(string(l.PlacementMethod), string(l.Status)).Inc()
	}
}

// ObserveReport records the rule failures of a scope.
func (r *Recorder) ObserveReport(report *model.ValidationReport) {
	result := "verified"
	if !report.Verified() {
		result = "unverified"
	}
	r.scopes.WithLabelValues(result).Inc()

	for rule, n := range report.RuleFailures() {
		r.ruleFailures.WithLabelValues(string(rule)).Add(float64(n))
	}
}

// ObserveFallback records one rewrite call.
func (r *Recorder) ObserveFallback(elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.fallback.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format,
// creating missing parent directories. The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
