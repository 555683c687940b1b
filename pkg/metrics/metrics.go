// Package metrics records lifecycle operation outcomes in a Prometheus
// registry. The agent is a short-lived CLI, so the registry is exported with
// WriteToTextfile for node_exporter's textfile collector instead of being
// scraped over HTTP. Restore seeds the collectors from the previous textfile
// so counters keep growing across runs.
package metrics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Recorder is the metrics surface used by the job runner and the orchestrator.
// A nil *Operations is a valid no-op Recorder.
type Recorder interface {
	ObserveOperation(action, status string, d time.Duration)
	ObserveFetchAttempt(ok bool)
	ObserveAutoRollback(ok bool)
}

// Operations holds the operation collectors.
type Operations struct {
	registry      *prometheus.Registry
	operations    *prometheus.CounterVec
	durationSum   *prometheus.CounterVec
	lastDuration  *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec
	fetchAttempts *prometheus.CounterVec
	autoRollbacks *prometheus.CounterVec
}

var _ Recorder = (*Operations)(nil)

// NewOperations creates collectors registered on a fresh registry.
func NewOperations() *Operations {
	reg := prometheus.NewRegistry()

	return &Operations{
		registry: reg,
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ops_agent_operations_total",
				Help: "Lifecycle operations by action and final status",
			},
			[]string{"action", "status"},
		),
		durationSum: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ops_agent_operation_duration_seconds_total",
				Help: "Total wall time spent in lifecycle operations",
			},
			[]string{"action"},
		),
		lastDuration: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ops_agent_last_operation_duration_seconds",
				Help: "Wall time of the most recent operation per action",
			},
			[]string{"action"},
		),
		lastSuccess: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ops_agent_last_success_timestamp_seconds",
				Help: "Unix time of the last successful operation per action",
			},
			[]string{"action"},
		),
		fetchAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ops_agent_fetch_attempts_total",
				Help: "Source fetch attempts by result",
			},
			[]string{"result"},
		),
		autoRollbacks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ops_agent_auto_rollbacks_total",
				Help: "Automatic rollbacks triggered by failed upgrades, by result",
			},
			[]string{"result"},
		),
	}
}

// Registry returns the underlying registry.
func (o *Operations) Registry() *prometheus.Registry {
	if o == nil {
		return nil
	}
	return o.registry
}

// ObserveOperation records one finished operation.
func (o *Operations) ObserveOperation(action, status string, d time.Duration) {
	if o == nil {
		return
	}
	o.operations.WithLabelValues(action, status).Inc()
	o.durationSum.WithLabelValues(action).Add(d.Seconds())
	o.lastDuration.WithLabelValues(action).Set(d.Seconds())
	if status == "success" {
		o.lastSuccess.WithLabelValues(action).SetToCurrentTime()
	}
}

// ObserveFetchAttempt records one git clone attempt.
func (o *Operations) ObserveFetchAttempt(ok bool) {
	if o == nil {
		return
	}
	o.fetchAttempts.WithLabelValues(result(ok)).Inc()
}

// ObserveAutoRollback records a compensating revert during upgrade.
func (o *Operations) ObserveAutoRollback(ok bool) {
	if o == nil {
		return
	}
	o.autoRollbacks.WithLabelValues(result(ok)).Inc()
}

// WriteTextfile writes the registry to path in the text exposition format.
// An empty path is a no-op.
func (o *Operations) WriteTextfile(path string) error {
	if o == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, o.registry)
}

// Restore seeds the collectors with the values found in the textfile at path,
// as written by an earlier WriteTextfile. A missing file or empty path leaves
// the collectors at zero. Restore must run before any observation.
func (o *Operations) Restore(path string) error {
	if o == nil || path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open metrics textfile: %w", err)
	}
	defer f.Close()

	parser := expfmt.NewTextParser(model.LegacyValidation)
	families, err := parser.TextToMetricFamilies(f)
	if err != nil {
		return fmt.Errorf("failed to parse metrics textfile %s: %w", path, err)
	}

	counters := map[string]*prometheus.CounterVec{
		"ops_agent_operations_total":                 o.operations,
		"ops_agent_operation_duration_seconds_total": o.durationSum,
		"ops_agent_fetch_attempts_total":             o.fetchAttempts,
		"ops_agent_auto_rollbacks_total":             o.autoRollbacks,
	}
	gauges := map[string]*prometheus.GaugeVec{
		"ops_agent_last_operation_duration_seconds": o.lastDuration,
		"ops_agent_last_success_timestamp_seconds":  o.lastSuccess,
	}
	for name, family := range families {
		for _, m := range family.GetMetric() {
			labels := labelMap(m)
			if vec, ok := counters[name]; ok && m.GetCounter() != nil {
				c, err := vec.GetMetricWith(labels)
				if err != nil {
					return fmt.Errorf("failed to restore %s: %w", name, err)
				}
				c.Add(m.GetCounter().GetValue())
			}
			if vec, ok := gauges[name]; ok && m.GetGauge() != nil {
				g, err := vec.GetMetricWith(labels)
				if err != nil {
					return fmt.Errorf("failed to restore %s: %w", name, err)
				}
				g.Set(m.GetGauge().GetValue())
			}
		}
	}
	return nil
}

func labelMap(m *dto.Metric) prometheus.Labels {
	labels := make(prometheus.Labels, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
