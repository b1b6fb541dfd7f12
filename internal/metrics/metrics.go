// Package metrics exposes Prometheus metrics for the activation loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ticks counts activation decisions by outcome.
var Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "indicatord",
	Name:      "ticks_total",
	Help:      "Activation loop ticks by decision.",
}, []string{"action"})

// Launches counts screensaver starts by trigger (auto, manual) and result.
var Launches = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "indicatord",
	Name:      "launches_total",
	Help:      "Screensaver launch attempts.",
}, []string{"trigger", "result"})

// ProbeFailures counts session queries that fell back to the next source.
var ProbeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "indicatord",
	Name:      "probe_failures_total",
	Help:      "Failed session source queries.",
}, []string{"capability", "source"})

// UpdateChecks counts release checks by result.
var UpdateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "indicatord",
	Name:      "update_checks_total",
	Help:      "Release checks by result.",
}, []string{"result"})

var IdleSeconds = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "indicatord",
	Name:      "idle_seconds",
	Help:      "Idle time observed by the last tick that queried it.",
})

var TimeoutSeconds = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "indicatord",
	Name:      "timeout_seconds",
	Help:      "Configured idle timeout.",
})

var Enabled = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "indicatord",
	Name:      "enabled",
	Help:      "1 when automatic activation is enabled.",
})

// BoolGauge maps b to 1 or 0.
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
