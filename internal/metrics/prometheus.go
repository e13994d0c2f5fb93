package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus wires github.com/prometheus/client_golang into the Sink
// interface. The teacher pack's own go.mod already required client_golang
// without ever importing it; this sink gives that dependency a home,
// exposed at /metrics via Handler().
type Prometheus struct {
	registry *prometheus.Registry

	counters   *prometheus.CounterVec
	gauges     *prometheus.GaugeVec
	histograms *prometheus.HistogramVec
}

// NewPrometheus constructs a Prometheus sink with a private registry (so
// repeated construction in tests doesn't collide with the global default
// registry).
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()

	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "star",
		Name:      "events_total",
		Help:      "Count of Star Protocol Hub events by name and tag set.",
	}, []string{"name", "tag"})

	gauges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "star",
		Name:      "gauge",
		Help:      "Current value of a named Star Protocol Hub gauge.",
	}, []string{"name", "tag"})

	histograms := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "star",
		Name:      "timing_seconds",
		Help:      "Observed durations of named Star Protocol Hub operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"name", "tag"})

	reg.MustRegister(counters, gauges, histograms)

	return &Prometheus{
		registry:   reg,
		counters:   counters,
		gauges:     gauges,
		histograms: histograms,
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func flattenTag(tags Tags) string {
	if len(tags) == 0 {
		return ""
	}
	// Single flattened label keeps the metric cardinality bounded without
	// forcing every caller site to agree on a fixed label schema; callers
	// that need per-key breakdowns should use distinct metric names instead.
	out := ""
	for k, v := range tags {
		if out != "" {
			out += ","
		}
		out += k + "=" + v
	}
	return out
}

func (p *Prometheus) CounterInc(name string, tags Tags) {
	p.counters.WithLabelValues(name, flattenTag(tags)).Inc()
}

func (p *Prometheus) GaugeSet(name string, value float64, tags Tags) {
	p.gauges.WithLabelValues(name, flattenTag(tags)).Set(value)
}

func (p *Prometheus) TimingObserve(name string, d time.Duration, tags Tags) {
	p.histograms.WithLabelValues(name, flattenTag(tags)).Observe(d.Seconds())
}
