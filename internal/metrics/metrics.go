package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EngineCounters tracks monotonically increasing engine events, labeled by
	// the telemetry key components record against.
	EngineCounters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streetsprint_events_total",
			Help: "Total engine events by telemetry key",
		},
		[]string{"key"},
	)

	// EngineValues tracks point-in-time engine measurements such as pool
	// availability and the active window size.
	EngineValues = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streetsprint_value",
			Help: "Current engine measurement by telemetry key",
		},
		[]string{"key"},
	)
)

func init() {
	prometheus.MustRegister(EngineCounters)
	prometheus.MustRegister(EngineValues)
}

// Recorder implements telemetry.Metrics on top of the Prometheus registry.
type Recorder struct{}

func NewRecorder() Recorder {
	return Recorder{}
}

func (Recorder) Add(key string, delta uint64) {
	EngineCounters.WithLabelValues(key).Add(float64(delta))
}

func (Recorder) Store(key string, value uint64) {
	EngineValues.WithLabelValues(key).Set(float64(value))
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
