package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "admin"

// Recorder collects transport and session metrics. It satisfies api.Metrics and session.Metrics.
type Recorder struct {
	RequestCounter           *prometheus.CounterVec
	RequestDurationHistogram *prometheus.HistogramVec
	OperationCounter         *prometheus.CounterVec
	RefreshCounter           *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		// Counter with endpoint and normalized code labels
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Total number of backend API requests, labeled by endpoint and normalized code",
			},
			[]string{"endpoint", "code"},
		),
		RequestDurationHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Histogram of backend API request durations, labeled by endpoint",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		OperationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "operations_total",
				Help:      "Session manager operations, labeled by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		RefreshCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "refreshes_total",
				Help:      "Token refresh exchanges, labeled by outcome",
			},
			[]string{"outcome"},
		),
	}

	for _, c := range []prometheus.Collector{r.RequestCounter, r.RequestDurationHistogram, r.OperationCounter, r.RefreshCounter} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) ObserveRequest(endpoint string, code int, duration time.Duration) {
	r.RequestCounter.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	r.RequestDurationHistogram.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (r *Recorder) ObserveOperation(op string, ok bool) {
	r.OperationCounter.WithLabelValues(op, outcome(ok)).Inc()
}

func (r *Recorder) ObserveRefresh(ok bool) {
	r.RefreshCounter.WithLabelValues(outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
