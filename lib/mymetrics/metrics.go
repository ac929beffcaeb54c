package mymetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type OperationMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

func NewOperationMetrics(component string) *OperationMetrics {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "basketbackend",
		Subsystem: component,
		Name:      "operations_total",
		Help:      "Total number of operations.",
	}, []string{"operation", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "basketbackend",
		Subsystem: component,
		Name:      "operation_duration_ms",
		Help:      "Operation latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"operation"})

	prometheus.MustRegister(operations, duration)
	return &OperationMetrics{Operations: operations, Duration: duration}
}

func (m *OperationMetrics) CountOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(operation, result).Inc()
}

func (m *OperationMetrics) ObserveDuration(operation string, start time.Time) {
	m.Duration.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
