package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics covers both halves of the gate: assessment dispositions
// and the analysis worker pool draining the priority queue.
type PipelineMetrics struct {
	registry *prometheus.Registry

	assessTotal    *prometheus.CounterVec
	assessDuration *prometheus.HistogramVec
	analysisTotal  *prometheus.CounterVec
	analysisDur    *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	queueDepth     prometheus.Gauge
	queueLag       *prometheus.HistogramVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	assessTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "gate",
			Name:      "assessments_total",
			Help:      "Total assessed entries by disposition.",
		},
		[]string{"service", "disposition"},
	)
	assessDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "gate",
			Name:      "assessment_duration_seconds",
			Help:      "Assessment duration in seconds by disposition.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "disposition"},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "analysis_total",
			Help:      "Total analysis runs by status.",
		},
		[]string{"service", "status"},
	)
	analysisDur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "analysis_duration_seconds",
			Help:      "Analysis duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "analysis_in_flight",
			Help:      "Number of in-flight analysis runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Queued items awaiting analysis.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between enqueue and claim.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(assessTotal, assessDuration, analysisTotal, analysisDur, inFlight, queueDepth, queueLag)

	return &PipelineMetrics{
		registry:       registry,
		assessTotal:    assessTotal,
		assessDuration: assessDuration,
		analysisTotal:  analysisTotal,
		analysisDur:    analysisDur,
		inFlight:       inFlight,
		queueDepth:     queueDepth,
		queueLag:       queueLag,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) ObserveAssessment(service, disposition string, duration time.Duration) {
	m.assessTotal.WithLabelValues(service, disposition).Inc()
	m.assessDuration.WithLabelValues(service, disposition).Observe(duration.Seconds())
}

func (m *PipelineMetrics) StartAnalysis() {
	m.inFlight.Inc()
}

func (m *PipelineMetrics) FinishAnalysis(service string, duration time.Duration, err error) {
	m.inFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.analysisTotal.WithLabelValues(service, status).Inc()
	m.analysisDur.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) SetQueueDepth(depth int64) {
	m.queueDepth.Set(float64(depth))
}

func (m *PipelineMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
