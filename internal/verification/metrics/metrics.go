package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	VisionRequestDuration *prometheus.HistogramVec
	PhotosAnalyzed        prometheus.Counter
	PhotosFailed          prometheus.Counter
	VerdictsTotal         *prometheus.CounterVec
	PipelineFailures      *prometheus.CounterVec
	PipelineDuration      prometheus.Histogram
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VisionRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classlog_vision_request_duration_seconds",
			Help:    "Latency of photo analysis calls by outcome",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"outcome"}),
		PhotosAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Name: "classlog_photos_analyzed_total",
			Help: "Photos analyzed successfully, including degraded parses",
		}),
		PhotosFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "classlog_photos_failed_total",
			Help: "Photos whose analysis call failed",
		}),
		VerdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classlog_verdicts_total",
			Help: "Verdicts produced by final match tier and date match",
		}, []string{"final_match", "date_match", "gps"}),
		PipelineFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classlog_verification_failures_total",
			Help: "Verification runs that ended without a persisted verdict, by reason",
		}, []string{"reason"}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "classlog_verification_duration_seconds",
			Help:    "End-to-end verification latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}),
	}
}

func (m *Metrics) ObserveVisionRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.VisionRequestDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) AddPhotos(analyzed, failed int) {
	if m == nil {
		return
	}
	m.PhotosAnalyzed.Add(float64(analyzed))
	m.PhotosFailed.Add(float64(failed))
}

func (m *Metrics) IncrementVerdict(finalMatch, dateMatch string, gps bool) {
	if m == nil {
		return
	}
	gpsLabel := "absent"
	if gps {
		gpsLabel = "present"
	}
	m.VerdictsTotal.WithLabelValues(finalMatch, dateMatch, gpsLabel).Inc()
}

func (m *Metrics) IncrementFailure(reason string) {
	if m == nil {
		return
	}
	m.PipelineFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObservePipeline(d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineDuration.Observe(d.Seconds())
}
