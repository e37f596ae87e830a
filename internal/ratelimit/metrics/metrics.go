package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions     *prometheus.CounterVec
	ActiveWindows prometheus.Gauge
	SweptWindows  prometheus.Counter
	StoreDegraded prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classlog_ratelimit_decisions_total",
			Help: "Throttle admissions by operation class and decision",
		}, []string{"class", "decision"}),
		ActiveWindows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classlog_ratelimit_active_windows",
			Help: "Fixed windows currently held in process memory",
		}),
		SweptWindows: factory.NewCounter(prometheus.CounterOpts{
			Name: "classlog_ratelimit_swept_windows_total",
			Help: "Expired windows removed by the background sweep",
		}),
		StoreDegraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classlog_ratelimit_store_degraded",
			Help: "1 while the shared window store is bypassed for process memory",
		}),
	}
}

func (m *Metrics) RecordDecision(class string, allowed bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.Decisions.WithLabelValues(class, decision).Inc()
}

func (m *Metrics) SetActiveWindows(count int) {
	if m == nil {
		return
	}
	m.ActiveWindows.Set(float64(count))
}

func (m *Metrics) AddSwept(count int) {
	if m == nil {
		return
	}
	m.SweptWindows.Add(float64(count))
}

func (m *Metrics) SetStoreDegraded(degraded bool) {
	if m == nil {
		return
	}
	v := 0.0
	if degraded {
		v = 1
	}
	m.StoreDegraded.Set(v)
}
