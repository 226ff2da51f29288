// Package metrics defines the Prometheus collectors exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests      *prometheus.CounterVec
	CounterFrames        *prometheus.CounterVec
	CounterReps          *prometheus.CounterVec
	CounterFormWarnings  *prometheus.CounterVec
	CounterSessionsSwept prometheus.Counter

	// gauges
	GaugeSessions prometheus.Gauge

	// histograms
	HistRequestDuration *prometheus.HistogramVec
	HistUpdateDuration  *prometheus.HistogramVec
}

// NewStandaloneManager returns a manager registered on a private registry,
// for callers that do not export metrics.
func NewStandaloneManager() *Manager {
	return NewManager("formcoach", "", prometheus.NewRegistry())
}

func NewTestManager() *Manager {
	return NewManager("formcoach", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("formcoach", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming HTTP requests",
	}, []string{"method", "status"})
	counterFrames := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "frames",
		Help:      "The total number of pose frames received, by outcome",
	}, []string{"exercise", "result"})
	counterReps := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reps",
		Help:      "The total number of counted repetitions and holds",
	}, []string{"exercise"})
	counterFormWarnings := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "form_warnings",
		Help:      "The total number of frames evaluated with incorrect form",
	}, []string{"exercise"})
	counterSessionsSwept := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sessions_swept",
		Help:      "The total number of sessions closed for being idle",
	})

	gaugeSessions := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_sessions",
		Help:      "Current number of open exercise sessions",
	})

	histRequestDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   prometheus.DefBuckets,
			Name:      "request_duration_seconds",
			Help:      "Total duration of HTTP requests in seconds",
		},
		[]string{"method"},
	)
	histUpdateDuration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.000001, 0.0000025, 0.000005, 0.00001, 0.000025,
				0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.01,
			},
			Name: "update_duration_seconds",
			Help: "Time spent evaluating a single pose frame in seconds",
		},
		[]string{"exercise"},
	)

	return &Manager{
		CounterRequests:      counterRequests,
		CounterFrames:        counterFrames,
		CounterReps:          counterReps,
		CounterFormWarnings:  counterFormWarnings,
		CounterSessionsSwept: counterSessionsSwept,
		GaugeSessions:        gaugeSessions,
		HistRequestDuration:  histRequestDuration,
		HistUpdateDuration:   histUpdateDuration,
	}
}
