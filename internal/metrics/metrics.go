package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Definitions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plado_definitions",
		Help: "Number of event definitions currently being monitored.",
	})

	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plado_polls_total",
		Help: "Total number of polls, labelled by definition and result (ok, fetch_error, error, panic).",
	}, []string{"definition", "result"})

	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plado_poll_duration_seconds",
		Help:    "Time spent sampling, detecting and dispatching one poll.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"definition"})

	PollsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plado_polls_in_flight",
		Help: "Number of polls currently running.",
	})

	EventsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plado_events_detected_total",
		Help: "Total number of event instances detected, labelled by definition.",
	}, []string{"definition"})

	EventsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plado_events_filtered_total",
		Help: "Total number of event instances rejected by a definition's filters.",
	}, []string{"definition"})

	DispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plado_dispatch_failures_total",
		Help: "Total number of event instances whose jobs could not be dispatched, labelled by reason.",
	}, []string{"definition", "reason"})

	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plado_jobs_total",
		Help: "Total number of job invocations, labelled by definition and outcome.",
	}, []string{"definition", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plado_job_duration_seconds",
		Help:    "Wall-clock run time of spawned jobs.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"definition"})

	JobQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plado_job_queue_utilization_ratio",
		Help: "Current job queue utilization (0-1).",
	})
)
