// Package metrics exposes Prometheus collectors for the render pipeline.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiopod_jobs_total",
			Help: "Total render jobs processed, by type and outcome",
		},
		[]string{"job_type", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studiopod_job_duration_seconds",
			Help:    "End-to-end job duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"job_type"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studiopod_stage_duration_seconds",
			Help:    "Per-stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"stage", "status"},
	)

	stageDegradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiopod_stage_degradations_total",
			Help: "Stages that fell back to a lower-fidelity method",
		},
		[]string{"stage"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiopod_uploads_total",
			Help: "Artifact publish attempts, by backend and outcome",
		},
		[]string{"backend", "status"},
	)

	activeJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studiopod_active_jobs",
			Help: "Jobs currently executing",
		},
	)
)

// RecordJob records a finished job.
func RecordJob(jobType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	jobsTotal.WithLabelValues(jobType, status).Inc()
	jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// RecordStage records one finished pipeline stage.
func RecordStage(stage, status string, duration time.Duration) {
	stageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
}

// RecordDegradation counts a stage falling back.
func RecordDegradation(stage string) {
	stageDegradations.WithLabelValues(stage).Inc()
}

// RecordUpload counts an artifact publish attempt.
func RecordUpload(backend string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	uploadsTotal.WithLabelValues(backend, status).Inc()
}

// JobStarted marks a job as in flight; call the returned func when done.
func JobStarted() func() {
	activeJobs.Inc()
	return activeJobs.Dec
}

// Serve starts the metrics endpoint on the given port. It blocks.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

// Handler returns the scrape handler for embedding into an existing server.
func Handler() http.Handler {
	return promhttp.Handler()
}
