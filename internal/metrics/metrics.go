// Package metrics records the outcome of a sync run and writes it in the
// Prometheus textfile format, for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trainsync"

// Recorder holds the gauges for one run.
type Recorder struct {
	registry *prometheus.Registry

	extracted    prometheus.Gauge
	listed       prometheus.Gauge
	deleted      prometheus.Gauge
	deleteFailed prometheus.Gauge
	inserted     prometheus.Gauge
	insertFailed prometheus.Gauge
	lastRun      prometheus.Gauge
	success      prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	r := &Recorder{
		registry:     prometheus.NewRegistry(),
		extracted:    gauge("events_extracted", "Workouts read from the training plan."),
		listed:       gauge("events_listed", "Existing training events found in the calendar."),
		deleted:      gauge("events_deleted", "Existing training events deleted."),
		deleteFailed: gauge("events_delete_failed", "Existing training events that could not be deleted."),
		inserted:     gauge("events_inserted", "Workout events inserted."),
		insertFailed: gauge("events_insert_failed", "Workout events that could not be inserted."),
		lastRun:      gauge("last_run_timestamp_seconds", "Unix time the last run finished."),
		success:      gauge("last_run_success", "1 if the last run completed without errors."),
	}

	r.registry.MustRegister(r.extracted, r.listed, r.deleted, r.deleteFailed,
		r.inserted, r.insertFailed, r.lastRun, r.success)
	return r
}

// Counts is what a run reports.
type Counts struct {
	Extracted    int
	Listed       int
	Deleted      int
	DeleteFailed int
	Inserted     int
	InsertFailed int
}

// Observe records the counts of a finished run.
func (r *Recorder) Observe(c Counts, finished time.Time, success bool) {
	r.extracted.Set(float64(c.Extracted))
	r.listed.Set(float64(c.Listed))
	r.deleted.Set(float64(c.Deleted))
	r.deleteFailed.Set(float64(c.DeleteFailed))
	r.inserted.Set(float64(c.Inserted))
	r.insertFailed.Set(float64(c.InsertFailed))
	r.lastRun.Set(float64(finished.Unix()))
	if success {
		r.success.Set(1)
	} else {
		r.success.Set(0)
	}
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteFile writes the metrics to path atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
