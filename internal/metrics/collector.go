// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coresession "github.com/icloudbackup/icloudbackup/core/session"
)

const metricsNamespace = "icloudbackup"

// Upload results.
const (
	ResultUploaded = "uploaded"
	ResultPresent  = "present"
	ResultFailed   = "failed"
)

// Collector is a prometheus.Collector that collects metrics about the
// session and the upload cycles.
type Collector struct {
	sessionState    *prometheus.GaugeVec
	codeSubmissions *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	uploadedBytes   prometheus.Counter
	pendingBackups  prometheus.Gauge
	cycleDuration   prometheus.Histogram
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		sessionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "session_state",
				Help:      "Set to 1 for the current state of the remote session.",
			}, []string{"state"},
		),
		codeSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "code_submissions_total",
				Help:      "The number of verification code submissions by outcome.",
			}, []string{"outcome"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "uploads_total",
				Help:      "The number of backups handled by result.",
			}, []string{"result"},
		),
		uploadedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "uploaded_bytes_total",
				Help:      "The number of bytes uploaded to the remote drive.",
			},
		),
		pendingBackups: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "pending_backups",
				Help:      "The number of local backups not yet on the remote drive.",
			},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "upload_cycle_seconds",
				Help:      "The time taken by an upload cycle.",
				Buckets:   []float64{0.1, 1, 10, 60, 300, 900, 3600},
			},
		),
	}
}

// SessionChanged records the state of the session.
func (c *Collector) SessionChanged(snap coresession.Snapshot) {
	for _, state := range []coresession.State{
		coresession.Unauthenticated,
		coresession.AwaitingTwoFactor,
		coresession.Authenticated,
	} {
		value := 0.0
		if state == snap.State {
			value = 1
		}
		c.sessionState.WithLabelValues(string(state)).Set(value)
	}
}

// CodeSubmitted counts a verification code submission.
func (c *Collector) CodeSubmitted(outcome string) {
	c.codeSubmissions.WithLabelValues(outcome).Inc()
}

// BackupHandled counts a backup by result, adding size to the uploaded
// bytes for an upload.
func (c *Collector) BackupHandled(result string, size int64) {
	c.uploads.WithLabelValues(result).Inc()
	if result == ResultUploaded {
		c.uploadedBytes.Add(float64(size))
	}
}

// CycleCompleted records the duration of an upload cycle and the backups
// still pending after it.
func (c *Collector) CycleCompleted(d time.Duration, pending int) {
	c.cycleDuration.Observe(d.Seconds())
	c.pendingBackups.Set(float64(pending))
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.sessionState.Describe(ch)
	c.codeSubmissions.Describe(ch)
	c.uploads.Describe(ch)
	c.uploadedBytes.Describe(ch)
	c.pendingBackups.Describe(ch)
	c.cycleDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.sessionState.Collect(ch)
	c.codeSubmissions.Collect(ch)
	c.uploads.Collect(ch)
	c.uploadedBytes.Collect(ch)
	c.pendingBackups.Collect(ch)
	c.cycleDuration.Collect(ch)
}
