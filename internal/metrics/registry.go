// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// NewRegistry returns a new prometheus.Registry with the Go and process
// collectors and the given collectors registered.
func NewRegistry(collectors ...prometheus.Collector) (*prometheus.Registry, error) {
	r := prometheus.NewRegistry()
	if err := r.Register(prometheus.NewGoCollector()); err != nil {
		return nil, errors.Trace(err)
	}
	if err := r.Register(prometheus.NewProcessCollector(
		prometheus.ProcessCollectorOpts{})); err != nil {
		return nil, errors.Trace(err)
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			return nil, errors.Annotate(err, "registering collector")
		}
	}
	return r, nil
}
