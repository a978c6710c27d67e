// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package uploader provides the upload cycle and the worker that runs it on
// a schedule and on demand.
package uploader

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"gopkg.in/tomb.v2"

	corelogger "github.com/icloudbackup/icloudbackup/core/logger"
)

// CycleRunner runs a single upload cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (Result, error)
}

// WorkerConfig encapsulates the configuration options for the upload
// worker.
type WorkerConfig struct {
	Uploader CycleRunner
	Interval time.Duration
	Clock    clock.Clock
	Logger   corelogger.Logger
}

// Validate ensures that the config values are valid.
func (c WorkerConfig) Validate() error {
	if c.Uploader == nil {
		return errors.NotValidf("missing Uploader")
	}
	if c.Interval <= 0 {
		return errors.NotValidf("non-positive Interval")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	return nil
}

// Worker runs an upload cycle every interval, and whenever it is
// triggered.
type Worker struct {
	tomb    tomb.Tomb
	cfg     WorkerConfig
	trigger chan struct{}
}

// NewWorker starts an upload worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.tomb.Wait()
}

// Trigger requests a cycle as soon as the current one, if any, has
// finished. Triggers arriving during a cycle are coalesced into one.
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Worker) loop() error {
	ctx := w.tomb.Context(context.Background())

	timer := w.cfg.Clock.NewTimer(w.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying
		case <-w.trigger:
		case <-timer.Chan():
		}

		w.runCycle(ctx)
		timer.Reset(w.cfg.Interval)
	}
}

func (w *Worker) runCycle(ctx context.Context) {
	_, err := w.cfg.Uploader.RunCycle(ctx)
	if err != nil && ctx.Err() == nil {
		w.cfg.Logger.Errorf("upload cycle aborted: %v", err)
	}
}
