// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package supervisorwatcher provides a worker that polls the Home Assistant
// supervisor for new backups and requests an upload cycle when one has
// landed in the backup directory.
package supervisorwatcher

import (
	"context"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gopkg.in/tomb.v2"

	corelogger "github.com/icloudbackup/icloudbackup/core/logger"
	"github.com/icloudbackup/icloudbackup/internal/backups"
	"github.com/icloudbackup/icloudbackup/internal/supervisor"
)

// BackupLister lists the backups known to the supervisor.
type BackupLister interface {
	Backups(ctx context.Context) ([]supervisor.Backup, error)
}

// LocalBackups lists the archives in the backup directory.
type LocalBackups interface {
	List() ([]backups.File, error)
}

// Config holds the dependencies and settings of the watcher.
type Config struct {
	Supervisor BackupLister
	Local      LocalBackups
	Interval   time.Duration
	Trigger    func()
	Clock      clock.Clock
	Logger     corelogger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Supervisor == nil {
		return errors.NotValidf("missing Supervisor")
	}
	if c.Local == nil {
		return errors.NotValidf("missing Local")
	}
	if c.Interval <= 0 {
		return errors.NotValidf("non-positive Interval")
	}
	if c.Trigger == nil {
		return errors.NotValidf("missing Trigger")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	return nil
}

// Worker polls the supervisor.
type Worker struct {
	tomb  tomb.Tomb
	cfg   Config
	known set.Strings
}

// NewWorker starts a supervisor watcher. The first poll happens
// immediately.
func NewWorker(cfg Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{
		cfg:   cfg,
		known: set.NewStrings(),
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

func (w *Worker) loop() error {
	ctx := w.tomb.Context(context.Background())

	w.poll(ctx)

	timer := w.cfg.Clock.NewTimer(w.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying
		case <-timer.Chan():
			w.poll(ctx)
			timer.Reset(w.cfg.Interval)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	remote, err := w.cfg.Supervisor.Backups(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.cfg.Logger.Warningf("checking supervisor backups: %v", err)
		}
		return
	}

	var fresh []string
	for _, b := range remote {
		if b.Slug == "" || w.known.Contains(b.Slug) {
			continue
		}
		w.known.Add(b.Slug)
		fresh = append(fresh, b.Slug)
	}
	if len(fresh) == 0 {
		return
	}

	local, err := w.cfg.Local.List()
	if err != nil {
		w.cfg.Logger.Warningf("listing local backups: %v", err)
		return
	}
	var matched bool
	for _, slug := range fresh {
		for _, f := range local {
			if strings.Contains(f.Name, slug) {
				w.cfg.Logger.Infof("new backup detected: %s", f.Name)
				matched = true
				break
			}
		}
	}
	if matched {
		w.cfg.Trigger()
	}
}
