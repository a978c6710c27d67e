// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package backupwatcher provides a worker that watches the backup directory
// and requests an upload cycle once new archives have stopped changing.
package backupwatcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"gopkg.in/tomb.v2"

	corelogger "github.com/icloudbackup/icloudbackup/core/logger"
	"github.com/icloudbackup/icloudbackup/internal/backups"
)

// Config holds the dependencies and settings of the watcher.
type Config struct {
	// Dir is the backup directory to watch.
	Dir string

	// SettleDelay is the quiet period after the last change to an archive
	// before Trigger is called.
	SettleDelay time.Duration

	// Trigger is called once a burst of changes has settled.
	Trigger func()

	Clock  clock.Clock
	Logger corelogger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.NotValidf("empty Dir")
	}
	if c.SettleDelay <= 0 {
		return errors.NotValidf("non-positive SettleDelay")
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

// Worker watches the backup directory.
type Worker struct {
	tomb    tomb.Tomb
	cfg     Config
	watcher *fsnotify.Watcher
}

// NewWorker starts watching the backup directory, which must exist.
func NewWorker(cfg Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Annotate(err, "creating watcher")
	}
	if err := watcher.Add(cfg.Dir); err != nil {
		_ = watcher.Close()
		return nil, errors.Annotatef(err, "watching %q", cfg.Dir)
	}
	w := &Worker{
		cfg:     cfg,
		watcher: watcher,
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
	defer func() { _ = w.watcher.Close() }()

	var (
		timer  clock.Timer
		settle <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("backup directory watcher closed")
			}
			if !relevant(event) {
				continue
			}
			w.cfg.Logger.Tracef("backup %q changed (%s)", event.Name, event.Op)
			if timer == nil {
				timer = w.cfg.Clock.NewTimer(w.cfg.SettleDelay)
			} else {
				timer.Reset(w.cfg.SettleDelay)
			}
			settle = timer.Chan()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("backup directory watcher closed")
			}
			w.cfg.Logger.Warningf("watching backup directory: %v", err)

		case <-settle:
			settle = nil
			w.cfg.Logger.Debugf("backup directory settled, requesting upload")
			w.cfg.Trigger()
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !backups.IsArchive(event.Name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}
