// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package agent runs the add-on: the session state machine, the upload
// worker and its triggers, and the HTTP server, all tied to one
// catacomb so that the failure of any one of them stops the rest.
package agent

import (
	"io/fs"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"

	"github.com/icloudbackup/icloudbackup/apiserver"
	corelogger "github.com/icloudbackup/icloudbackup/core/logger"
	coresession "github.com/icloudbackup/icloudbackup/core/session"
	"github.com/icloudbackup/icloudbackup/internal/backups"
	"github.com/icloudbackup/icloudbackup/internal/config"
	"github.com/icloudbackup/icloudbackup/internal/drive"
	"github.com/icloudbackup/icloudbackup/internal/i18n"
	"github.com/icloudbackup/icloudbackup/internal/metrics"
	"github.com/icloudbackup/icloudbackup/internal/worker/backupwatcher"
	"github.com/icloudbackup/icloudbackup/internal/worker/httpserver"
	"github.com/icloudbackup/icloudbackup/internal/worker/session"
	"github.com/icloudbackup/icloudbackup/internal/worker/supervisorwatcher"
	"github.com/icloudbackup/icloudbackup/internal/worker/uploader"
)

// Config holds the dependencies of the agent.
type Config struct {
	Options config.Config

	// Account is the remote storage account.
	Account drive.Account

	// Supervisor, if set, is polled for new backups.
	Supervisor supervisorwatcher.BackupLister

	Frontend fs.FS
	Messages *i18n.Bundle

	Clock  clock.Clock
	Logger corelogger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if err := c.Options.Validate(); err != nil {
		return errors.Trace(err)
	}
	if c.Account == nil {
		return errors.NotValidf("missing Account")
	}
	if c.Frontend == nil {
		return errors.NotValidf("missing Frontend")
	}
	if c.Messages == nil {
		return errors.NotValidf("missing Messages")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	return nil
}

// Agent is a worker owning every other worker of the add-on.
type Agent struct {
	catacomb catacomb.Catacomb
	cfg      Config

	metrics       *metrics.Collector
	authenticated chan struct{}

	session *session.Machine
	uploads *uploader.Worker
	server  *httpserver.Worker
}

// New starts the agent.
func New(cfg Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	a := &Agent{
		cfg:           cfg,
		metrics:       metrics.NewCollector(),
		authenticated: make(chan struct{}, 1),
	}

	workers, err := a.startWorkers()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Name: "icloudbackup-agent",
		Site: &a.catacomb,
		Work: a.loop,
		Init: workers,
	}); err != nil {
		for _, w := range workers {
			_ = worker.Stop(w)
		}
		return nil, errors.Trace(err)
	}
	return a, nil
}

// Kill is part of the worker.Worker interface.
func (a *Agent) Kill() {
	a.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (a *Agent) Wait() error {
	return a.catacomb.Wait()
}

// URL returns the base URL of the HTTP server.
func (a *Agent) URL() string {
	return a.server.URL()
}

// Snapshot returns the current session state.
func (a *Agent) Snapshot() coresession.Snapshot {
	return a.session.Snapshot()
}

func (a *Agent) startWorkers() (_ []worker.Worker, err error) {
	opts := a.cfg.Options
	var workers []worker.Worker
	defer func() {
		if err != nil {
			for _, w := range workers {
				_ = worker.Stop(w)
			}
		}
	}()

	registry, err := metrics.NewRegistry(a.metrics)
	if err != nil {
		return nil, errors.Annotate(err, "registering metrics")
	}

	a.session, err = session.NewMachine(session.Config{
		Authenticator:       a.cfg.Account,
		Username:            opts.Username,
		Password:            opts.Password,
		RetryInterval:       opts.LoginRetryInterval,
		VerificationTimeout: opts.VerificationTimeout,
		Clock:               a.cfg.Clock,
		Logger:              loggo.GetLogger("icloudbackup.worker.session"),
		OnChange:            a.sessionChanged,
	})
	if err != nil {
		return nil, errors.Annotate(err, "starting session")
	}
	workers = append(workers, a.session)

	dir := backups.NewDir(opts.BackupDir, a.cfg.Clock)
	up, err := uploader.NewUploader(uploader.Config{
		Session:           a.session,
		Drive:             a.cfg.Account,
		Source:            dir,
		Folder:            opts.Folder,
		DeleteAfterUpload: opts.DeleteAfterUpload,
		StabilityDelay:    opts.StabilityDelay,
		RateLimit:         opts.UploadRateLimit,
		Clock:             a.cfg.Clock,
		Logger:            loggo.GetLogger("icloudbackup.uploader"),
		Metrics:           a.metrics,
	})
	if err != nil {
		return nil, errors.Annotate(err, "creating uploader")
	}
	a.uploads, err = uploader.NewWorker(uploader.WorkerConfig{
		Uploader: up,
		Interval: opts.UploadInterval,
		Clock:    a.cfg.Clock,
		Logger:   loggo.GetLogger("icloudbackup.worker.uploader"),
	})
	if err != nil {
		return nil, errors.Annotate(err, "starting uploader")
	}
	workers = append(workers, a.uploads)

	watcher, err := backupwatcher.NewWorker(backupwatcher.Config{
		Dir:         dir.Path(),
		SettleDelay: opts.SettleDelay,
		Trigger:     a.uploads.Trigger,
		Clock:       a.cfg.Clock,
		Logger:      loggo.GetLogger("icloudbackup.worker.backupwatcher"),
	})
	if err != nil {
		// The periodic cycle still picks up new backups.
		a.cfg.Logger.Warningf("not watching backup directory: %v", err)
	} else {
		workers = append(workers, watcher)
	}

	if a.cfg.Supervisor != nil {
		sw, err := supervisorwatcher.NewWorker(supervisorwatcher.Config{
			Supervisor: a.cfg.Supervisor,
			Local:      dir,
			Interval:   opts.SupervisorInterval,
			Trigger:    a.uploads.Trigger,
			Clock:      a.cfg.Clock,
			Logger:     loggo.GetLogger("icloudbackup.worker.supervisorwatcher"),
		})
		if err != nil {
			return nil, errors.Annotate(err, "starting supervisor watcher")
		}
		workers = append(workers, sw)
	}

	handler, err := apiserver.NewHandler(apiserver.Config{
		Session:  a.session,
		Messages: a.cfg.Messages,
		Frontend: a.cfg.Frontend,
		Gatherer: registry,
		Metrics:  a.metrics,
	})
	if err != nil {
		return nil, errors.Annotate(err, "creating API handler")
	}
	a.server, err = httpserver.NewWorker(httpserver.Config{
		Address: opts.ListenAddress,
		Handler: handler,
		Logger:  loggo.GetLogger("icloudbackup.worker.httpserver"),
	})
	if err != nil {
		return nil, errors.Annotate(err, "starting HTTP server")
	}
	workers = append(workers, a.server)
	a.cfg.Logger.Infof("serving status page on %s", a.server.URL())
	return workers, nil
}

// sessionChanged runs on the session worker's goroutine, so it only
// records the change and hands authentication over to the agent loop.
func (a *Agent) sessionChanged(snap coresession.Snapshot) {
	a.metrics.SessionChanged(snap)
	if !snap.Authenticated() {
		return
	}
	select {
	case a.authenticated <- struct{}{}:
	default:
	}
}

func (a *Agent) loop() error {
	for {
		select {
		case <-a.catacomb.Dying():
			return a.catacomb.ErrDying()
		case <-a.authenticated:
			a.cfg.Logger.Infof("session authenticated, starting upload cycle")
			a.uploads.Trigger()
		}
	}
}
