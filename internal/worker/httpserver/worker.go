// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package httpserver provides a worker that serves an http.Handler until it
// is killed, then shuts the server down gracefully.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"

	corelogger "github.com/icloudbackup/icloudbackup/core/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Config holds the settings of the HTTP server worker.
type Config struct {
	// Address is the TCP address to listen on, such as ":5000".
	Address string

	Handler http.Handler

	// ShutdownTimeout bounds how long in-flight requests may take to
	// complete once the worker is killed.
	ShutdownTimeout time.Duration

	Logger corelogger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.NotValidf("empty Address")
	}
	if c.Handler == nil {
		return errors.NotValidf("missing Handler")
	}
	if c.ShutdownTimeout < 0 {
		return errors.NotValidf("negative ShutdownTimeout")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	return nil
}

// Worker serves HTTP.
type Worker struct {
	tomb     tomb.Tomb
	cfg      Config
	listener net.Listener
	server   *http.Server
}

// NewWorker listens on the configured address and starts serving.
func NewWorker(cfg Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, errors.Annotatef(err, "listening on %q", cfg.Address)
	}
	w := &Worker{
		cfg:      cfg,
		listener: listener,
		server: &http.Server{
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	w.tomb.Go(w.loop)
	return w, nil
}

// NewWorkerShim calls through to NewWorker, and exists only to return a
// worker.Worker.
func NewWorkerShim(cfg Config) (worker.Worker, error) {
	return NewWorker(cfg)
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.tomb.Wait()
}

// URL returns the base URL the server is reachable at.
func (w *Worker) URL() string {
	return "http://" + w.listener.Addr().String()
}

func (w *Worker) loop() error {
	served := make(chan error, 1)
	go func() {
		w.cfg.Logger.Infof("listening on %s", w.listener.Addr())
		served <- w.server.Serve(w.listener)
	}()

	select {
	case err := <-served:
		return errors.Annotate(err, "serving HTTP")
	case <-w.tomb.Dying():
	}

	timeout := w.cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	w.cfg.Logger.Debugf("shutting down HTTP server")
	if err := w.server.Shutdown(ctx); err != nil {
		w.cfg.Logger.Warningf("HTTP server did not shut down cleanly: %v", err)
		_ = w.server.Close()
	}
	if err := <-served; err != nil && err != http.ErrServerClosed {
		return errors.Annotate(err, "serving HTTP")
	}
	return tomb.ErrDying
}
