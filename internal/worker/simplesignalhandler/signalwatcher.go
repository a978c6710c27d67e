// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package simplesignalhandler turns a process signal into a worker error,
// so that the add-on's workers shut down when the supervisor stops the
// container.
package simplesignalhandler

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/icloudbackup/icloudbackup/core/logger"
)

// ErrTerminated is the default error returned for a stop signal.
const ErrTerminated = errors.ConstError("terminated by signal")

// SignalHandlerFunc is func definition for returning an error based on a
// received signal.
type SignalHandlerFunc func(os.Signal) error

// Config holds the dependencies of a SignalWatcher.
type Config struct {
	// Signals delivers the signals to act on, usually from signal.Notify.
	Signals <-chan os.Signal

	// Handler maps the first signal received to the worker's error.
	Handler SignalHandlerFunc

	Logger logger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Signals == nil {
		return errors.NotValidf("missing Signals")
	}
	if c.Handler == nil {
		return errors.NotValidf("missing Handler")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	return nil
}

// SignalWatcher is the worker responsible for watching signals and returning
// the appropriate error from a handler.
type SignalWatcher struct {
	catacomb catacomb.Catacomb
	cfg      Config
}

// NewSignalWatcher starts a worker that dies with the handler's error once
// a signal arrives.
func NewSignalWatcher(cfg Config) (*SignalWatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	s := &SignalWatcher{cfg: cfg}
	if err := catacomb.Invoke(catacomb.Plan{
		Name: "signal-watcher",
		Site: &s.catacomb,
		Work: s.watch,
	}); err != nil {
		return nil, errors.Annotate(err, "creating catacomb plan")
	}
	return s, nil
}

// SignalHandler returns a handler mapping signals through signalMap, and
// any other signal to defaultErr.
func SignalHandler(defaultErr error, signalMap map[os.Signal]error) SignalHandlerFunc {
	return func(sig os.Signal) error {
		if err, ok := signalMap[sig]; ok {
			return err
		}
		return defaultErr
	}
}

// Kill implements worker.Kill
func (s *SignalWatcher) Kill() {
	s.catacomb.Kill(nil)
}

// Wait implements worker.Wait
func (s *SignalWatcher) Wait() error {
	return s.catacomb.Wait()
}

func (s *SignalWatcher) watch() error {
	select {
	case sig, ok := <-s.cfg.Signals:
		if !ok {
			return errors.New("signal channel closed unexpectedly")
		}
		s.cfg.Logger.Infof("received %v, shutting down", sig)
		return s.cfg.Handler(sig)
	case <-s.catacomb.Dying():
		return s.catacomb.ErrDying()
	}
}
