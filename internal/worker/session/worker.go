// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package session provides the worker that owns the remote account session.
// It logs in, waits for a verification code when the account asks for one,
// and logs in again when the session expires. All state transitions go
// through the worker; everyone else reads snapshots.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/sync/semaphore"
	"gopkg.in/tomb.v2"

	corelogger "github.com/icloudbackup/icloudbackup/core/logger"
	coresession "github.com/icloudbackup/icloudbackup/core/session"
	"github.com/icloudbackup/icloudbackup/internal/drive"
)

// Config holds the dependencies and settings of a Machine.
type Config struct {
	Authenticator drive.Authenticator
	Username      string
	Password      string

	// RetryInterval is how long to wait between failed logins.
	RetryInterval time.Duration

	// VerificationTimeout is how long a login may wait for a verification
	// code before a fresh login is attempted. Zero waits forever.
	VerificationTimeout time.Duration

	Clock  clock.Clock
	Logger corelogger.Logger

	// OnChange, if set, is called after every state transition with the
	// new snapshot. It is called without any locks held.
	OnChange func(coresession.Snapshot)
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Authenticator == nil {
		return errors.NotValidf("missing Authenticator")
	}
	if c.Username == "" {
		return errors.NotValidf("empty Username")
	}
	if c.Password == "" {
		return errors.NotValidf("empty Password")
	}
	if c.RetryInterval <= 0 {
		return errors.NotValidf("non-positive RetryInterval")
	}
	if c.VerificationTimeout < 0 {
		return errors.NotValidf("negative VerificationTimeout")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	return nil
}

// Machine is a worker that drives the session through its states.
type Machine struct {
	tomb tomb.Tomb
	cfg  Config

	// mutate admits a single login, code submission or invalidation at a
	// time.
	mutate *semaphore.Weighted

	mu   sync.RWMutex
	snap coresession.Snapshot

	invalidate chan string
}

// NewMachine starts a session worker. The first login is attempted
// immediately.
func NewMachine(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	m := &Machine{
		cfg:    cfg,
		mutate: semaphore.NewWeighted(1),
		snap: coresession.Snapshot{
			State: coresession.Unauthenticated,
			Since: cfg.Clock.Now(),
		},
		invalidate: make(chan string, 1),
	}
	m.tomb.Go(m.loop)
	return m, nil
}

// Kill is part of the worker.Worker interface.
func (m *Machine) Kill() {
	m.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (m *Machine) Wait() error {
	return m.tomb.Wait()
}

// Snapshot returns the current session state. It never blocks on a
// transition in progress.
func (m *Machine) Snapshot() coresession.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// SubmitCode forwards a verification code to the remote account.
//
// A code that is not exactly six digits is a NotValid error and is never
// sent. ErrNotAwaitingCode is returned if no code was asked for, ErrBusy if
// another transition is in flight and ErrCodeRejected if the remote account
// refused the code. Any other error is a transport failure; in both of the
// last two cases the session keeps waiting for a code.
func (m *Machine) SubmitCode(ctx context.Context, code string) error {
	if err := coresession.ValidateCode(code); err != nil {
		return errors.Trace(err)
	}
	if !m.mutate.TryAcquire(1) {
		return coresession.ErrBusy
	}
	defer m.mutate.Release(1)

	if m.Snapshot().State != coresession.AwaitingTwoFactor {
		return coresession.ErrNotAwaitingCode
	}

	err := m.cfg.Authenticator.SubmitCode(ctx, code)
	if errors.Is(err, drive.ErrInvalidCode) {
		m.cfg.Logger.Warningf("verification code rejected by remote account")
		m.transition(coresession.AwaitingTwoFactor, coresession.ErrCodeRejected.Error(), false)
		return coresession.ErrCodeRejected
	} else if err != nil {
		m.cfg.Logger.Errorf("submitting verification code: %v", err)
		m.transition(coresession.AwaitingTwoFactor, err.Error(), false)
		return errors.Annotate(err, "submitting verification code")
	}

	if err := m.cfg.Authenticator.TrustSession(ctx); err != nil {
		m.cfg.Logger.Warningf("session verified but could not be trusted: %v", err)
	}
	m.cfg.Logger.Infof("verification code accepted, session authenticated")
	m.transition(coresession.Authenticated, "", false)
	return nil
}

// Invalidate reports that the remote account no longer accepts the
// session. The worker drops back to unauthenticated and logs in again. It
// never blocks; repeated calls before the worker reacts are coalesced.
func (m *Machine) Invalidate(reason string) {
	select {
	case m.invalidate <- reason:
	default:
	}
}

func (m *Machine) loop() error {
	ctx := m.tomb.Context(context.Background())

	m.login(ctx)

	timer := m.cfg.Clock.NewTimer(m.cfg.RetryInterval)
	defer timer.Stop()

	for {
		select {
		case <-m.tomb.Dying():
			return tomb.ErrDying

		case reason := <-m.invalidate:
			if m.expire(ctx, reason) {
				m.login(ctx)
			}
			timer.Reset(m.cfg.RetryInterval)

		case <-timer.Chan():
			m.tick(ctx)
			timer.Reset(m.cfg.RetryInterval)
		}
	}
}

func (m *Machine) tick(ctx context.Context) {
	snap := m.Snapshot()
	switch snap.State {
	case coresession.Unauthenticated:
		m.login(ctx)
	case coresession.AwaitingTwoFactor:
		timeout := m.cfg.VerificationTimeout
		if timeout == 0 || m.cfg.Clock.Now().Sub(snap.Since) < timeout {
			return
		}
		m.cfg.Logger.Warningf("no verification code received after %v, logging in again", timeout)
		m.login(ctx)
	}
}

// login attempts a fresh credential exchange. A failure leaves the session
// unauthenticated with the failure recorded; the retry timer takes it from
// there.
func (m *Machine) login(ctx context.Context) {
	if err := m.mutate.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.mutate.Release(1)

	m.cfg.Logger.Debugf("logging in as %q", m.cfg.Username)
	status, err := m.cfg.Authenticator.Login(ctx, m.cfg.Username, m.cfg.Password)
	switch {
	case ctx.Err() != nil:
		return
	case errors.Is(err, errors.Unauthorized):
		m.cfg.Logger.Errorf("login rejected: %v", err)
		m.transition(coresession.Unauthenticated, "login failed: "+err.Error(), true)
	case err != nil:
		m.cfg.Logger.Errorf("login failed, retrying in %v: %v", m.cfg.RetryInterval, err)
		m.transition(coresession.Unauthenticated, "login failed: "+err.Error(), true)
	case status == drive.LoginNeedsTwoFactor:
		m.cfg.Logger.Infof("two-factor authentication required, waiting for verification code")
		m.transition(coresession.AwaitingTwoFactor, "", true)
	default:
		m.cfg.Logger.Infof("logged in as %q", m.cfg.Username)
		m.transition(coresession.Authenticated, "", true)
	}
}

// expire drops an authenticated session. It reports whether the session
// was authenticated.
func (m *Machine) expire(ctx context.Context, reason string) bool {
	if err := m.mutate.Acquire(ctx, 1); err != nil {
		return false
	}
	defer m.mutate.Release(1)

	if m.Snapshot().State != coresession.Authenticated {
		return false
	}
	m.cfg.Logger.Warningf("remote session expired: %s", reason)
	m.transition(coresession.Unauthenticated, reason, false)
	return true
}

// transition must be called with the mutate semaphore held. Since is moved
// on when the state changes, or always if restart is set.
func (m *Machine) transition(state coresession.State, lastError string, restart bool) {
	m.mu.Lock()
	if restart || m.snap.State != state {
		m.snap.Since = m.cfg.Clock.Now()
	}
	m.snap.State = state
	m.snap.LastError = lastError
	snap := m.snap
	m.mu.Unlock()

	if m.cfg.OnChange != nil {
		m.cfg.OnChange(snap)
	}
}
