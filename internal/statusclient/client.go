// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package statusclient keeps an operator view in sync with the session
// status of the add-on, and relays verification codes typed by the
// operator.
//
// A single loop owns all view state. Requests run in their own goroutines
// and hand their results back to the loop, so the view is never touched
// concurrently and at most one status request and one submission are in
// flight at any time.
package statusclient

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"gopkg.in/tomb.v2"

	corelogger "github.com/icloudbackup/icloudbackup/core/logger"
	coresession "github.com/icloudbackup/icloudbackup/core/session"
	"github.com/icloudbackup/icloudbackup/internal/i18n"
)

const (
	// DefaultPollInterval is how often the status is checked.
	DefaultPollInterval = 2000 * time.Millisecond

	// DefaultFollowUpDelay is how soon after an accepted code the status
	// is checked again.
	DefaultFollowUpDelay = 1000 * time.Millisecond
)

// View is one of the mutually exclusive views of the status page.
type View string

const (
	// Loading is shown until the first status response arrives.
	Loading View = "loading"
	// Running is shown while no verification code is needed.
	Running View = "running"
	// NeedsCode is shown while the server waits for a verification code.
	NeedsCode View = "needs-code"
)

// MessageKind classifies a message shown to the operator.
type MessageKind string

const (
	Info    MessageKind = "info"
	Success MessageKind = "success"
	Error   MessageKind = "error"
)

// Renderer displays the view. All methods are called from the client's
// loop, never concurrently.
type Renderer interface {
	// Render switches to view. status is the response that caused the
	// switch, and is empty for Loading.
	Render(view View, status Status)

	// ShowMessage shows a localized message next to the code input.
	ShowMessage(kind MessageKind, text string)

	// SetSubmitEnabled enables or disables code submission.
	SetSubmitEnabled(enabled bool)

	// ClearInput empties the code input.
	ClearInput()

	// FocusInput moves the input focus to the code input.
	FocusInput()
}

// Config holds the dependencies and settings of a Client.
type Config struct {
	API      API
	Renderer Renderer

	// Localizer defaults to the fallback language of i18n.Default.
	Localizer i18n.Localizer

	// PollInterval and FollowUpDelay default to DefaultPollInterval and
	// DefaultFollowUpDelay.
	PollInterval  time.Duration
	FollowUpDelay time.Duration

	Clock  clock.Clock
	Logger corelogger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.API == nil {
		return errors.NotValidf("missing API")
	}
	if c.Renderer == nil {
		return errors.NotValidf("missing Renderer")
	}
	if c.PollInterval < 0 || c.FollowUpDelay < 0 {
		return errors.NotValidf("negative interval")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	return nil
}

type statusResult struct {
	status Status
	err    error
}

type submitResult struct {
	result SendResult
	err    error
}

// Client is a worker running the status loop.
type Client struct {
	tomb tomb.Tomb
	cfg  Config

	submits       chan string
	idleRequests  chan chan struct{}
	statusResults chan statusResult
	submitResults chan submitResult

	// Owned by the loop.
	view        View
	polling     bool
	submitting  bool
	followUp    <-chan time.Time
	idleWaiters []chan struct{}
}

// New starts the status loop. The first status check is issued
// immediately.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FollowUpDelay == 0 {
		cfg.FollowUpDelay = DefaultFollowUpDelay
	}
	if cfg.Localizer.IsZero() {
		bundle := i18n.Default()
		cfg.Localizer = bundle.Localizer(bundle.Match())
	}
	c := &Client{
		cfg:           cfg,
		submits:       make(chan string),
		idleRequests:  make(chan chan struct{}),
		statusResults: make(chan statusResult),
		submitResults: make(chan submitResult),
		view:          Loading,
	}
	c.tomb.Go(c.loop)
	return c, nil
}

// Kill is part of the worker.Worker interface.
func (c *Client) Kill() {
	c.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (c *Client) Wait() error {
	return c.tomb.Wait()
}

// SubmitVerification hands the operator's input to the loop. Everything
// but digits is stripped; anything other than six digits is refused with
// a validation message and never reaches the server.
func (c *Client) SubmitVerification(raw string) {
	select {
	case c.submits <- raw:
	case <-c.tomb.Dying():
	}
}

// Idle returns a channel that is closed once no code submission is in
// flight, after the outcome of any submission handed over before the call
// has been shown. It is also closed when the client stops.
func (c *Client) Idle() <-chan struct{} {
	ch := make(chan struct{})
	select {
	case c.idleRequests <- ch:
	case <-c.tomb.Dying():
		close(ch)
	}
	return ch
}

func (c *Client) loop() error {
	c.cfg.Renderer.Render(Loading, Status{})
	c.poll()

	timer := c.cfg.Clock.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-c.tomb.Dying():
			for _, ch := range c.idleWaiters {
				close(ch)
			}
			return tomb.ErrDying

		case <-timer.Chan():
			c.poll()
			timer.Reset(c.cfg.PollInterval)

		case <-c.followUp:
			c.followUp = nil
			c.poll()

		case raw := <-c.submits:
			c.submit(raw)

		case ch := <-c.idleRequests:
			if c.submitting {
				c.idleWaiters = append(c.idleWaiters, ch)
			} else {
				close(ch)
			}

		case res := <-c.statusResults:
			c.polling = false
			c.reconcile(res)

		case res := <-c.submitResults:
			c.submitting = false
			c.submitted(res)
			for _, ch := range c.idleWaiters {
				close(ch)
			}
			c.idleWaiters = nil
		}
	}
}

// poll issues a status request unless one is already in flight.
func (c *Client) poll() {
	if c.polling {
		return
	}
	c.polling = true
	c.tomb.Go(func() error {
		ctx := c.tomb.Context(context.Background())
		status, err := c.cfg.API.Status(ctx)
		select {
		case c.statusResults <- statusResult{status: status, err: err}:
		case <-c.tomb.Dying():
		}
		return nil
	})
}

// reconcile moves to the view matching the status. A failed request
// leaves the view alone; the next tick tries again.
func (c *Client) reconcile(res statusResult) {
	if res.err != nil {
		c.cfg.Logger.Debugf("status check failed: %v", res.err)
		return
	}
	view := Running
	if res.status.RequiresTwoFactor {
		view = NeedsCode
	}
	if view == c.view {
		return
	}
	c.cfg.Logger.Debugf("view %s -> %s", c.view, view)
	c.view = view
	c.cfg.Renderer.Render(view, res.status)
	if view == NeedsCode {
		c.cfg.Renderer.FocusInput()
	}
}

func (c *Client) submit(raw string) {
	if c.submitting {
		c.cfg.Logger.Debugf("submission already in flight, ignoring")
		return
	}
	code := coresession.NormalizeCode(raw)
	if err := coresession.ValidateCode(code); err != nil {
		c.cfg.Renderer.ShowMessage(Error, c.cfg.Localizer.Message(i18n.InvalidFormat))
		return
	}

	c.submitting = true
	c.cfg.Renderer.SetSubmitEnabled(false)
	c.cfg.Renderer.ShowMessage(Info, c.cfg.Localizer.Message(i18n.Submitting))
	c.tomb.Go(func() error {
		ctx := c.tomb.Context(context.Background())
		result, err := c.cfg.API.SendCode(ctx, code)
		select {
		case c.submitResults <- submitResult{result: result, err: err}:
		case <-c.tomb.Dying():
		}
		return nil
	})
}

func (c *Client) submitted(res submitResult) {
	c.cfg.Renderer.SetSubmitEnabled(true)

	var statusErr *StatusError
	switch {
	case errors.As(res.err, &statusErr):
		c.cfg.Logger.Warningf("code submission failed: %v", res.err)
		c.cfg.Renderer.ShowMessage(Error, c.cfg.Localizer.Message(i18n.ServerError, statusErr.Code))
	case res.err != nil:
		c.cfg.Logger.Warningf("code submission failed: %v", res.err)
		c.cfg.Renderer.ShowMessage(Error, c.cfg.Localizer.Message(i18n.NetworkError))
	case !res.result.Success:
		c.cfg.Renderer.ShowMessage(Error, c.cfg.Localizer.Message(i18n.CodeRejected))
	default:
		c.cfg.Renderer.ShowMessage(Success, c.cfg.Localizer.Message(i18n.CodeAccepted))
		c.cfg.Renderer.ClearInput()
		c.followUp = c.cfg.Clock.After(c.cfg.FollowUpDelay)
	}
}
