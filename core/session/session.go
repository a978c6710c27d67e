// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package session

import (
	"time"

	"github.com/juju/errors"
)

// State describes where the remote account session is in its
// authentication lifecycle.
type State string

const (
	// Unauthenticated is the initial state, and the state after a failed
	// login or an expired session.
	Unauthenticated State = "unauthenticated"

	// AwaitingTwoFactor means the remote account accepted the credentials
	// and is waiting for a verification code.
	AwaitingTwoFactor State = "awaiting-2fa"

	// Authenticated means uploads may proceed.
	Authenticated State = "authenticated"
)

// Validate returns an error if the state is not one of the known states.
func (s State) Validate() error {
	switch s {
	case Unauthenticated, AwaitingTwoFactor, Authenticated:
		return nil
	}
	return errors.NotValidf("session state %q", string(s))
}

// Snapshot is a consistent, read-only copy of the session state.
type Snapshot struct {
	State State

	// LastError holds the message of the most recent failed transition.
	// It is cleared once the session becomes authenticated.
	LastError string

	// Since is when the session entered State.
	Since time.Time
}

// Authenticated reports whether uploads may proceed.
func (s Snapshot) Authenticated() bool {
	return s.State == Authenticated
}

// RequiresTwoFactor reports whether a verification code is needed. It is
// never true at the same time as Authenticated.
func (s Snapshot) RequiresTwoFactor() bool {
	return s.State == AwaitingTwoFactor
}
