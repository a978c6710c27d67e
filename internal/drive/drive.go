// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package drive defines the narrow view of the remote storage account used
// by the uploader. The account's own authentication protocol and session
// cache are owned by the implementation.
package drive

import (
	"context"
	"io"

	"github.com/juju/errors"
)

//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/account_mock.go github.com/icloudbackup/icloudbackup/internal/drive Account

// LoginStatus is the outcome of a successful credential exchange.
type LoginStatus string

const (
	// LoginOK means the session is usable straight away.
	LoginOK LoginStatus = "ok"
	// LoginNeedsTwoFactor means a verification code must be submitted
	// before the session is usable.
	LoginNeedsTwoFactor LoginStatus = "needs_2fa"
)

// ErrInvalidCode is returned by SubmitCode when the remote account
// rejected the verification code.
const ErrInvalidCode = errors.ConstError("invalid verification code")

// Authenticator establishes the remote session.
type Authenticator interface {
	// Login exchanges credentials for a session. Bad credentials are
	// reported as an errors.Unauthorized error; any other error is a
	// transport failure.
	Login(ctx context.Context, username, password string) (LoginStatus, error)

	// SubmitCode completes a two-factor login. A rejected code is
	// reported as ErrInvalidCode.
	SubmitCode(ctx context.Context, code string) error

	// TrustSession asks the remote account to remember this session so
	// that later logins do not require another code.
	TrustSession(ctx context.Context) error
}

// Drive is the file storage side of the account. Any call may return an
// errors.Unauthorized error once the remote session has expired.
type Drive interface {
	// ListFolder returns the names of the items in the folder, or an
	// errors.NotFound error if the folder does not exist.
	ListFolder(ctx context.Context, folder string) ([]string, error)

	// CreateFolder creates the named top level folder.
	CreateFolder(ctx context.Context, folder string) error

	// Upload stores size bytes read from r as name inside folder.
	Upload(ctx context.Context, folder, name string, r io.Reader, size int64) error
}

// Account is a remote storage account.
type Account interface {
	Authenticator
	Drive
}
