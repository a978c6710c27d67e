// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package logger

// Logger is the logging interface accepted by workers. A loggo.Logger
// satisfies it, as do the test loggers.
type Logger interface {
	Criticalf(msg string, args ...any)
	Errorf(msg string, args ...any)
	Warningf(msg string, args ...any)
	Infof(msg string, args ...any)
	Debugf(msg string, args ...any)
	Tracef(msg string, args ...any)
}
