// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testhelpers

import (
	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	gc "gopkg.in/check.v1"
)

// BaseSuite isolates a test from the environment and resets the logging
// configuration so that one suite cannot change another's log levels.
type BaseSuite struct {
	testing.IsolationSuite
}

func (s *BaseSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	loggo.ResetLogging()
	s.AddCleanup(func(*gc.C) {
		loggo.ResetLogging()
	})
}
