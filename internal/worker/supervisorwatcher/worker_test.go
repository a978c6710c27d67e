// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package supervisorwatcher_test

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4"
	gc "gopkg.in/check.v1"

	"github.com/icloudbackup/icloudbackup/internal/backups"
	"github.com/icloudbackup/icloudbackup/internal/supervisor"
	"github.com/icloudbackup/icloudbackup/internal/testhelpers"
	"github.com/icloudbackup/icloudbackup/internal/worker/supervisorwatcher"
)

const interval = 5 * time.Minute

type fakeSupervisor struct {
	*testing.Stub

	mu      sync.Mutex
	backups []supervisor.Backup
	polled  chan struct{}
}

func (f *fakeSupervisor) Backups(ctx context.Context) ([]supervisor.Backup, error) {
	f.MethodCall(f, "Backups")
	defer func() { f.polled <- struct{}{} }()
	if err := f.NextErr(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backups, nil
}

func (f *fakeSupervisor) set(backups ...supervisor.Backup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backups = backups
}

type fakeLocal []backups.File

func (f fakeLocal) List() ([]backups.File, error) {
	return f, nil
}

type watcherSuite struct {
	testhelpers.BaseSuite

	supervisor *fakeSupervisor
	clock      *testclock.Clock
	triggers   chan struct{}
}

var _ = gc.Suite(&watcherSuite{})

func (s *watcherSuite) SetUpTest(c *gc.C) {
	s.BaseSuite.SetUpTest(c)
	s.supervisor = &fakeSupervisor{
		Stub:   &testing.Stub{},
		polled: make(chan struct{}, 10),
	}
	s.clock = testclock.NewClock(time.Now())
	s.triggers = make(chan struct{}, 10)
}

func (s *watcherSuite) newWorker(c *gc.C, local fakeLocal) {
	w, err := supervisorwatcher.NewWorker(supervisorwatcher.Config{
		Supervisor: s.supervisor,
		Local:      local,
		Interval:   interval,
		Trigger:    func() { s.triggers <- struct{}{} },
		Clock:      s.clock,
		Logger:     testhelpers.NewCheckLogger(c),
	})
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(c *gc.C) {
		c.Check(worker.Stop(w), jc.ErrorIsNil)
	})
}

func (s *watcherSuite) waitForPoll(c *gc.C) {
	select {
	case <-s.supervisor.polled:
	case <-time.After(testhelpers.LongWait):
		c.Fatalf("timed out waiting for poll")
	}
}

func (s *watcherSuite) waitForTrigger(c *gc.C) {
	select {
	case <-s.triggers:
	case <-time.After(testhelpers.LongWait):
		c.Fatalf("timed out waiting for trigger")
	}
}

func (s *watcherSuite) assertNoTrigger(c *gc.C) {
	select {
	case <-s.triggers:
		c.Fatalf("unexpected trigger")
	case <-time.After(testhelpers.ShortWait):
	}
}

func (s *watcherSuite) TestNewBackupWithLocalFileTriggers(c *gc.C) {
	s.supervisor.set(supervisor.Backup{Slug: "abc123"})
	s.newWorker(c, fakeLocal{{Name: "abc123.tar"}})

	s.waitForPoll(c)
	s.waitForTrigger(c)

	// Known slugs do not trigger again.
	c.Assert(s.clock.WaitAdvance(interval, testhelpers.LongWait, 1), jc.ErrorIsNil)
	s.waitForPoll(c)
	s.assertNoTrigger(c)
}

func (s *watcherSuite) TestNewBackupWithoutLocalFile(c *gc.C) {
	s.supervisor.set(supervisor.Backup{Slug: "abc123"})
	s.newWorker(c, fakeLocal{{Name: "other.tar"}})

	s.waitForPoll(c)
	s.assertNoTrigger(c)
}

func (s *watcherSuite) TestErrorRetriedNextTick(c *gc.C) {
	s.supervisor.SetErrors(errors.New("connection refused"))
	s.supervisor.set(supervisor.Backup{Slug: "abc123"})
	s.newWorker(c, fakeLocal{{Name: "abc123.tar"}})

	s.waitForPoll(c)
	s.assertNoTrigger(c)

	c.Assert(s.clock.WaitAdvance(interval, testhelpers.LongWait, 1), jc.ErrorIsNil)
	s.waitForPoll(c)
	s.waitForTrigger(c)
	s.supervisor.CheckCallNames(c, "Backups", "Backups")
}
