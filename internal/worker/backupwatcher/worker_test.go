// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backupwatcher_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock/testclock"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4"
	gc "gopkg.in/check.v1"

	"github.com/icloudbackup/icloudbackup/internal/testhelpers"
	"github.com/icloudbackup/icloudbackup/internal/worker/backupwatcher"
)

const settleDelay = 5 * time.Second

type watcherSuite struct {
	testhelpers.BaseSuite

	dir      string
	clock    *testclock.Clock
	triggers chan struct{}
}

var _ = gc.Suite(&watcherSuite{})

func (s *watcherSuite) SetUpTest(c *gc.C) {
	s.BaseSuite.SetUpTest(c)
	s.dir = c.MkDir()
	s.clock = testclock.NewClock(time.Now())
	s.triggers = make(chan struct{}, 10)
}

func (s *watcherSuite) newWorker(c *gc.C) *backupwatcher.Worker {
	w, err := backupwatcher.NewWorker(backupwatcher.Config{
		Dir:         s.dir,
		SettleDelay: settleDelay,
		Trigger:     func() { s.triggers <- struct{}{} },
		Clock:       s.clock,
		Logger:      testhelpers.NewCheckLogger(c),
	})
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(c *gc.C) {
		c.Check(worker.Stop(w), jc.ErrorIsNil)
	})
	return w
}

func (s *watcherSuite) write(c *gc.C, name string) {
	err := os.WriteFile(filepath.Join(s.dir, name), []byte("data"), 0644)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *watcherSuite) TestValidateConfig(c *gc.C) {
	_, err := backupwatcher.NewWorker(backupwatcher.Config{Dir: s.dir})
	c.Assert(err, gc.ErrorMatches, "non-positive SettleDelay not valid")
}

func (s *watcherSuite) TestMissingDir(c *gc.C) {
	_, err := backupwatcher.NewWorker(backupwatcher.Config{
		Dir:         filepath.Join(s.dir, "missing"),
		SettleDelay: settleDelay,
		Trigger:     func() {},
		Clock:       s.clock,
		Logger:      testhelpers.NoopLogger{},
	})
	c.Assert(err, gc.ErrorMatches, `watching ".*missing": .*`)
}

func (s *watcherSuite) TestNewArchiveTriggersAfterSettling(c *gc.C) {
	s.newWorker(c)

	s.write(c, "full.tar")
	select {
	case <-s.triggers:
		c.Fatalf("triggered before settling")
	case <-time.After(testhelpers.ShortWait):
	}

	c.Assert(s.clock.WaitAdvance(settleDelay, testhelpers.LongWait, 1), jc.ErrorIsNil)
	select {
	case <-s.triggers:
	case <-time.After(testhelpers.LongWait):
		c.Fatalf("timed out waiting for trigger")
	}
}

func (s *watcherSuite) TestRenamedArchiveTriggers(c *gc.C) {
	s.newWorker(c)

	s.write(c, "full.tar.part")
	err := os.Rename(filepath.Join(s.dir, "full.tar.part"), filepath.Join(s.dir, "full.tar"))
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(s.clock.WaitAdvance(settleDelay, testhelpers.LongWait, 1), jc.ErrorIsNil)
	select {
	case <-s.triggers:
	case <-time.After(testhelpers.LongWait):
		c.Fatalf("timed out waiting for trigger")
	}
}

func (s *watcherSuite) TestIgnoresOtherFiles(c *gc.C) {
	s.newWorker(c)

	s.write(c, "notes.txt")
	s.write(c, ".partial.tar")
	time.Sleep(testhelpers.ShortWait)
	s.clock.Advance(settleDelay)

	select {
	case <-s.triggers:
		c.Fatalf("unexpected trigger")
	case <-time.After(testhelpers.ShortWait):
	}
}
