// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package uploader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/ratelimit"
	"github.com/juju/retry"

	corelogger "github.com/icloudbackup/icloudbackup/core/logger"
	coresession "github.com/icloudbackup/icloudbackup/core/session"
	"github.com/icloudbackup/icloudbackup/internal/backups"
	"github.com/icloudbackup/icloudbackup/internal/drive"
	"github.com/icloudbackup/icloudbackup/internal/metrics"
)

const (
	// folderVisibleAttempts and folderVisibleDelay bound the wait for a
	// newly created folder to show up in listings.
	folderVisibleAttempts = 3
	folderVisibleDelay    = 5 * time.Second
)

// errNotReady is returned for a backup that is still being written.
const errNotReady = errors.ConstError("backup still being written")

// Session is the view of the session worker needed by the uploader.
type Session interface {
	Snapshot() coresession.Snapshot
	Invalidate(reason string)
}

// Source lists and reads the local backups.
type Source interface {
	List() ([]backups.File, error)
	Open(name string) (io.ReadCloser, int64, error)
	Stable(ctx context.Context, name string, delay time.Duration) (bool, error)
	Remove(name string) error
}

// Metrics records the outcome of upload cycles.
type Metrics interface {
	BackupHandled(result string, size int64)
	CycleCompleted(d time.Duration, pending int)
}

// Config holds the dependencies and settings of an Uploader.
type Config struct {
	Session Session
	Drive   drive.Drive
	Source  Source

	// Folder is the remote folder that receives the backups.
	Folder string

	// DeleteAfterUpload removes the local copy once the upload has been
	// confirmed.
	DeleteAfterUpload bool

	// StabilityDelay is how long a backup's size must stay unchanged
	// before it is uploaded.
	StabilityDelay time.Duration

	// RateLimit caps the upload bandwidth in bytes per second. Zero means
	// unlimited.
	RateLimit int64

	Clock   clock.Clock
	Logger  corelogger.Logger
	Metrics Metrics
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Session == nil {
		return errors.NotValidf("missing Session")
	}
	if c.Drive == nil {
		return errors.NotValidf("missing Drive")
	}
	if c.Source == nil {
		return errors.NotValidf("missing Source")
	}
	if c.Folder == "" {
		return errors.NotValidf("empty Folder")
	}
	if c.StabilityDelay < 0 {
		return errors.NotValidf("negative StabilityDelay")
	}
	if c.RateLimit < 0 {
		return errors.NotValidf("negative RateLimit")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	return nil
}

// Result describes what an upload cycle did.
type Result struct {
	ID string

	// Skipped is set when the session was not authenticated.
	Skipped bool

	Uploaded []string
	Present  []string
	Deferred []string
	Failed   []string
}

// Uploader copies pending local backups to the remote folder. Cycles are
// serialized; a backup is never removed locally unless its upload was
// confirmed.
type Uploader struct {
	cfg Config

	mu        sync.Mutex
	processed set.Strings
}

// NewUploader returns an Uploader for the given config.
func NewUploader(cfg Config) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Uploader{
		cfg:       cfg,
		processed: set.NewStrings(),
	}, nil
}

// RunCycle performs one upload cycle. It does nothing unless the session is
// authenticated. Failures of individual backups are logged and the backup
// is retried on the next cycle; an error is only returned when the cycle
// could not continue.
func (u *Uploader) RunCycle(ctx context.Context) (Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	result := Result{ID: uuid.NewString()}
	if !u.cfg.Session.Snapshot().Authenticated() {
		u.cfg.Logger.Debugf("cycle %s skipped, session not authenticated", result.ID)
		result.Skipped = true
		return result, nil
	}

	started := u.cfg.Clock.Now()
	files, err := u.cfg.Source.List()
	if err != nil {
		return result, errors.Trace(err)
	}
	var pending []backups.File
	for _, f := range files {
		if !u.processed.Contains(f.Name) {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		u.cfg.Logger.Tracef("cycle %s: no pending backups", result.ID)
		u.cycleCompleted(started, 0)
		return result, nil
	}
	u.cfg.Logger.Infof("cycle %s: %d pending backup(s)", result.ID, len(pending))

	remote, err := u.ensureFolder(ctx)
	if err != nil {
		u.checkUnauthorized(err)
		u.cycleCompleted(started, len(pending))
		return result, errors.Trace(err)
	}
	present := set.NewStrings(remote...)

	for _, f := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if present.Contains(f.Name) {
			u.cfg.Logger.Infof("backup %q already in folder %q, skipping", f.Name, u.cfg.Folder)
			u.processed.Add(f.Name)
			result.Present = append(result.Present, f.Name)
			u.backupHandled(metrics.ResultPresent, f.Size)
			continue
		}

		size, err := u.upload(ctx, f.Name)
		switch {
		case err == nil:
			result.Uploaded = append(result.Uploaded, f.Name)
			u.backupHandled(metrics.ResultUploaded, size)
		case errors.Is(err, errNotReady):
			u.cfg.Logger.Debugf("backup %q still being written, deferring", f.Name)
			result.Deferred = append(result.Deferred, f.Name)
		case ctx.Err() != nil:
			return result, ctx.Err()
		case u.checkUnauthorized(err):
			result.Failed = append(result.Failed, f.Name)
			u.backupHandled(metrics.ResultFailed, f.Size)
			u.cycleCompleted(started, len(pending)-len(result.Uploaded)-len(result.Present))
			return result, errors.Annotatef(err, "uploading %q", f.Name)
		default:
			u.cfg.Logger.Errorf("uploading backup %q failed, will retry: %v", f.Name, err)
			result.Failed = append(result.Failed, f.Name)
			u.backupHandled(metrics.ResultFailed, f.Size)
		}
	}

	u.cycleCompleted(started, len(result.Deferred)+len(result.Failed))
	u.cfg.Logger.Infof("cycle %s finished: %d uploaded, %d already present, %d failed",
		result.ID, len(result.Uploaded), len(result.Present), len(result.Failed))
	return result, nil
}

// ensureFolder returns the contents of the remote folder, creating the
// folder first if it does not exist.
func (u *Uploader) ensureFolder(ctx context.Context) ([]string, error) {
	names, err := u.cfg.Drive.ListFolder(ctx, u.cfg.Folder)
	if err == nil {
		return names, nil
	} else if !errors.Is(err, errors.NotFound) {
		return nil, errors.Trace(err)
	}

	u.cfg.Logger.Infof("creating folder %q", u.cfg.Folder)
	if err := u.cfg.Drive.CreateFolder(ctx, u.cfg.Folder); err != nil {
		return nil, errors.Annotatef(err, "creating folder %q", u.cfg.Folder)
	}

	err = retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			names, err = u.cfg.Drive.ListFolder(ctx, u.cfg.Folder)
			return err
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errors.NotFound)
		},
		NotifyFunc: func(err error, attempt int) {
			u.cfg.Logger.Debugf("folder %q not visible yet (attempt %d)", u.cfg.Folder, attempt)
		},
		Attempts: folderVisibleAttempts,
		Delay:    folderVisibleDelay,
		Clock:    u.cfg.Clock,
		Stop:     ctx.Done(),
	})
	if err != nil {
		return nil, errors.Annotatef(retry.LastError(err), "waiting for folder %q", u.cfg.Folder)
	}
	return names, nil
}

// upload sends one backup and, on confirmed success, marks it processed
// and optionally removes the local copy.
func (u *Uploader) upload(ctx context.Context, name string) (int64, error) {
	stable, err := u.cfg.Source.Stable(ctx, name, u.cfg.StabilityDelay)
	if err != nil {
		return 0, errors.Trace(err)
	} else if !stable {
		return 0, errNotReady
	}

	r, size, err := u.cfg.Source.Open(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer func() { _ = r.Close() }()

	var body io.Reader = r
	if u.cfg.RateLimit > 0 {
		bucket := ratelimit.NewBucketWithRate(float64(u.cfg.RateLimit), u.cfg.RateLimit)
		body = ratelimit.Reader(r, bucket)
	}

	u.cfg.Logger.Infof("uploading %q (%s) to folder %q", name, humanize.Bytes(uint64(size)), u.cfg.Folder)
	started := u.cfg.Clock.Now()
	if err := u.cfg.Drive.Upload(ctx, u.cfg.Folder, name, body, size); err != nil {
		return 0, errors.Trace(err)
	}
	u.processed.Add(name)
	u.cfg.Logger.Infof("uploaded %q in %s", name, u.cfg.Clock.Now().Sub(started).Round(time.Millisecond))

	if u.cfg.DeleteAfterUpload {
		if err := u.cfg.Source.Remove(name); err != nil {
			u.cfg.Logger.Errorf("uploaded %q but could not delete local copy: %v", name, err)
		} else {
			u.cfg.Logger.Infof("deleted local backup %q", name)
		}
	}
	return size, nil
}

// checkUnauthorized invalidates the session if the remote account no
// longer accepts it, reporting whether it did.
func (u *Uploader) checkUnauthorized(err error) bool {
	if !errors.Is(err, errors.Unauthorized) {
		return false
	}
	u.cfg.Logger.Warningf("remote drive rejected the session: %v", err)
	u.cfg.Session.Invalidate(fmt.Sprintf("remote session expired: %v", err))
	return true
}

func (u *Uploader) backupHandled(result string, size int64) {
	if u.cfg.Metrics != nil {
		u.cfg.Metrics.BackupHandled(result, size)
	}
}

func (u *Uploader) cycleCompleted(started time.Time, pending int) {
	if u.cfg.Metrics != nil {
		u.cfg.Metrics.CycleCompleted(u.cfg.Clock.Now().Sub(started), pending)
	}
}
