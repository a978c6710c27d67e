// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command icloudbackupd is the add-on daemon. It keeps the remote session
// alive, serves the status page and uploads new backups.
//
// Usage:
//
//	icloudbackupd [flags]
//	icloudbackupd [flags] <username> <password> <folder> <delete_after_upload>
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/mutex/v2"
	"github.com/juju/worker/v4"

	"github.com/icloudbackup/icloudbackup/agent"
	"github.com/icloudbackup/icloudbackup/internal/config"
	"github.com/icloudbackup/icloudbackup/internal/drive/httpdrive"
	"github.com/icloudbackup/icloudbackup/internal/frontend"
	"github.com/icloudbackup/icloudbackup/internal/i18n"
	"github.com/icloudbackup/icloudbackup/internal/logging"
	"github.com/icloudbackup/icloudbackup/internal/supervisor"
	"github.com/icloudbackup/icloudbackup/internal/worker/simplesignalhandler"
)

var logger = loggo.GetLogger("icloudbackup.cmd.icloudbackupd")

const (
	defaultOptionsPath = "/data/options.json"

	instanceLockName    = "icloudbackupd"
	instanceLockTimeout = 5 * time.Second

	supervisorTokenEnv = "SUPERVISOR_TOKEN"
)

// overridable lists the option keys that may also be given as flags.
var overridable = []string{
	config.BackupDir,
	config.SessionDir,
	config.DriveEndpoint,
	config.ListenAddress,
	config.UploadInterval,
	config.UploadRateLimit,
	config.LoggingConfig,
	config.LogFile,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if errors.Is(err, gnuflag.ErrHelp) {
		return 0
	} else if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 2
	}

	logFile, err := logging.Configure(cfg.LoggingConfig, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 2
	}
	defer logFile.Close()

	if err := runAgent(cfg); err != nil && !errors.Is(err, simplesignalhandler.ErrTerminated) {
		logger.Errorf("%v", err)
		return 1
	}
	return 0
}

// parseArgs builds the add-on options from the options file, the four
// positional arguments and the flags, later sources taking precedence.
func parseArgs(args []string, stderr io.Writer) (config.Config, error) {
	fs := gnuflag.NewFlagSet("icloudbackupd", gnuflag.ContinueOnError)
	fs.SetOutput(stderr)

	var optionsPath string
	fs.StringVar(&optionsPath, "config", defaultOptionsPath, "add-on options file (YAML or JSON)")
	for _, key := range overridable {
		fs.String(key, "", fmt.Sprintf("override the %q option", key))
	}
	if err := fs.Parse(true, args); err != nil {
		return config.Config{}, err
	}

	attrs := make(map[string]any)
	positional := fs.Args()
	switch len(positional) {
	case 0:
		fileAttrs, err := config.ReadAttrs(optionsPath)
		if err != nil {
			return config.Config{}, errors.Trace(err)
		}
		attrs = fileAttrs
	case 4:
		// The options file is optional when the credentials are given
		// on the command line.
		fileAttrs, err := config.ReadAttrs(optionsPath)
		if err == nil {
			attrs = fileAttrs
		} else if !errors.Is(err, errors.NotFound) {
			return config.Config{}, errors.Trace(err)
		}
		attrs[config.Username] = positional[0]
		attrs[config.Password] = positional[1]
		attrs[config.Folder] = positional[2]
		attrs[config.DeleteAfterUpload] = positional[3]
	default:
		return config.Config{}, errors.Errorf(
			"expected no arguments or <username> <password> <folder> <delete_after_upload>, got %d argument(s)",
			len(positional))
	}

	fs.Visit(func(f *gnuflag.Flag) {
		if f.Name != "config" {
			attrs[f.Name] = f.Value.String()
		}
	})
	return config.Parse(attrs)
}

func runAgent(cfg config.Config) error {
	// Only one daemon may own the session directory.
	releaser, err := mutex.Acquire(mutex.Spec{
		Name:    instanceLockName,
		Clock:   clock.WallClock,
		Delay:   time.Second,
		Timeout: instanceLockTimeout,
	})
	if err != nil {
		return errors.Annotate(err, "another icloudbackupd is running")
	}
	defer releaser.Release()

	account, err := httpdrive.New(httpdrive.Config{
		Endpoint:   cfg.DriveEndpoint,
		SessionDir: cfg.SessionDir,
	})
	if err != nil {
		return errors.Annotate(err, "creating drive client")
	}

	agentCfg := agent.Config{
		Options:  cfg,
		Account:  account,
		Frontend: frontend.FS(),
		Messages: i18n.Default(),
		Clock:    clock.WallClock,
		Logger:   loggo.GetLogger("icloudbackup.agent"),
	}
	if token := os.Getenv(supervisorTokenEnv); token != "" {
		client, err := supervisor.NewClient(cfg.SupervisorEndpoint, token, nil)
		if err != nil {
			return errors.Annotate(err, "creating supervisor client")
		}
		agentCfg.Supervisor = client
	} else {
		logger.Infof("%s not set, not watching supervisor backups", supervisorTokenEnv)
	}

	a, err := agent.New(agentCfg)
	if err != nil {
		return errors.Trace(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	signals, err := simplesignalhandler.NewSignalWatcher(simplesignalhandler.Config{
		Signals: sigCh,
		Handler: simplesignalhandler.SignalHandler(simplesignalhandler.ErrTerminated, nil),
		Logger:  loggo.GetLogger("icloudbackup.worker.signals"),
	})
	if err != nil {
		_ = worker.Stop(a)
		return errors.Trace(err)
	}

	select {
	case <-worker.Dead(a):
	case <-worker.Dead(signals):
	}
	signalErr := worker.Stop(signals)
	if err := worker.Stop(a); err != nil {
		return errors.Trace(err)
	}
	return signalErr
}
