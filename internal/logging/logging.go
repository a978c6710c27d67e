// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package logging configures the process loggers.
package logging

import (
	"io"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
)

const (
	fileWriterName = "file"

	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
)

// Configure applies the logger level specification, for example
// "<root>=INFO;icloudbackup.worker.session=DEBUG", and, when logFile is
// not empty, also writes log entries to a rotating file. The returned
// closer releases the file.
func Configure(spec, logFile string) (io.Closer, error) {
	if err := loggo.ConfigureLoggers(spec); err != nil {
		return nil, errors.Annotatef(err, "configuring loggers %q", spec)
	}
	if logFile == "" {
		return io.NopCloser(nil), nil
	}

	ljLogger := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		Compress:   true,
	}
	if err := loggo.RegisterWriter(fileWriterName, loggo.NewSimpleWriter(ljLogger, loggo.DefaultFormatter)); err != nil {
		_ = ljLogger.Close()
		return nil, errors.Annotate(err, "registering log file writer")
	}
	loggo.GetLogger("icloudbackup.logging").Debugf(
		"created rotating log file %q with max size %d MB and max backups %d",
		ljLogger.Filename, ljLogger.MaxSize, ljLogger.MaxBackups)
	return &fileCloser{logger: ljLogger}, nil
}

type fileCloser struct {
	logger *lumberjack.Logger
}

func (c *fileCloser) Close() error {
	_, _ = loggo.RemoveWriter(fileWriterName)
	return c.logger.Close()
}
