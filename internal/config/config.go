// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads and validates the add-on options.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v3"
)

// Option keys. Keys in the options file may use underscores in place of
// hyphens.
const (
	Username            = "username"
	Password            = "password"
	Folder              = "folder"
	DeleteAfterUpload   = "delete-after-upload"
	BackupDir           = "backup-dir"
	SessionDir          = "session-dir"
	DriveEndpoint       = "drive-endpoint"
	ListenAddress       = "listen-address"
	UploadInterval      = "upload-interval"
	LoginRetryInterval  = "login-retry-interval"
	VerificationTimeout = "verification-timeout"
	StabilityDelay      = "stability-delay"
	SettleDelay         = "settle-delay"
	UploadRateLimit     = "upload-rate-limit"
	SupervisorEndpoint  = "supervisor-endpoint"
	SupervisorInterval  = "supervisor-interval"
	LoggingConfig       = "logging-config"
	LogFile             = "log-file"
)

const (
	DefaultBackupDir           = "/backup"
	DefaultSessionDir          = "/data/session"
	DefaultDriveEndpoint       = "https://drive.example.invalid/api"
	DefaultListenAddress       = ":5000"
	DefaultUploadInterval      = 5 * time.Minute
	DefaultLoginRetryInterval  = 60 * time.Second
	DefaultVerificationTimeout = 5 * time.Minute
	DefaultStabilityDelay      = 2 * time.Second
	DefaultSettleDelay         = 5 * time.Second
	DefaultSupervisorEndpoint  = "http://supervisor"
	DefaultSupervisorInterval  = 5 * time.Minute
	DefaultLoggingConfig       = "<root>=INFO"
)

var configChecker = schema.FieldMap(schema.Fields{
	Username:            schema.String(),
	Password:            schema.String(),
	Folder:              schema.String(),
	DeleteAfterUpload:   schema.Bool(),
	BackupDir:           schema.String(),
	SessionDir:          schema.String(),
	DriveEndpoint:       schema.String(),
	ListenAddress:       schema.String(),
	UploadInterval:      schema.TimeDurationString(),
	LoginRetryInterval:  schema.TimeDurationString(),
	VerificationTimeout: schema.TimeDurationString(),
	StabilityDelay:      schema.TimeDurationString(),
	SettleDelay:         schema.TimeDurationString(),
	UploadRateLimit:     schema.ForceInt(),
	SupervisorEndpoint:  schema.String(),
	SupervisorInterval:  schema.TimeDurationString(),
	LoggingConfig:       schema.String(),
	LogFile:             schema.String(),
}, schema.Defaults{
	Username:            "",
	Password:            "",
	Folder:              "",
	DeleteAfterUpload:   false,
	BackupDir:           DefaultBackupDir,
	SessionDir:          DefaultSessionDir,
	DriveEndpoint:       DefaultDriveEndpoint,
	ListenAddress:       DefaultListenAddress,
	UploadInterval:      DefaultUploadInterval.String(),
	LoginRetryInterval:  DefaultLoginRetryInterval.String(),
	VerificationTimeout: DefaultVerificationTimeout.String(),
	StabilityDelay:      DefaultStabilityDelay.String(),
	SettleDelay:         DefaultSettleDelay.String(),
	UploadRateLimit:     0,
	SupervisorEndpoint:  DefaultSupervisorEndpoint,
	SupervisorInterval:  DefaultSupervisorInterval.String(),
	LoggingConfig:       DefaultLoggingConfig,
	LogFile:             "",
})

// Config holds the add-on options.
type Config struct {
	Username          string
	Password          string
	Folder            string
	DeleteAfterUpload bool

	BackupDir     string
	SessionDir    string
	DriveEndpoint string
	ListenAddress string

	UploadInterval      time.Duration
	LoginRetryInterval  time.Duration
	VerificationTimeout time.Duration
	StabilityDelay      time.Duration
	SettleDelay         time.Duration

	// UploadRateLimit is in bytes per second. Zero means unlimited.
	UploadRateLimit int64

	SupervisorEndpoint string
	SupervisorInterval time.Duration

	LoggingConfig string
	LogFile       string
}

// ReadAttrs reads the options file at path. The file may be YAML or JSON.
func ReadAttrs(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("options file %q", path)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	attrs := make(map[string]any)
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Annotatef(err, "parsing options file %q", path)
	}
	return attrs, nil
}

// Read reads, coerces and validates the options file at path.
func Read(path string) (Config, error) {
	attrs, err := ReadAttrs(path)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	return Parse(attrs)
}

// Parse coerces attrs, filling in defaults, and validates the result.
func Parse(attrs map[string]any) (Config, error) {
	normalized := make(map[string]any, len(attrs))
	for k, v := range attrs {
		normalized[strings.ReplaceAll(k, "_", "-")] = v
	}
	coerced, err := configChecker.Coerce(normalized, nil)
	if err != nil {
		return Config{}, errors.NewNotValid(err, "options")
	}
	m := coerced.(map[string]any)

	cfg := Config{
		Username:            m[Username].(string),
		Password:            m[Password].(string),
		Folder:              m[Folder].(string),
		DeleteAfterUpload:   m[DeleteAfterUpload].(bool),
		BackupDir:           m[BackupDir].(string),
		SessionDir:          m[SessionDir].(string),
		DriveEndpoint:       m[DriveEndpoint].(string),
		ListenAddress:       m[ListenAddress].(string),
		UploadInterval:      m[UploadInterval].(time.Duration),
		LoginRetryInterval:  m[LoginRetryInterval].(time.Duration),
		VerificationTimeout: m[VerificationTimeout].(time.Duration),
		StabilityDelay:      m[StabilityDelay].(time.Duration),
		SettleDelay:         m[SettleDelay].(time.Duration),
		UploadRateLimit:     int64(m[UploadRateLimit].(int)),
		SupervisorEndpoint:  m[SupervisorEndpoint].(string),
		SupervisorInterval:  m[SupervisorInterval].(time.Duration),
		LoggingConfig:       m[LoggingConfig].(string),
		LogFile:             m[LogFile].(string),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Username == "" {
		return errors.NotValidf("empty %s", Username)
	}
	if c.Password == "" {
		return errors.NotValidf("empty %s", Password)
	}
	if c.Folder == "" {
		return errors.NotValidf("empty %s", Folder)
	}
	if strings.Contains(c.Folder, "/") {
		return errors.NotValidf("%s %q containing a slash", Folder, c.Folder)
	}
	if c.BackupDir == "" {
		return errors.NotValidf("empty %s", BackupDir)
	}
	if c.ListenAddress == "" {
		return errors.NotValidf("empty %s", ListenAddress)
	}
	for key, d := range map[string]time.Duration{
		UploadInterval:     c.UploadInterval,
		LoginRetryInterval: c.LoginRetryInterval,
		SupervisorInterval: c.SupervisorInterval,
		SettleDelay:        c.SettleDelay,
	} {
		if d <= 0 {
			return errors.NotValidf("non-positive %s", key)
		}
	}
	for key, d := range map[string]time.Duration{
		VerificationTimeout: c.VerificationTimeout,
		StabilityDelay:      c.StabilityDelay,
	} {
		if d < 0 {
			return errors.NotValidf("negative %s", key)
		}
	}
	if c.UploadRateLimit < 0 {
		return errors.NotValidf("negative %s", UploadRateLimit)
	}
	return nil
}
