// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package apiserver serves the add-on's HTTP API: health and session
// status, verification code submission, the localized message catalog,
// metrics and the status page itself.
package apiserver

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	coresession "github.com/icloudbackup/icloudbackup/core/session"
	"github.com/icloudbackup/icloudbackup/internal/i18n"
)

var logger = loggo.GetLogger("icloudbackup.apiserver")

// ServiceName is reported by the health endpoint.
const ServiceName = "icloud-backup"

const (
	defaultSubmitInterval = time.Second
	defaultSubmitBurst    = 5
)

// Session is the view of the session worker used by the handlers.
type Session interface {
	Snapshot() coresession.Snapshot
	SubmitCode(ctx context.Context, code string) error
}

// Metrics counts verification code submissions by outcome.
type Metrics interface {
	CodeSubmitted(outcome string)
}

// Config holds the dependencies of the API handler.
type Config struct {
	Session  Session
	Messages *i18n.Bundle

	// Frontend holds the status page. It must contain index.html.
	Frontend fs.FS

	// Gatherer, if set, is served on /metrics.
	Gatherer prometheus.Gatherer
	Metrics  Metrics

	// SubmitInterval and SubmitBurst shape the verification code rate
	// limiter. Zero values select the defaults.
	SubmitInterval time.Duration
	SubmitBurst    int
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Session == nil {
		return errors.NotValidf("missing Session")
	}
	if c.Messages == nil {
		return errors.NotValidf("missing Messages")
	}
	if c.Frontend == nil {
		return errors.NotValidf("missing Frontend")
	}
	if _, err := fs.Stat(c.Frontend, indexPage); err != nil {
		return errors.NewNotValid(err, "Frontend without "+indexPage)
	}
	if c.SubmitInterval < 0 || c.SubmitBurst < 0 {
		return errors.NotValidf("negative submission limit")
	}
	return nil
}

// NewHandler returns the router for the add-on API.
func NewHandler(cfg Config) (http.Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	interval := cfg.SubmitInterval
	if interval == 0 {
		interval = defaultSubmitInterval
	}
	burst := cfg.SubmitBurst
	if burst == 0 {
		burst = defaultSubmitBurst
	}

	router := mux.NewRouter()
	router.Use(logRequests)

	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	router.Handle("/status", &statusHandler{
		session: cfg.Session,
	}).Methods(http.MethodGet)
	router.Handle("/send_code", &sendCodeHandler{
		session: cfg.Session,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
		metrics: cfg.Metrics,
	}).Methods(http.MethodPost)
	router.Handle("/messages", &messagesHandler{
		bundle: cfg.Messages,
	}).Methods(http.MethodGet)
	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	router.PathPrefix("/").Handler(&frontendHandler{
		files: cfg.Frontend,
	}).Methods(http.MethodGet, http.MethodHead)

	return router, nil
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Tracef("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := sendStatusAndJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Service: ServiceName,
	}); err != nil {
		logger.Errorf("%v", err)
	}
}
