// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/juju/errors"

	coresession "github.com/icloudbackup/icloudbackup/core/session"
)

const (
	// errRateLimited is returned when verification codes arrive faster
	// than the submission limiter allows.
	errRateLimited = errors.ConstError("too many verification attempts, try again later")

	// errRemote marks a failure to reach the remote account.
	errRemote = errors.ConstError("remote account unavailable")
)

// FailableHandlerFunc is like http.HandlerFunc, except it returns an error
// that is sent to the client as a JSON error response.
type FailableHandlerFunc func(http.ResponseWriter, *http.Request) error

func (f FailableHandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := f(w, r); err != nil {
		if err := sendJSONError(w, r, errors.Trace(err)); err != nil {
			logger.Errorf("%v", errors.Annotate(err, "cannot return error to user"))
		}
	}
}

// errorResponse is the body of every error response.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// sendJSONError sends a JSON-encoded error response with a status code
// derived from the error.
func sendJSONError(w http.ResponseWriter, r *http.Request, err error) error {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("returning error from %s %s: %s", r.Method, r.URL.Path, errors.Details(err))
	} else {
		logger.Debugf("returning error from %s %s: %v", r.Method, r.URL.Path, err)
	}
	return errors.Trace(sendStatusAndJSON(w, status, errorResponse{
		Error: errors.Cause(err).Error(),
	}))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.BadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound
	case errors.Is(err, coresession.ErrNotAwaitingCode):
		return http.StatusConflict
	case errors.Is(err, coresession.ErrBusy), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errRemote):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// sendStatusAndJSON sends an HTTP status code and a JSON-encoded response
// to a client.
func sendStatusAndJSON(w http.ResponseWriter, status int, response any) error {
	body, err := json.Marshal(response)
	if err != nil {
		return errors.Errorf("cannot marshal JSON result %#v: %v", response, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		return errors.Annotate(err, "cannot write response")
	}
	return nil
}
