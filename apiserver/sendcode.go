// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/juju/errors"
	"golang.org/x/time/rate"

	coresession "github.com/icloudbackup/icloudbackup/core/session"
)

// maxCodeBody bounds the size of a code submission.
const maxCodeBody = 4 << 10

// Submission outcomes, as counted by Metrics.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "not-awaiting"
	OutcomeBusy     = "busy"
	OutcomeLimited  = "rate-limited"
	OutcomeError    = "error"
)

// SendCodeResponse is the body returned by POST /send_code.
type SendCodeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type sendCodeHandler struct {
	session Session
	limiter *rate.Limiter
	metrics Metrics
}

func (h *sendCodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	FailableHandlerFunc(h.serve).ServeHTTP(w, r)
}

func (h *sendCodeHandler) serve(w http.ResponseWriter, r *http.Request) error {
	code, err := readCode(w, r)
	if err != nil {
		h.count(OutcomeInvalid)
		return errors.Trace(err)
	}
	if !h.limiter.Allow() {
		h.count(OutcomeLimited)
		return errRateLimited
	}

	err = h.session.SubmitCode(r.Context(), code)
	switch {
	case err == nil:
		h.count(OutcomeAccepted)
		return sendStatusAndJSON(w, http.StatusOK, SendCodeResponse{Success: true})
	case errors.Is(err, coresession.ErrCodeRejected):
		h.count(OutcomeRejected)
		return sendStatusAndJSON(w, http.StatusOK, SendCodeResponse{Error: err.Error()})
	case errors.Is(err, errors.NotValid):
		h.count(OutcomeInvalid)
		return errors.Trace(err)
	case errors.Is(err, coresession.ErrNotAwaitingCode):
		h.count(OutcomeConflict)
		return errors.Trace(err)
	case errors.Is(err, coresession.ErrBusy):
		h.count(OutcomeBusy)
		return errors.Trace(err)
	}
	h.count(OutcomeError)
	return fmt.Errorf("%w: %w", errRemote, err)
}

func (h *sendCodeHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.CodeSubmitted(outcome)
	}
}

type codeRequest struct {
	Code string `json:"code"`
}

// readCode extracts the code from a form or JSON body.
func readCode(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCodeBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var code string
	switch mediaType {
	case "application/json":
		var req codeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			return "", errors.BadRequestf("malformed JSON body")
		}
		code = req.Code
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxCodeBody); err != nil {
			return "", errors.BadRequestf("malformed form body")
		}
		code = r.FormValue("code")
	default:
		if err := r.ParseForm(); err != nil {
			return "", errors.BadRequestf("malformed form body")
		}
		code = r.FormValue("code")
	}
	if code == "" {
		return "", errors.BadRequestf("no code provided")
	}
	return code, nil
}
