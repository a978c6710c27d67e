// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"net/http"
)

// StatusResponse is the body returned by GET /status.
type StatusResponse struct {
	RequiresTwoFactor bool   `json:"requires_2fa"`
	Authenticated     bool   `json:"is_authenticated"`
	Status            string `json:"status"`
	LastError         string `json:"last_error,omitempty"`
}

type statusHandler struct {
	session Session
}

// ServeHTTP reports a consistent snapshot of the session. It has no side
// effects.
func (h *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if err := sendStatusAndJSON(w, http.StatusOK, StatusResponse{
		RequiresTwoFactor: snap.RequiresTwoFactor(),
		Authenticated:     snap.Authenticated(),
		Status:            "running",
		LastError:         snap.LastError,
	}); err != nil {
		logger.Errorf("%v", err)
	}
}
