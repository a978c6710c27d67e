// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"net/http"

	"github.com/icloudbackup/icloudbackup/internal/i18n"
)

// MessagesResponse is the body returned by GET /messages.
type MessagesResponse struct {
	Language  string            `json:"language"`
	Languages []string          `json:"languages"`
	Messages  map[string]string `json:"messages"`
}

type messagesHandler struct {
	bundle *i18n.Bundle
}

// ServeHTTP returns the catalog for the language named by the lang query
// parameter, or negotiated from Accept-Language.
func (h *messagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tag := h.bundle.Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
	localizer := h.bundle.Localizer(tag)

	w.Header().Set("Vary", "Accept-Language")
	w.Header().Set("Content-Language", localizer.Language().String())
	var languages []string
	for _, tag := range h.bundle.Languages() {
		languages = append(languages, tag.String())
	}
	if err := sendStatusAndJSON(w, http.StatusOK, MessagesResponse{
		Language:  localizer.Language().String(),
		Languages: languages,
		Messages:  localizer.Messages(),
	}); err != nil {
		logger.Errorf("%v", err)
	}
}
