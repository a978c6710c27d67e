// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

const indexPage = "index.html"

// frontendHandler serves the status page. Paths that do not name a file
// get index.html.
type frontendHandler struct {
	files fs.FS
}

func (h *frontendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = indexPage
	}
	if info, err := fs.Stat(h.files, name); err != nil || info.IsDir() {
		name = indexPage
	}
	http.ServeFileFS(w, r, h.files, name)
}
