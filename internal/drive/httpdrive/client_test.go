// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package httpdrive_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/icloudbackup/icloudbackup/internal/drive"
	"github.com/icloudbackup/icloudbackup/internal/drive/httpdrive"
	"github.com/icloudbackup/icloudbackup/internal/testhelpers"
)

type clientSuite struct {
	testhelpers.BaseSuite

	mux        *http.ServeMux
	server     *httptest.Server
	sessionDir string
	client     *httpdrive.Client
}

var _ = gc.Suite(&clientSuite{})

func (s *clientSuite) SetUpTest(c *gc.C) {
	s.BaseSuite.SetUpTest(c)
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	s.AddCleanup(func(*gc.C) { s.server.Close() })
	s.sessionDir = c.MkDir()

	client, err := httpdrive.New(httpdrive.Config{
		Endpoint:   s.server.URL + "/api",
		SessionDir: s.sessionDir,
	})
	c.Assert(err, jc.ErrorIsNil)
	s.client = client
}

func (s *clientSuite) TestValidateConfig(c *gc.C) {
	_, err := httpdrive.New(httpdrive.Config{SessionDir: c.MkDir()})
	c.Assert(err, gc.ErrorMatches, "empty Endpoint not valid")
	c.Assert(errors.Is(err, errors.NotValid), jc.IsTrue)

	_, err = httpdrive.New(httpdrive.Config{Endpoint: "http://example.com"})
	c.Assert(err, gc.ErrorMatches, "empty SessionDir not valid")
}

func (s *clientSuite) TestLoginNeedsTwoFactorPersistsCookies(c *gc.C) {
	s.mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, gc.Equals, http.MethodPost)
		var req map[string]string
		c.Check(json.NewDecoder(r.Body).Decode(&req), jc.ErrorIsNil)
		c.Check(req, jc.DeepEquals, map[string]string{"username": "fred", "password": "secret"})
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/", MaxAge: 3600})
		_, _ = io.WriteString(w, `{"status":"needs_2fa"}`)
	})

	status, err := s.client.Login(context.Background(), "fred", "secret")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(status, gc.Equals, drive.LoginNeedsTwoFactor)

	_, err = os.Stat(filepath.Join(s.sessionDir, "cookies"))
	c.Assert(err, jc.ErrorIsNil)
}

func (s *clientSuite) TestLoginBadCredentials(c *gc.C) {
	s.mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := s.client.Login(context.Background(), "fred", "wrong")
	c.Assert(errors.Is(err, errors.Unauthorized), jc.IsTrue)
}

func (s *clientSuite) TestLoginUnexpectedStatusValue(c *gc.C) {
	s.mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"needs_2sa"}`)
	})

	_, err := s.client.Login(context.Background(), "fred", "secret")
	c.Assert(err, gc.ErrorMatches, `logging in: unexpected login status "needs_2sa"`)
}

func (s *clientSuite) TestSubmitCode(c *gc.C) {
	s.mux.HandleFunc("/api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		c.Check(json.NewDecoder(r.Body).Decode(&req), jc.ErrorIsNil)
		if req["code"] != "123456" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	c.Assert(s.client.SubmitCode(context.Background(), "123456"), jc.ErrorIsNil)
	err := s.client.SubmitCode(context.Background(), "654321")
	c.Assert(errors.Is(err, drive.ErrInvalidCode), jc.IsTrue)
}

func (s *clientSuite) TestListFolder(c *gc.C) {
	s.mux.HandleFunc("/api/drive/folders/ha-backups", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"items":[{"name":"a.tar"},{"name":""},{"name":"b.tar"}]}`)
	})
	s.mux.HandleFunc("/api/drive/folders/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	s.mux.HandleFunc("/api/drive/folders/expired", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	names, err := s.client.ListFolder(context.Background(), "ha-backups")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(names, jc.DeepEquals, []string{"a.tar", "b.tar"})

	_, err = s.client.ListFolder(context.Background(), "missing")
	c.Assert(errors.Is(err, errors.NotFound), jc.IsTrue)

	_, err = s.client.ListFolder(context.Background(), "expired")
	c.Assert(errors.Is(err, errors.Unauthorized), jc.IsTrue)
}

func (s *clientSuite) TestCreateFolder(c *gc.C) {
	s.mux.HandleFunc("/api/drive/folders", func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, gc.Equals, http.MethodPost)
		var req map[string]string
		c.Check(json.NewDecoder(r.Body).Decode(&req), jc.ErrorIsNil)
		c.Check(req["name"], gc.Equals, "backups")
		w.WriteHeader(http.StatusCreated)
	})

	c.Assert(s.client.CreateFolder(context.Background(), "backups"), jc.ErrorIsNil)
}

func (s *clientSuite) TestUpload(c *gc.C) {
	var received string
	s.mux.HandleFunc("/api/drive/folders/backups/files/full.tar", func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, gc.Equals, http.MethodPut)
		c.Check(r.ContentLength, gc.Equals, int64(7))
		data, err := io.ReadAll(r.Body)
		c.Check(err, jc.ErrorIsNil)
		received = string(data)
		w.WriteHeader(http.StatusCreated)
	})

	err := s.client.Upload(context.Background(), "backups", "full.tar", strings.NewReader("archive"), 7)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(received, gc.Equals, "archive")
}

func (s *clientSuite) TestUploadFailure(c *gc.C) {
	s.mux.HandleFunc("/api/drive/folders/backups/files/full.tar", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInsufficientStorage)
	})

	err := s.client.Upload(context.Background(), "backups", "full.tar", strings.NewReader("archive"), 7)
	c.Assert(err, gc.ErrorMatches, `uploading "full.tar": unexpected status 507`)
}
