// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing/fstest"
	"time"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/prometheus/client_golang/prometheus"
	gc "gopkg.in/check.v1"

	"github.com/icloudbackup/icloudbackup/apiserver"
	coresession "github.com/icloudbackup/icloudbackup/core/session"
	"github.com/icloudbackup/icloudbackup/internal/i18n"
	"github.com/icloudbackup/icloudbackup/internal/testhelpers"
)

type fakeSession struct {
	*testing.Stub
	snap coresession.Snapshot
}

func (f *fakeSession) Snapshot() coresession.Snapshot {
	f.MethodCall(f, "Snapshot")
	return f.snap
}

func (f *fakeSession) SubmitCode(ctx context.Context, code string) error {
	f.MethodCall(f, "SubmitCode", code)
	return f.NextErr()
}

type fakeMetrics struct {
	outcomes []string
}

func (f *fakeMetrics) CodeSubmitted(outcome string) {
	f.outcomes = append(f.outcomes, outcome)
}

type handlerSuite struct {
	testhelpers.BaseSuite

	session *fakeSession
	metrics *fakeMetrics
	server  *httptest.Server
}

var _ = gc.Suite(&handlerSuite{})

func (s *handlerSuite) SetUpTest(c *gc.C) {
	s.BaseSuite.SetUpTest(c)
	s.session = &fakeSession{
		Stub: &testing.Stub{},
		snap: coresession.Snapshot{State: coresession.Unauthenticated},
	}
	s.metrics = &fakeMetrics{}
	s.server = s.newServer(c, 0, 0)
}

func (s *handlerSuite) newServer(c *gc.C, interval time.Duration, burst int) *httptest.Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_total",
		Help: "A test counter.",
	}))
	handler, err := apiserver.NewHandler(apiserver.Config{
		Session:  s.session,
		Messages: i18n.Default(),
		Frontend: fstest.MapFS{
			"index.html": {Data: []byte("<html>status</html>")},
			"app.js":     {Data: []byte("poll();")},
		},
		Gatherer:       registry,
		Metrics:        s.metrics,
		SubmitInterval: interval,
		SubmitBurst:    burst,
	})
	c.Assert(err, jc.ErrorIsNil)
	server := httptest.NewServer(handler)
	s.AddCleanup(func(*gc.C) { server.Close() })
	return server
}

func (s *handlerSuite) get(c *gc.C, path string, header http.Header) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	c.Assert(err, jc.ErrorIsNil)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, jc.ErrorIsNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	c.Assert(err, jc.ErrorIsNil)
	return resp, string(body)
}

func (s *handlerSuite) postForm(c *gc.C, code string) (int, map[string]any) {
	resp, err := http.PostForm(s.server.URL+"/send_code", url.Values{"code": {code}})
	c.Assert(err, jc.ErrorIsNil)
	return decode(c, resp)
}

func decode(c *gc.C, resp *http.Response) (int, map[string]any) {
	defer resp.Body.Close()
	c.Check(resp.Header.Get("Content-Type"), gc.Equals, "application/json")
	var body map[string]any
	c.Assert(json.NewDecoder(resp.Body).Decode(&body), jc.ErrorIsNil)
	return resp.StatusCode, body
}

func (s *handlerSuite) TestValidateConfig(c *gc.C) {
	_, err := apiserver.NewHandler(apiserver.Config{
		Session:  s.session,
		Messages: i18n.Default(),
		Frontend: fstest.MapFS{},
	})
	c.Assert(err, gc.ErrorMatches, "Frontend without index.html: .*")
}

func (s *handlerSuite) TestHealth(c *gc.C) {
	resp, body := s.get(c, "/health", nil)
	c.Assert(resp.StatusCode, gc.Equals, http.StatusOK)
	c.Assert(body, jc.JSONEquals, map[string]any{"status": "ok", "service": "icloud-backup"})
}

func (s *handlerSuite) TestStatus(c *gc.C) {
	for _, test := range []struct {
		snap     coresession.Snapshot
		expected map[string]any
	}{{
		snap: coresession.Snapshot{State: coresession.Unauthenticated, LastError: "login failed: boom"},
		expected: map[string]any{
			"requires_2fa":     false,
			"is_authenticated": false,
			"status":           "running",
			"last_error":       "login failed: boom",
		},
	}, {
		snap: coresession.Snapshot{State: coresession.AwaitingTwoFactor},
		expected: map[string]any{
			"requires_2fa":     true,
			"is_authenticated": false,
			"status":           "running",
		},
	}, {
		snap: coresession.Snapshot{State: coresession.Authenticated},
		expected: map[string]any{
			"requires_2fa":     false,
			"is_authenticated": true,
			"status":           "running",
		},
	}} {
		s.session.snap = test.snap
		resp, body := s.get(c, "/status", nil)
		c.Check(resp.StatusCode, gc.Equals, http.StatusOK)
		c.Check(body, jc.JSONEquals, test.expected)
	}
	s.session.CheckCallNames(c, "Snapshot", "Snapshot", "Snapshot")
}

func (s *handlerSuite) TestStatusIdempotent(c *gc.C) {
	s.session.snap = coresession.Snapshot{State: coresession.AwaitingTwoFactor}
	_, first := s.get(c, "/status", nil)
	_, second := s.get(c, "/status", nil)
	c.Assert(first, gc.Equals, second)
	s.session.CheckCallNames(c, "Snapshot", "Snapshot")
}

func (s *handlerSuite) TestSendCodeForm(c *gc.C) {
	status, body := s.postForm(c, "123456")
	c.Assert(status, gc.Equals, http.StatusOK)
	c.Assert(body, jc.DeepEquals, map[string]any{"success": true})
	s.session.CheckCall(c, 0, "SubmitCode", "123456")
	c.Check(s.metrics.outcomes, jc.DeepEquals, []string{apiserver.OutcomeAccepted})
}

func (s *handlerSuite) TestSendCodeJSON(c *gc.C) {
	resp, err := http.Post(s.server.URL+"/send_code", "application/json", strings.NewReader(`{"code":"654321"}`))
	c.Assert(err, jc.ErrorIsNil)
	status, body := decode(c, resp)
	c.Assert(status, gc.Equals, http.StatusOK)
	c.Assert(body["success"], gc.Equals, true)
	s.session.CheckCall(c, 0, "SubmitCode", "654321")
}

func (s *handlerSuite) TestSendCodeRejected(c *gc.C) {
	s.session.SetErrors(coresession.ErrCodeRejected)

	status, body := s.postForm(c, "000000")
	c.Assert(status, gc.Equals, http.StatusOK)
	c.Assert(body, jc.DeepEquals, map[string]any{
		"success": false,
		"error":   "verification code rejected",
	})
	c.Check(s.metrics.outcomes, jc.DeepEquals, []string{apiserver.OutcomeRejected})
}

func (s *handlerSuite) TestSendCodeMissing(c *gc.C) {
	status, body := s.postForm(c, "")
	c.Assert(status, gc.Equals, http.StatusBadRequest)
	c.Assert(body, jc.DeepEquals, map[string]any{
		"success": false,
		"error":   "no code provided",
	})
	s.session.CheckNoCalls(c)
}

func (s *handlerSuite) TestSendCodeMalformedJSON(c *gc.C) {
	resp, err := http.Post(s.server.URL+"/send_code", "application/json", strings.NewReader(`{"code":`))
	c.Assert(err, jc.ErrorIsNil)
	status, _ := decode(c, resp)
	c.Assert(status, gc.Equals, http.StatusBadRequest)
	s.session.CheckNoCalls(c)
}

func (s *handlerSuite) TestSendCodeErrors(c *gc.C) {
	for _, test := range []struct {
		err     error
		status  int
		message string
	}{{
		err:     coresession.ValidateCode("12345"),
		status:  http.StatusBadRequest,
		message: "verification code must be exactly 6 digits",
	}, {
		err:     coresession.ErrNotAwaitingCode,
		status:  http.StatusConflict,
		message: "verification code not requested",
	}, {
		err:     coresession.ErrBusy,
		status:  http.StatusTooManyRequests,
		message: "another session operation is in progress",
	}, {
		err:     errors.Annotate(errors.New("connection reset"), "submitting verification code"),
		status:  http.StatusBadGateway,
		message: "remote account unavailable: submitting verification code: connection reset",
	}} {
		s.session.SetErrors(test.err)
		status, body := s.postForm(c, "123456")
		c.Check(status, gc.Equals, test.status)
		c.Check(body, jc.DeepEquals, map[string]any{
			"success": false,
			"error":   test.message,
		})
	}
}

func (s *handlerSuite) TestSendCodeRateLimited(c *gc.C) {
	s.server = s.newServer(c, time.Hour, 1)

	status, _ := s.postForm(c, "123456")
	c.Assert(status, gc.Equals, http.StatusOK)

	status, body := s.postForm(c, "123456")
	c.Assert(status, gc.Equals, http.StatusTooManyRequests)
	c.Assert(body["error"], gc.Equals, "too many verification attempts, try again later")
	s.session.CheckCallNames(c, "SubmitCode")
}

func (s *handlerSuite) TestSendCodeMethod(c *gc.C) {
	req, err := http.NewRequest(http.MethodPut, s.server.URL+"/send_code", nil)
	c.Assert(err, jc.ErrorIsNil)
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, jc.ErrorIsNil)
	resp.Body.Close()
	c.Assert(resp.StatusCode, gc.Equals, http.StatusMethodNotAllowed)
}

func (s *handlerSuite) TestMessages(c *gc.C) {
	resp, body := s.get(c, "/messages?lang=de", nil)
	c.Assert(resp.StatusCode, gc.Equals, http.StatusOK)
	c.Check(resp.Header.Get("Content-Language"), gc.Equals, "de")
	var messages apiserver.MessagesResponse
	c.Assert(json.Unmarshal([]byte(body), &messages), jc.ErrorIsNil)
	c.Check(messages.Language, gc.Equals, "de")
	c.Check(messages.Languages, jc.DeepEquals, []string{"en", "de"})
	c.Check(messages.Messages["submit"], gc.Equals, "Bestätigen")
	c.Check(messages.Messages["code_placeholder"], gc.Equals, "123456")

	_, body = s.get(c, "/messages", http.Header{"Accept-Language": {"de-DE,de;q=0.9"}})
	c.Assert(json.Unmarshal([]byte(body), &messages), jc.ErrorIsNil)
	c.Check(messages.Language, gc.Equals, "de")

	_, body = s.get(c, "/messages", http.Header{"Accept-Language": {"fr-FR"}})
	c.Assert(json.Unmarshal([]byte(body), &messages), jc.ErrorIsNil)
	c.Check(messages.Language, gc.Equals, "en")
	c.Check(messages.Messages["submit"], gc.Equals, "Verify")
}

func (s *handlerSuite) TestMetrics(c *gc.C) {
	resp, body := s.get(c, "/metrics", nil)
	c.Assert(resp.StatusCode, gc.Equals, http.StatusOK)
	c.Assert(body, jc.Contains, "test_total 0")
}

func (s *handlerSuite) TestFrontend(c *gc.C) {
	resp, body := s.get(c, "/", nil)
	c.Check(resp.StatusCode, gc.Equals, http.StatusOK)
	c.Check(body, gc.Equals, "<html>status</html>")

	resp, body = s.get(c, "/app.js", nil)
	c.Check(resp.StatusCode, gc.Equals, http.StatusOK)
	c.Check(body, gc.Equals, "poll();")

	resp, body = s.get(c, "/some/client/route", nil)
	c.Check(resp.StatusCode, gc.Equals, http.StatusOK)
	c.Check(body, gc.Equals, "<html>status</html>")

	resp, body = s.get(c, "/../../etc/passwd", nil)
	c.Check(resp.StatusCode, gc.Equals, http.StatusOK)
	c.Check(body, gc.Equals, "<html>status</html>")
}
