// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package statusclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"
)

const defaultRequestTimeout = 10 * time.Second

// Status is the session status reported by the server.
type Status struct {
	RequiresTwoFactor bool   `json:"requires_2fa"`
	Authenticated     bool   `json:"is_authenticated"`
	Status            string `json:"status"`
	LastError         string `json:"last_error,omitempty"`
}

// SendResult is the server's answer to a code submission.
type SendResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// API is the server side of the status loop.
type API interface {
	Status(ctx context.Context) (Status, error)
	SendCode(ctx context.Context, code string) (SendResult, error)
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// HTTPClient is an API talking to the add-on's HTTP server.
type HTTPClient struct {
	base *url.URL
	http *http.Client
}

var _ API = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the server at baseURL. If hc is nil a
// client with a short timeout is used.
func NewHTTPClient(baseURL string, hc *http.Client) (*HTTPClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewNotValid(err, "server URL")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.NotValidf("server URL %q", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPClient{base: base, http: hc}, nil
}

// Status is part of the API interface.
func (c *HTTPClient) Status(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.JoinPath("status").String(), nil)
	if err != nil {
		return Status{}, errors.Trace(err)
	}
	req.Header.Set("Accept", "application/json")

	var status Status
	if err := c.do(req, &status); err != nil {
		return Status{}, errors.Annotate(err, "checking status")
	}
	return status, nil
}

// SendCode is part of the API interface. The code is posted as a form
// field.
func (c *HTTPClient) SendCode(ctx context.Context, code string) (SendResult, error) {
	form := url.Values{"code": {code}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("send_code").String(),
		strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, errors.Trace(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var result SendResult
	if err := c.do(req, &result); err != nil {
		return SendResult{}, errors.Annotate(err, "sending code")
	}
	return result, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body SendResult
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		_ = json.Unmarshal(data, &body)
		return &StatusError{Code: resp.StatusCode, Message: body.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Annotate(err, "decoding response")
	}
	return nil
}
