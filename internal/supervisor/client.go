// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package supervisor is a minimal client for the Home Assistant supervisor
// API.
package supervisor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/juju/errors"
)

// DefaultEndpoint is where the supervisor API is reachable from inside an
// add-on container.
const DefaultEndpoint = "http://supervisor"

const requestTimeout = 10 * time.Second

// Backup is a backup known to the supervisor.
type Backup struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	Date string `json:"date"`
}

// Client talks to the supervisor API with the add-on token.
type Client struct {
	endpoint *url.URL
	token    string
	http     *http.Client
}

// NewClient returns a supervisor client. The token is the value of
// SUPERVISOR_TOKEN.
func NewClient(endpoint, token string, transport http.RoundTripper) (*Client, error) {
	if token == "" {
		return nil, errors.NotValidf("empty supervisor token")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.NewNotValid(err, "supervisor endpoint")
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		endpoint: u,
		token:    token,
		http:     &http.Client{Transport: transport},
	}, nil
}

type backupsResponse struct {
	Result string `json:"result"`
	Data   struct {
		Backups []Backup `json:"backups"`
	} `json:"data"`
}

// Backups returns the backups the supervisor knows about.
func (c *Client) Backups(ctx context.Context) ([]Backup, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.JoinPath("backups").String(), nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Annotate(err, "listing supervisor backups")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.Unauthorizedf("supervisor token rejected")
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.Errorf("listing supervisor backups: HTTP %d", resp.StatusCode)
	}

	var body backupsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Annotate(err, "decoding supervisor backups")
	}
	return body.Data.Backups, nil
}
