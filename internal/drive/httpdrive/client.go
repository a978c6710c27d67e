// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package httpdrive implements drive.Account against a JSON over HTTP drive
// gateway. Session cookies are kept in a persistent cookie jar so that a
// trusted session survives a restart of the add-on.
package httpdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	cookiejar "github.com/juju/persistent-cookiejar"
	"golang.org/x/net/publicsuffix"

	"github.com/icloudbackup/icloudbackup/internal/drive"
)

var logger = loggo.GetLogger("icloudbackup.drive.http")

// cookieFile is the name of the cookie jar inside the session directory.
const cookieFile = "cookies"

// Config holds the values needed to reach the drive gateway.
type Config struct {
	// Endpoint is the base URL of the gateway API.
	Endpoint string

	// SessionDir is where the session cookies are persisted.
	SessionDir string

	// Timeout bounds every request that does not carry file content.
	Timeout time.Duration

	// Transport is used for the requests. If nil, http.DefaultTransport
	// is used.
	Transport http.RoundTripper
}

// Validate returns an error if the config cannot be used.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.NotValidf("empty Endpoint")
	}
	if _, err := url.Parse(c.Endpoint); err != nil {
		return errors.NewNotValid(err, "Endpoint")
	}
	if c.SessionDir == "" {
		return errors.NotValidf("empty SessionDir")
	}
	return nil
}

// Client is a drive.Account backed by the HTTP gateway.
type Client struct {
	base    *url.URL
	jar     *cookiejar.Jar
	http    *http.Client
	timeout time.Duration
}

var _ drive.Account = (*Client)(nil)

// New returns a client whose cookies are loaded from, and saved to, the
// session directory.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, errors.Trace(err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{
		Filename:         filepath.Join(cfg.SessionDir, cookieFile),
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		return nil, errors.Annotate(err, "loading session cookies")
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:    base,
		jar:     jar,
		timeout: timeout,
		http: &http.Client{
			Jar:       jar,
			Transport: transport,
		},
	}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status drive.LoginStatus `json:"status"`
}

// Login is part of the drive.Authenticator interface.
func (c *Client) Login(ctx context.Context, username, password string) (drive.LoginStatus, error) {
	var resp loginResponse
	status, err := c.doJSON(ctx, http.MethodPost, "auth/login", loginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return "", errors.Annotate(err, "logging in")
	}
	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", errors.Unauthorizedf("credentials for %q rejected", username)
	default:
		return "", errors.Errorf("logging in: unexpected status %d", status)
	}
	switch resp.Status {
	case drive.LoginOK, drive.LoginNeedsTwoFactor:
	default:
		return "", errors.Errorf("logging in: unexpected login status %q", resp.Status)
	}
	c.saveCookies()
	return resp.Status, nil
}

type verifyRequest struct {
	Code string `json:"code"`
}

// SubmitCode is part of the drive.Authenticator interface.
func (c *Client) SubmitCode(ctx context.Context, code string) error {
	status, err := c.doJSON(ctx, http.MethodPost, "auth/verify", verifyRequest{Code: code}, nil)
	if err != nil {
		return errors.Annotate(err, "submitting verification code")
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		c.saveCookies()
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return drive.ErrInvalidCode
	}
	return errors.Errorf("submitting verification code: unexpected status %d", status)
}

// TrustSession is part of the drive.Authenticator interface.
func (c *Client) TrustSession(ctx context.Context) error {
	status, err := c.doJSON(ctx, http.MethodPost, "auth/trust", nil, nil)
	if err != nil {
		return errors.Annotate(err, "requesting trusted session")
	}
	if err := checkStatus(status, "requesting trusted session"); err != nil {
		return errors.Trace(err)
	}
	c.saveCookies()
	return nil
}

type folderItem struct {
	Name string `json:"name"`
}

type folderResponse struct {
	Items []folderItem `json:"items"`
}

// ListFolder is part of the drive.Drive interface.
func (c *Client) ListFolder(ctx context.Context, folder string) ([]string, error) {
	var resp folderResponse
	status, err := c.doJSON(ctx, http.MethodGet, "drive/folders/"+url.PathEscape(folder), nil, &resp)
	if err != nil {
		return nil, errors.Annotatef(err, "listing folder %q", folder)
	}
	if status == http.StatusNotFound {
		return nil, errors.NotFoundf("folder %q", folder)
	}
	if err := checkStatus(status, fmt.Sprintf("listing folder %q", folder)); err != nil {
		return nil, errors.Trace(err)
	}
	names := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Name != "" {
			names = append(names, item.Name)
		}
	}
	return names, nil
}

type createFolderRequest struct {
	Name string `json:"name"`
}

// CreateFolder is part of the drive.Drive interface.
func (c *Client) CreateFolder(ctx context.Context, folder string) error {
	status, err := c.doJSON(ctx, http.MethodPost, "drive/folders", createFolderRequest{Name: folder}, nil)
	if err != nil {
		return errors.Annotatef(err, "creating folder %q", folder)
	}
	return errors.Trace(checkStatus(status, fmt.Sprintf("creating folder %q", folder)))
}

// Upload is part of the drive.Drive interface. The request is not bounded
// by the client timeout, only by ctx, as archives can be large.
func (c *Client) Upload(ctx context.Context, folder, name string, r io.Reader, size int64) error {
	u := c.base.JoinPath("drive", "folders", url.PathEscape(folder), "files", url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), r)
	if err != nil {
		return errors.Trace(err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/x-tar")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Annotatef(err, "uploading %q", name)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return errors.Trace(checkStatus(resp.StatusCode, fmt.Sprintf("uploading %q", name)))
}

// doJSON sends body as JSON and decodes a 2xx JSON response into out. It
// returns the HTTP status; transport and decoding problems are errors.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Trace(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reader)
	if err != nil {
		return 0, errors.Trace(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.Annotatef(err, "decoding %s response", path)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) saveCookies() {
	if err := c.jar.Save(); err != nil {
		logger.Warningf("cannot save session cookies: %v", err)
	}
}

func checkStatus(status int, action string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Unauthorizedf("%s: session expired", action)
	}
	return errors.Errorf("%s: unexpected status %d", action, status)
}
