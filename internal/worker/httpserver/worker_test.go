// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package httpserver_test

import (
	"io"
	"net"
	"net/http"

	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4"
	gc "gopkg.in/check.v1"

	"github.com/icloudbackup/icloudbackup/internal/testhelpers"
	"github.com/icloudbackup/icloudbackup/internal/worker/httpserver"
)

type workerSuite struct {
	testhelpers.BaseSuite
}

var _ = gc.Suite(&workerSuite{})

func (s *workerSuite) config(c *gc.C) httpserver.Config {
	return httpserver.Config{
		Address: "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "hello")
		}),
		Logger: testhelpers.NewCheckLogger(c),
	}
}

func (s *workerSuite) TestValidateConfig(c *gc.C) {
	cfg := s.config(c)
	cfg.Handler = nil
	_, err := httpserver.NewWorker(cfg)
	c.Assert(err, gc.ErrorMatches, "missing Handler not valid")
}

func (s *workerSuite) TestServesUntilStopped(c *gc.C) {
	w, err := httpserver.NewWorker(s.config(c))
	c.Assert(err, jc.ErrorIsNil)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(w.URL())
	c.Assert(err, jc.ErrorIsNil)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(string(body), gc.Equals, "hello")

	c.Assert(worker.Stop(w), jc.ErrorIsNil)

	_, err = client.Get(w.URL())
	c.Assert(err, gc.NotNil)
}

func (s *workerSuite) TestAddressInUse(c *gc.C) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, jc.ErrorIsNil)
	defer listener.Close()

	cfg := s.config(c)
	cfg.Address = listener.Addr().String()
	_, err = httpserver.NewWorker(cfg)
	c.Assert(err, gc.ErrorMatches, `listening on ".*": .*address already in use`)
}
