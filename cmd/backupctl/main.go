// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command backupctl is a terminal front end for the add-on's status page.
// It shows whether the session needs a verification code and relays codes
// typed on standard input.
//
// Usage:
//
//	backupctl [--url URL] [--lang LANG] [--open] [status]
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gosuri/uitable"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/webbrowser"
	"github.com/juju/worker/v4"

	"github.com/icloudbackup/icloudbackup/internal/i18n"
	"github.com/icloudbackup/icloudbackup/internal/statusclient"
)

var logger = loggo.GetLogger("icloudbackup.cmd.backupctl")

const defaultURL = "http://localhost:5000"

type options struct {
	url       string
	lang      string
	open      bool
	color     bool
	verbose   bool
	statusCmd bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, gnuflag.ErrHelp) {
		return 0
	} else if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 2
	}
	level := "<root>=WARNING"
	if opts.verbose {
		level = "<root>=DEBUG"
	}
	if err := loggo.ConfigureLoggers(level); err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 2
	}

	api, err := statusclient.NewHTTPClient(opts.url, nil)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 2
	}
	bundle := i18n.Default()
	localizer := bundle.Localizer(bundle.Match(opts.lang, operatorLocale()))

	if opts.statusCmd {
		if err := printStatus(api, localizer, stdout); err != nil {
			fmt.Fprintf(stderr, "ERROR %v\n", err)
			return 1
		}
		return 0
	}

	if opts.open {
		u, _ := url.Parse(opts.url)
		if err := webbrowser.Open(u); err != nil {
			logger.Warningf("cannot open %s in a browser: %v", opts.url, err)
		}
	}

	term := newTerminal(stdout, localizer, opts.color, isTerminal(stdin))
	if err := watch(api, term, localizer, stdin); err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := gnuflag.NewFlagSet("backupctl", gnuflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.url, "url", defaultURL, "base URL of the add-on")
	fs.StringVar(&opts.lang, "lang", "", "message language, defaults to the locale")
	fs.BoolVar(&opts.open, "open", false, "also open the status page in a web browser")
	fs.BoolVar(&opts.color, "color", false, "use ANSI color codes in output")
	fs.BoolVar(&opts.verbose, "verbose", false, "log requests")
	if err := fs.Parse(true, args); err != nil {
		return options{}, err
	}
	switch rest := fs.Args(); {
	case len(rest) == 0:
	case len(rest) == 1 && rest[0] == "status":
		opts.statusCmd = true
	default:
		return options{}, errors.Errorf("unrecognized arguments: %q", rest)
	}
	return opts, nil
}

// operatorLocale returns the locale in effect for messages, following the
// usual precedence of the locale environment variables.
func operatorLocale() string {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// printStatus checks the status once and prints it as a table.
func printStatus(api statusclient.API, messages i18n.Localizer, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), statusclient.DefaultPollInterval*5)
	defer cancel()
	status, err := api.Status(ctx)
	if err != nil {
		return errors.Trace(err)
	}

	state := messages.Message(i18n.Running)
	if status.RequiresTwoFactor {
		state = messages.Message(i18n.NeedsCode)
	}
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.AddRow("Status", state)
	table.AddRow("Authenticated", status.Authenticated)
	table.AddRow("Requires 2FA", status.RequiresTwoFactor)
	if status.LastError != "" {
		table.AddRow(messages.Message(i18n.LastErrorCaption), status.LastError)
	}
	_, err = fmt.Fprintln(stdout, table)
	return errors.Trace(err)
}

// watch runs the status loop until stdin is closed and the last code has
// been answered, or the process is interrupted. Every line read from stdin
// is submitted as a code.
func watch(api statusclient.API, renderer statusclient.Renderer, localizer i18n.Localizer, stdin io.Reader) error {
	client, err := statusclient.New(statusclient.Config{
		API:       api,
		Renderer:  renderer,
		Localizer: localizer,
		Clock:     clock.WallClock,
		Logger:    logger,
	})
	if err != nil {
		return errors.Trace(err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// idle is set once stdin is exhausted; the client keeps running until
	// the last submitted code has an outcome on screen.
	var idle <-chan struct{}
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				idle = client.Idle()
				continue
			}
			client.SubmitVerification(line)
		case <-idle:
			return worker.Stop(client)
		case <-sigCh:
			return worker.Stop(client)
		case <-worker.Dead(client):
			return client.Wait()
		}
	}
}
