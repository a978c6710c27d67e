// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/juju/ansiterm"
	"github.com/mattn/go-isatty"

	"github.com/icloudbackup/icloudbackup/internal/i18n"
	"github.com/icloudbackup/icloudbackup/internal/statusclient"
)

var messageColor = map[statusclient.MessageKind]*ansiterm.Context{
	statusclient.Info:    ansiterm.Foreground(ansiterm.BrightBlue),
	statusclient.Success: ansiterm.Foreground(ansiterm.Green),
	statusclient.Error:   ansiterm.Foreground(ansiterm.BrightRed),
}

var headingColor = &ansiterm.Context{
	Foreground: ansiterm.White,
	Styles:     []ansiterm.Style{ansiterm.Bold},
}

// terminal renders the status views as plain lines of text.
type terminal struct {
	out      *ansiterm.Writer
	messages i18n.Localizer

	// prompt is set when codes are typed by a person, so that a prompt
	// is worth printing.
	prompt  bool
	enabled bool
}

var _ statusclient.Renderer = (*terminal)(nil)

func newTerminal(out io.Writer, messages i18n.Localizer, color, prompt bool) *terminal {
	writer := ansiterm.NewWriter(out)
	if color {
		writer.SetColorCapable(true)
	}
	return &terminal{
		out:      writer,
		messages: messages,
		prompt:   prompt,
		enabled:  true,
	}
}

func isTerminal(f any) bool {
	file, ok := f.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd())
}

func (t *terminal) Render(view statusclient.View, status statusclient.Status) {
	switch view {
	case statusclient.Loading:
		fmt.Fprintln(t.out, t.messages.Message(i18n.Loading))
	case statusclient.Running:
		t.heading(t.messages.Message(i18n.Running))
		fmt.Fprintln(t.out, t.messages.Message(i18n.RunningDetail))
	case statusclient.NeedsCode:
		t.heading(t.messages.Message(i18n.NeedsCode))
		fmt.Fprintln(t.out, t.messages.Message(i18n.CodePrompt))
	}
	if status.LastError != "" {
		fmt.Fprintf(t.out, "%s: %s\n", t.messages.Message(i18n.LastErrorCaption), status.LastError)
	}
}

func (t *terminal) heading(text string) {
	fmt.Fprint(t.out, "== ")
	headingColor.Fprintf(t.out, "%s", text)
	fmt.Fprintln(t.out)
}

func (t *terminal) ShowMessage(kind statusclient.MessageKind, text string) {
	marker := "  "
	switch kind {
	case statusclient.Error:
		marker = "! "
	case statusclient.Success:
		marker = "+ "
	}
	fmt.Fprint(t.out, marker)
	if ctx, ok := messageColor[kind]; ok {
		ctx.Fprintf(t.out, "%s", text)
	} else {
		fmt.Fprint(t.out, text)
	}
	fmt.Fprintln(t.out)
}

func (t *terminal) SetSubmitEnabled(enabled bool) {
	t.enabled = enabled
}

func (t *terminal) ClearInput() {}

func (t *terminal) FocusInput() {
	if t.prompt && t.enabled {
		fmt.Fprintf(t.out, "%s> ", t.messages.Message(i18n.Submit))
	}
}
