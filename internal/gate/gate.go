// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package gate decides how much of a protected post a visitor sees.
//
// The gate is presentational only. In preview mode the whole HTML is still
// sent and merely clipped with CSS, so anything that must not reach
// anonymous visitors has to be withheld by the CMS itself.
package gate

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"trialportal/internal/auth"
)

//go:embed gate.html
var gateFS embed.FS

var tmpl = template.Must(template.ParseFS(gateFS, "gate.html"))

// DefaultPreviewHeight is the visible height, in pixels, of a preview.
const DefaultPreviewHeight = 320

// Mode is how a protected block is rendered.
type Mode string

const (
	// Skeleton renders a placeholder and no content.
	Skeleton Mode = "skeleton"
	// Preview renders clipped content and a call to action.
	Preview Mode = "preview"
	// Full renders the content unchanged.
	Full Mode = "full"
)

// ModeFor maps a session state to a render mode. An unresolved session
// never yields content.
func ModeFor(state auth.State) Mode {
	switch state {
	case auth.Authenticated:
		return Full
	case auth.Unauthenticated:
		return Preview
	default:
		return Skeleton
	}
}

// Options configure the gate markup.
type Options struct {
	PreviewHeight int
	LoginURL      string
	RegisterURL   string
	// FragmentURL, when set, makes the skeleton fetch the resolved block
	// with htmx once it is on the page.
	FragmentURL string
}

type view struct {
	Mode          Mode
	Content       template.HTML
	PreviewHeight int
	LoginURL      string
	RegisterURL   string
	FragmentURL   string
}

// Render writes the gated block for content under the given session state.
func Render(w io.Writer, state auth.State, content template.HTML, opts Options) error {
	if opts.PreviewHeight <= 0 {
		opts.PreviewHeight = DefaultPreviewHeight
	}
	if opts.LoginURL == "" {
		opts.LoginURL = "/login"
	}
	if opts.RegisterURL == "" {
		opts.RegisterURL = "/register"
	}

	v := view{
		Mode:          ModeFor(state),
		PreviewHeight: opts.PreviewHeight,
		LoginURL:      opts.LoginURL,
		RegisterURL:   opts.RegisterURL,
		FragmentURL:   opts.FragmentURL,
	}
	if v.Mode != Skeleton {
		v.Content = content
	}
	if err := tmpl.ExecuteTemplate(w, "gate", v); err != nil {
		return fmt.Errorf("render gate: %w", err)
	}
	return nil
}

// HTML is Render into a string, for embedding in page templates.
func HTML(state auth.State, content template.HTML, opts Options) (template.HTML, error) {
	var buf bytes.Buffer
	if err := Render(&buf, state, content, opts); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
