// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package cms is the gateway to the headless WordPress-like CMS that owns
// all portal content and user accounts. Every request is a single attempt
// with a bounded wait; failures come back as *Error values and are logged
// here, so callers only decide what to render instead.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every CMS call unless the client is configured otherwise.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of a CMS response is read into memory.
const maxBodySize = 8 << 20

// Kind classifies a failed CMS call.
type Kind string

const (
	KindTimeout Kind = "timeout"
	KindNetwork Kind = "network"
	KindStatus  Kind = "status"
	KindHTML    Kind = "html"
	KindParse   Kind = "parse"
)

// Error describes a failed CMS call. Message carries the CMS's own
// "message" field from a JSON error body, when there was one.
type Error struct {
	Kind     Kind
	Endpoint string
	Status   int
	Message  string
	Snippet  string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cms %s %s", e.Kind, e.Endpoint)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// RequestOptions are merged over the default JSON request settings.
type RequestOptions struct {
	Method string
	Header http.Header
	Body   any
	Token  string // sent as "Authorization: Bearer <token>"
}

// Client talks to the CMS content API and its auth extension.
type Client struct {
	baseURL string
	authURL string
	timeout time.Duration
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a client for the content API at baseURL and the auth
// endpoints at authURL.
func New(baseURL, authURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		authURL: strings.TrimRight(authURL, "/"),
		timeout: DefaultTimeout,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON calls baseURL+endpoint and decodes the JSON response into out.
// GET requests are memoized when ctx carries a Memo.
func (c *Client) FetchJSON(ctx context.Context, endpoint string, opts *RequestOptions, out any) error {
	return c.fetch(ctx, c.baseURL, endpoint, opts, out)
}

// PostAuth POSTs body as JSON to authURL+endpoint, optionally with a bearer
// token, and decodes the JSON response into out.
func (c *Client) PostAuth(ctx context.Context, endpoint, token string, body, out any) error {
	return c.fetch(ctx, c.authURL, endpoint, &RequestOptions{
		Method: http.MethodPost,
		Body:   body,
		Token:  token,
	}, out)
}

func (c *Client) fetch(ctx context.Context, base, endpoint string, opts *RequestOptions, out any) error {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	fullURL := base + endpoint

	var (
		body []byte
		err  error
	)
	memo := MemoFromContext(ctx)
	if memo != nil && method == http.MethodGet && opts.Body == nil {
		body, err = memo.do(memoKey(fullURL, opts), func() ([]byte, error) {
			return c.roundTrip(ctx, method, fullURL, endpoint, opts)
		})
	} else {
		body, err = c.roundTrip(ctx, method, fullURL, endpoint, opts)
	}
	if err != nil {
		logFailure(err)
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		cerr := &Error{Kind: KindParse, Endpoint: endpoint, Snippet: snippet(body), Err: err}
		logFailure(cerr)
		return cerr
	}
	return nil
}

// roundTrip performs one HTTP exchange and returns a body that is known to
// be JSON. Any other outcome is reported as *Error.
func (c *Client) roundTrip(ctx context.Context, method, fullURL, endpoint string, opts *RequestOptions) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("cms marshal %s: %w", endpoint, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	for key, values := range opts.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Endpoint: endpoint, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Endpoint: endpoint, Status: resp.StatusCode, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Endpoint: endpoint, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:     KindStatus,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  errorMessage(body),
			Snippet:  snippet(body),
		}
	}

	if looksLikeHTML(resp.Header.Get("Content-Type"), body) {
		return nil, &Error{Kind: KindHTML, Endpoint: endpoint, Status: resp.StatusCode, Snippet: snippet(body)}
	}

	if !json.Valid(body) {
		return nil, &Error{
			Kind:     KindParse,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Snippet:  snippet(body),
			Err:      errors.New("invalid JSON body"),
		}
	}

	return body, nil
}

// looksLikeHTML catches error pages served with a 200, which WordPress
// does when a plugin or the proxy in front of it fails.
func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// errorMessage extracts the "message" field of a WordPress error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

func logFailure(err error) {
	var cerr *Error
	if !errors.As(err, &cerr) {
		slog.Warn("cms request failed", "error", err)
		return
	}
	attrs := []any{"endpoint", cerr.Endpoint, "kind", string(cerr.Kind)}
	if cerr.Status != 0 {
		attrs = append(attrs, "status", cerr.Status)
	}
	if cerr.Err != nil {
		attrs = append(attrs, "error", cerr.Err)
	}
	if cerr.Kind == KindHTML || cerr.Kind == KindParse {
		attrs = append(attrs, "snippet", cerr.Snippet)
	}
	slog.Warn("cms request failed", attrs...)
}
