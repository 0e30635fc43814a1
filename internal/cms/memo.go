package cms

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

type memoCtxKey struct{}

// Memo deduplicates identical GET calls made while serving one HTTP
// request. Only successful bodies are kept; a Memo must not outlive the
// request it was created for.
type Memo struct {
	group   singleflight.Group
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemo returns an empty request-scoped memo.
func NewMemo() *Memo {
	return &Memo{entries: make(map[string][]byte)}
}

// WithMemo returns a context that carries m.
func WithMemo(ctx context.Context, m *Memo) context.Context {
	return context.WithValue(ctx, memoCtxKey{}, m)
}

// MemoFromContext returns the memo carried by ctx, or nil.
func MemoFromContext(ctx context.Context) *Memo {
	m, _ := ctx.Value(memoCtxKey{}).(*Memo)
	return m
}

// Len reports how many distinct responses are memoized.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memo) do(key string, fn func() ([]byte, error)) ([]byte, error) {
	m.mu.Lock()
	if body, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return body, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(key, func() (any, error) {
		m.mu.Lock()
		if body, ok := m.entries[key]; ok {
			m.mu.Unlock()
			return body, nil
		}
		m.mu.Unlock()

		body, err := fn()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.entries[key] = body
		m.mu.Unlock()
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// memoKey identifies a GET by URL plus the caller-visible request options.
func memoKey(fullURL string, opts *RequestOptions) string {
	var b strings.Builder
	b.WriteString(fullURL)
	if opts.Token != "" {
		b.WriteString("|bearer:")
		b.WriteString(opts.Token)
	}
	keys := make([]string, 0, len(opts.Header))
	for k := range opts.Header {
		keys = append(keys, http.CanonicalHeaderKey(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strings.Join(opts.Header.Values(k), ","))
	}
	return b.String()
}
