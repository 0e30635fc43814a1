// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package filter holds the interactive search state of a category: the
// selected tags, the raw and debounced search text and the visible result
// list.
//
// Machine is the stateful form, driven by an event loop such as the
// terminal browser. Selection is the stateless form used by HTTP handlers,
// where the browser already debounces and keeps only the latest response.
package filter

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"trialportal/internal/cms"
)

// DefaultDebounce is the quiet period after the last keystroke before the
// search text is committed.
const DefaultDebounce = 500 * time.Millisecond

// State is the machine's coarse state.
type State int

const (
	// Idle shows the initial dataset; no filter is active.
	Idle State = iota
	// Filtering shows the result of the latest filtered query.
	Filtering
	// Loading waits for the latest filtered query.
	Loading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Filtering:
		return "filtering"
	case Loading:
		return "loading"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Searcher runs one filtered posts query. It reports failures as an empty
// list.
type Searcher interface {
	FilteredPosts(ctx context.Context, categorySlug string, tagIDs []int, search string, perPage int) []cms.Post
}

// Options configure a Machine.
type Options struct {
	CategorySlug string
	Initial      []cms.Post // shown while Idle
	Debounce     time.Duration
	PerPage      int
}

// Snapshot is an immutable copy of the machine state.
type Snapshot struct {
	State         State
	SelectedTags  []int // ascending
	RawText       string
	DebouncedText string
	Results       []cms.Post
	Loading       bool
}

// IsSelected reports whether tag id is in the selection.
func (s Snapshot) IsSelected(id int) bool {
	_, found := slices.BinarySearch(s.SelectedTags, id)
	return found
}

// Machine coordinates tag toggles, debounced text and query results. Only
// the response of the most recently issued query is applied; earlier
// responses are dropped when they arrive.
type Machine struct {
	search Searcher
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	selected  map[int]struct{}
	raw       string
	debounced string
	results   []cms.Post
	state     State
	seq       uint64 // last issued query
	timer     *time.Timer
	timerGen  uint64 // last scheduled commit
	closed    bool
	changes   chan struct{}
}

// New creates a machine in the Idle state showing opts.Initial.
func New(search Searcher, opts Options) *Machine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PerPage <= 0 {
		opts.PerPage = cms.MaxPerPage
	}
	opts.Initial = slices.Clone(opts.Initial)
	if opts.Initial == nil {
		opts.Initial = []cms.Post{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		search:   search,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		selected: make(map[int]struct{}),
		results:  opts.Initial,
		state:    Idle,
		changes:  make(chan struct{}, 1),
	}
}

// Changes signals after state changes. Signals coalesce: a receiver that
// falls behind sees one pending signal and should read a fresh Snapshot.
// The channel is closed by Close.
func (m *Machine) Changes() <-chan struct{} {
	return m.changes
}

// ToggleTag adds or removes id from the selection and re-evaluates the
// filter immediately.
func (m *Machine) ToggleTag(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, ok := m.selected[id]; ok {
		delete(m.selected, id)
	} else {
		m.selected[id] = struct{}{}
	}
	m.refreshLocked()
}

// SetText records a keystroke. The text is committed after the debounce
// period passes without another call.
func (m *Machine) SetText(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.raw = s
	m.stopTimerLocked()
	gen := m.timerGen
	m.timer = time.AfterFunc(m.opts.Debounce, func() { m.commit(gen) })
	m.notifyLocked()
}

// ClearAll drops every filter and returns to the initial dataset. A pending
// text commit is cancelled and in-flight responses will be ignored.
func (m *Machine) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.stopTimerLocked()
	clear(m.selected)
	m.raw = ""
	m.debounced = ""
	m.seq++
	m.state = Idle
	m.results = m.opts.Initial
	m.notifyLocked()
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Close stops the debounce timer, abandons in-flight queries and closes
// the Changes channel.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.stopTimerLocked()
	m.cancel()
	close(m.changes)
}

func (m *Machine) snapshotLocked() Snapshot {
	tags := make([]int, 0, len(m.selected))
	for id := range m.selected {
		tags = append(tags, id)
	}
	slices.Sort(tags)
	return Snapshot{
		State:         m.state,
		SelectedTags:  tags,
		RawText:       m.raw,
		DebouncedText: m.debounced,
		Results:       slices.Clone(m.results),
		Loading:       m.state == Loading,
	}
}

func (m *Machine) commit(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.timerGen {
		return
	}
	m.timer = nil
	if strings.TrimSpace(m.raw) == strings.TrimSpace(m.debounced) {
		m.debounced = m.raw
		return
	}
	m.debounced = m.raw
	m.refreshLocked()
}

// refreshLocked issues a query for the current filters, or returns to Idle
// when none is active.
func (m *Machine) refreshLocked() {
	m.seq++
	text := strings.TrimSpace(m.debounced)
	if len(m.selected) == 0 && text == "" {
		m.state = Idle
		m.results = m.opts.Initial
		m.notifyLocked()
		return
	}

	tags := make([]int, 0, len(m.selected))
	for id := range m.selected {
		tags = append(tags, id)
	}
	slices.Sort(tags)

	m.state = Loading
	m.notifyLocked()
	go m.run(m.seq, tags, text)
}

func (m *Machine) run(seq uint64, tags []int, text string) {
	var posts []cms.Post
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("filter query panicked", "category", m.opts.CategorySlug, "panic", r)
				posts = nil
			}
		}()
		posts = m.search.FilteredPosts(m.ctx, m.opts.CategorySlug, tags, text, m.opts.PerPage)
	}()
	if posts == nil {
		posts = []cms.Post{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || seq != m.seq {
		slog.Debug("filter response superseded", "seq", seq, "latest", m.seq)
		return
	}
	m.results = posts
	m.state = Filtering
	m.notifyLocked()
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

func (m *Machine) notifyLocked() {
	if m.closed {
		return
	}
	select {
	case m.changes <- struct{}{}:
	default:
	}
}
