// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package tui is an interactive terminal browser for one category of the
// portal. It is a thin Bubble Tea front-end over filter.Machine: keystrokes
// become machine events, and every machine change is re-read as a snapshot.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"trialportal/internal/cms"
	"trialportal/internal/filter"
)

// maxResults is how many result rows are drawn.
const maxResults = 20

type focus int

const (
	focusSearch focus = iota
	focusTags
)

// Machine is the part of filter.Machine the browser drives.
type Machine interface {
	ToggleTag(id int)
	SetText(s string)
	ClearAll()
	Snapshot() filter.Snapshot
	Changes() <-chan struct{}
}

// changedMsg reports that the machine has a new snapshot.
type changedMsg struct{}

// closedMsg reports that the machine was closed.
type closedMsg struct{}

type keyMap struct {
	Switch key.Binding
	Toggle key.Binding
	Clear  key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Switch: key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "търсене/теми")),
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "избор на тема")),
	Clear:  key.NewBinding(key.WithKeys("ctrl+r", "esc"), key.WithHelp("esc", "изчисти")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "изход")),
}

// tagItem is a tag row in the facet list.
type tagItem struct {
	tag      cms.Tag
	selected bool
}

func (t tagItem) Title() string {
	mark := "[ ]"
	if t.selected {
		mark = "[x]"
	}
	return mark + " " + t.tag.Name
}

func (t tagItem) Description() string { return fmt.Sprintf("%d публикации", t.tag.Count) }
func (t tagItem) FilterValue() string { return t.tag.Name }

// Model is the Bubble Tea model of the browser.
type Model struct {
	machine  Machine
	category cms.Category
	tags     []cms.Tag

	search  textinput.Model
	tagList list.Model
	spinner spinner.Model
	focus   focus
	snap    filter.Snapshot

	width  int
	height int
}

// New creates a browser for category over machine. tags are the category's
// facets.
func New(machine Machine, category cms.Category, tags []cms.Tag) Model {
	search := textinput.New()
	search.Placeholder = "Търсене, например: астма"
	search.Prompt = "🔍 "
	search.CharLimit = 120
	search.Width = 40
	search.Focus()

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(primaryColor).
		BorderForeground(primaryColor)

	tagList := list.New(nil, delegate, 0, 0)
	tagList.Title = "Теми"
	tagList.SetShowStatusBar(false)
	tagList.SetShowHelp(false)
	tagList.SetFilteringEnabled(false)
	tagList.DisableQuitKeybindings()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle

	m := Model{
		machine:  machine,
		category: category,
		tags:     tags,
		search:   search,
		tagList:  tagList,
		spinner:  sp,
		focus:    focusSearch,
		snap:     machine.Snapshot(),
	}
	m.tagList.SetItems(m.tagItems())
	return m
}

// Init starts listening for machine changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForChange(m.machine.Changes()))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return closedMsg{}
		}
		return changedMsg{}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.tagList.SetSize(max(msg.Width/3, 20), max(msg.Height-8, 5))
		return m, nil

	case changedMsg:
		m.snap = m.machine.Snapshot()
		cmd := m.tagList.SetItems(m.tagItems())
		return m, tea.Batch(cmd, waitForChange(m.machine.Changes()))

	case closedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Switch):
		if m.focus == focusSearch {
			m.focus = focusTags
			m.search.Blur()
			return m, nil
		}
		m.focus = focusSearch
		return m, m.search.Focus()

	case key.Matches(msg, keys.Clear):
		m.search.SetValue("")
		m.machine.ClearAll()
		return m, nil
	}

	if m.focus == focusTags {
		if key.Matches(msg, keys.Toggle) {
			if item, ok := m.tagList.SelectedItem().(tagItem); ok {
				m.machine.ToggleTag(item.tag.ID)
			}
			return m, nil
		}
		if msg.String() == "q" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.tagList, cmd = m.tagList.Update(msg)
		return m, cmd
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.machine.SetText(v)
	}
	return m, cmd
}

func (m Model) tagItems() []list.Item {
	items := make([]list.Item, len(m.tags))
	for i, t := range m.tags {
		items[i] = tagItem{tag: t, selected: m.snap.IsSelected(t.ID)}
	}
	return items
}

// View renders the browser.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.category.Name))
	b.WriteString("\n\n")

	searchPane, tagPane := paneStyle, paneStyle
	if m.focus == focusSearch {
		searchPane = focusedPaneStyle
	} else {
		tagPane = focusedPaneStyle
	}
	b.WriteString(searchPane.Render(m.search.View()))
	b.WriteString("\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		tagPane.Render(m.tagList.View()),
		paneStyle.Render(m.resultsView()),
	))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab: търсене/теми · space: избор · esc: изчисти · ctrl+c: изход"))
	return b.String()
}

func (m Model) resultsView() string {
	var b strings.Builder

	switch m.snap.State {
	case filter.Loading:
		b.WriteString(m.spinner.View() + loadingStyle.Render(" Зареждане…"))
	case filter.Filtering:
		b.WriteString(statusStyle.Render(fmt.Sprintf("Резултати: %d", len(m.snap.Results))))
	default:
		b.WriteString(statusStyle.Render(fmt.Sprintf("Всички публикации: %d", len(m.snap.Results))))
	}
	b.WriteString("\n\n")

	if len(m.snap.Results) == 0 {
		b.WriteString(emptyStyle.Render("Няма намерени публикации."))
		return b.String()
	}
	for i, p := range m.snap.Results {
		if i == maxResults {
			b.WriteString(statusStyle.Render(fmt.Sprintf("… и още %d", len(m.snap.Results)-maxResults)))
			break
		}
		line := "• " + cms.PlainText(p.Title)
		if !p.Date.IsZero() {
			line += "  " + dateStyle.Render(p.Date.Format("02.01.2006"))
		}
		b.WriteString(resultStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
