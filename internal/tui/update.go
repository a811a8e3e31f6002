package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"secnetsim/internal/activity"
	"secnetsim/internal/ids"
	"secnetsim/internal/sim"
	"secnetsim/internal/topology"
)

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.Help.Width = msg.Width
		m.resizeActivity()
		return m, nil

	case MsgTimer:
		msg.fire()
		m.afterDriver()
		return m, m.sched.drain()

	case tea.KeyMsg:
		if m.InputMode {
			switch msg.Type {
			case tea.KeyEnter:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.performSearch()
				return m, nil
			case tea.KeyEsc:
				m.clearSearch()
				return m, nil
			}
			m.InputBuffer, cmd = m.InputBuffer.Update(msg)
			m.performSearch()
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case msg.Type == tea.KeyEsc:
			if m.SearchActive {
				m.clearSearch()
			} else if m.ShowHelp {
				m.ShowHelp = false
				m.resizeActivity()
			}
			return m, nil
		case key.Matches(msg, m.Keys.Up):
			if m.SelectedIdx > 0 {
				m.SelectedIdx--
			}
		case key.Matches(msg, m.Keys.Down):
			if m.SelectedIdx < len(m.FilteredIndices)-1 {
				m.SelectedIdx++
			}
		case key.Matches(msg, m.Keys.Next):
			m.Notice = ""
			if err := m.Driver.Advance(); err != nil {
				m.Notice = describe(err)
			}
		case key.Matches(msg, m.Keys.Start):
			m.Notice = ""
			if err := m.Driver.Start(); err != nil {
				m.Notice = describe(err)
			}
		case key.Matches(msg, m.Keys.Intrude):
			m.Notice = ""
			if alert := m.Driver.Intrude(); alert == nil {
				m.Notice = "No node left that could be compromised"
			}
		case key.Matches(msg, m.Keys.Mode):
			mode := m.Driver.ToggleMode()
			m.Notice = "Switched to " + mode.String() + " mode"
		case key.Matches(msg, m.Keys.Reset):
			m.Driver.Reset()
			m.Notice = ""
		case key.Matches(msg, m.Keys.Regenerate):
			m.regenerate()
		case key.Matches(msg, m.Keys.Search):
			m.InputMode = true
			m.InputBuffer.Focus()
			m.InputBuffer.SetValue("")
			return m, textinput.Blink
		case key.Matches(msg, m.Keys.ScrollUp):
			m.ActivityViewport.PageUp()
			return m, nil
		case key.Matches(msg, m.Keys.ScrollDown):
			m.ActivityViewport.PageDown()
			return m, nil
		case key.Matches(msg, m.Keys.Help):
			m.ShowHelp = !m.ShowHelp
			m.Help.ShowAll = m.ShowHelp
			m.resizeActivity()
			return m, nil
		}
		m.afterDriver()
		return m, m.sched.drain()
	}

	return m, cmd
}

func describe(err error) string {
	if errors.Is(err, sim.ErrMissingEndpoint) {
		return "The network needs both a sender and a receiver"
	}
	return err.Error()
}

// afterDriver syncs the derived views with whatever the driver just did.
func (m *AppModel) afterDriver() {
	if m.metrics != nil {
		m.metrics.SetCompromised(len(ids.CompromisedNodes(m.Driver.Graph().Nodes)))
	}
	m.refreshActivity()
}

func (m *AppModel) regenerate() {
	g, err := topology.Generate(m.topology, m.rand)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to generate topology")
		m.Notice = err.Error()
		return
	}
	m.Driver.SetGraph(g)
	m.Feed.Add(activity.KindInfo, "", fmt.Sprintf("Generated a new network with %d nodes and %d links", len(g.Nodes), len(g.Edges)))
	m.Notice = ""
	m.SelectedIdx = 0
	m.performSearch()
}

func (m *AppModel) clearSearch() {
	m.InputMode = false
	m.InputBuffer.Blur()
	m.InputBuffer.SetValue("")
	m.performSearch()
}

// performSearch filters the node list by label, id or category prefix.
func (m *AppModel) performSearch() {
	nodes := m.Driver.Graph().Nodes
	term := strings.ToLower(strings.TrimSpace(m.InputBuffer.Value()))
	m.SearchActive = term != ""

	var filtered []int
	for i, n := range nodes {
		if term == "" ||
			strings.Contains(strings.ToLower(n.Label), term) ||
			strings.HasPrefix(strings.ToLower(n.ID), term) ||
			strings.HasPrefix(string(n.Category), term) {
			filtered = append(filtered, i)
		}
	}
	m.FilteredIndices = filtered

	if m.SelectedIdx >= len(m.FilteredIndices) {
		if len(m.FilteredIndices) > 0 {
			m.SelectedIdx = len(m.FilteredIndices) - 1
		} else {
			m.SelectedIdx = 0
		}
	}
}

// refreshActivity renders the feed into the viewport, newest at the top.
func (m *AppModel) refreshActivity() {
	var b strings.Builder
	for _, e := range m.Feed.Entries() {
		b.WriteString(activityLine(e))
		b.WriteString("\n")
	}
	atTop := m.ActivityViewport.AtTop()
	m.ActivityViewport.SetContent(strings.TrimSuffix(b.String(), "\n"))
	if atTop {
		m.ActivityViewport.GotoTop()
	}
}

func activityLine(e activity.Entry) string {
	style := activityStyle(e)
	return dimStyle.Render(e.Timestamp.Format(time.TimeOnly)) + " " + style.Render(e.Message)
}

func activityStyle(e activity.Entry) lipgloss.Style {
	switch e.Kind {
	case activity.KindIDS:
		if e.Severity == ids.SeverityCritical || e.Severity == ids.SeverityHigh {
			return alertStyle
		}
		return warnStyle
	case activity.KindKey:
		return keyStyle
	case activity.KindPath:
		return pathHighlightStyle
	}
	return normalStyle
}

// resizeActivity fits the viewport into the lower right panel.
func (m *AppModel) resizeActivity() {
	l := m.layout()
	m.ActivityViewport.Width = l.rightWidth
	m.ActivityViewport.Height = l.activityHeight
}
