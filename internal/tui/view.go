package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"secnetsim/internal/model"
	"secnetsim/internal/sim"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	normalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")) // Orange
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	pathHighlightStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("81")). // Sky Blue/Cyan
				Bold(true)

	borderColor = lipgloss.Color("63")
	activeColor = lipgloss.Color("205")
)

type layout struct {
	leftWidth      int
	rightWidth     int
	interiorHeight int
	statusHeight   int
	activityHeight int
}

func (m AppModel) layout() layout {
	width := m.WindowSize.Width
	height := m.WindowSize.Height
	if width == 0 {
		width = 100
	}
	if height == 0 {
		height = 30
	}

	// Two borders per panel plus a little slack.
	netWidth := width - 6
	if netWidth < 30 {
		netWidth = 30
	}
	var l layout
	l.leftWidth = netWidth * 2 / 5
	l.rightWidth = netWidth - l.leftWidth

	footer := 2
	if m.ShowHelp {
		footer = 5
	}
	// Header, footer and the two border lines.
	l.interiorHeight = height - footer - 4
	if l.interiorHeight < 8 {
		l.interiorHeight = 8
	}
	// The right column holds two boxes, so two more border lines.
	l.statusHeight = (l.interiorHeight - 2) / 2
	l.activityHeight = l.interiorHeight - 2 - l.statusHeight - 2 // title + blank
	if l.activityHeight < 1 {
		l.activityHeight = 1
	}
	return l
}

func (m AppModel) View() string {
	if m.Err != nil {
		return fmt.Sprintf("\n  Error: %v\n", m.Err)
	}

	l := m.layout()
	state := m.Driver.State()
	g := m.Driver.Graph()

	header := bannerStyle.Render("Secure Network Transmission Simulator") + "  " +
		titleStyle.Render(state.Phase.Title()) + dimStyle.Render(fmt.Sprintf("  mode %s  step %d", state.Mode, state.Step))

	left := lipgloss.NewStyle().
		Width(l.leftWidth).
		Height(l.interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(activeColor).
		Render(m.nodeList(l, state))

	status := lipgloss.NewStyle().
		Width(l.rightWidth).
		Height(l.statusHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(clip(m.statusPanel(l, state, g), l.statusHeight))

	activityBox := lipgloss.NewStyle().
		Width(l.rightWidth).
		Height(l.interiorHeight-l.statusHeight-2).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(titleStyle.Render("Activity") + "\n\n" + m.ActivityViewport.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.JoinVertical(lipgloss.Left, status, activityBox))

	var footer strings.Builder
	if m.Notice != "" {
		footer.WriteString(warnStyle.Render(m.Notice))
	}
	footer.WriteString("\n")
	footer.WriteString(m.Help.View(m.Keys))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer.String())
}

func (m AppModel) nodeList(l layout, state sim.State) string {
	var b strings.Builder
	nodes := m.Driver.Graph().Nodes

	switch {
	case m.InputMode:
		b.WriteString(titleStyle.Render("Find: ") + m.InputBuffer.View())
	case m.SearchActive:
		b.WriteString(titleStyle.Render(fmt.Sprintf("Nodes matching %q", m.InputBuffer.Value())))
	default:
		b.WriteString(titleStyle.Render("Network Nodes"))
	}
	b.WriteString("\n\n")

	onPath := make(map[string]int, len(state.Path))
	for i, id := range state.Path {
		onPath[id] = i
	}

	// Windowing: header is 2 lines (Title + 1 blank line)
	visibleItems := l.interiorHeight - 2
	if visibleItems < 1 {
		visibleItems = 1
	}
	startIdx := 0
	endIdx := len(m.FilteredIndices)
	if len(m.FilteredIndices) > visibleItems {
		if m.SelectedIdx >= visibleItems/2 {
			startIdx = m.SelectedIdx - visibleItems/2
		}
		if startIdx+visibleItems > len(m.FilteredIndices) {
			startIdx = len(m.FilteredIndices) - visibleItems
		}
		endIdx = startIdx + visibleItems
	}

	for i := startIdx; i < endIdx; i++ {
		n := nodes[m.FilteredIndices[i]]

		role := model.IconIdle
		if n.Sender {
			role = model.IconSender
		} else if n.Receiver {
			role = model.IconReceiver
		}

		marker := " "
		hop, routed := onPath[n.ID]
		switch {
		case n.Compromised:
			marker = model.IconCompromised
		case routed && state.Phase == sim.Transmitting && hop == state.Cursor-1:
			marker = model.IconPacket
		case routed && state.Visited(hop):
			marker = model.IconVisited
		case routed:
			marker = model.IconOnPath
		}

		line := fmt.Sprintf("%s %s %s %s", role, marker, model.CategoryIcon(n.Category), n.Label)
		// Truncate
		if r := []rune(line); len(r) > l.leftWidth-1 && l.leftWidth > 4 {
			line = string(r[:l.leftWidth-4]) + "..."
		}

		var style lipgloss.Style
		switch {
		case i == m.SelectedIdx:
			style = selectedStyle
		case n.Compromised:
			style = alertStyle
		case routed:
			style = pathHighlightStyle
		default:
			style = normalStyle
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	if len(m.FilteredIndices) == 0 {
		b.WriteString(dimStyle.Render("no matching nodes"))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m AppModel) statusPanel(l layout, state sim.State, g *model.Graph) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Transmission"))
	b.WriteString("\n\n")

	if len(state.Path) == 0 {
		if state.Phase == sim.Idle {
			b.WriteString(dimStyle.Render("Path: press enter to find a route"))
		} else {
			b.WriteString(alertStyle.Render("Path: receiver unreachable"))
		}
	} else {
		labels := make([]string, len(state.Path))
		for i, id := range state.Path {
			labels[i] = g.Label(id)
		}
		b.WriteString("Path: " + pathHighlightStyle.Render(strings.Join(labels, " → ")))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  (cost %g)", state.Cost)))
		if state.Phase >= sim.Transmitting {
			visited := min(state.Cursor, len(state.Path))
			b.WriteString(fmt.Sprintf("\nPacket: %d of %d hops", visited, len(state.Path)))
		}
	}
	b.WriteString("\n")

	if state.LastSuccess != nil {
		if *state.LastSuccess {
			b.WriteString(okStyle.Render("Verified") + dimStyle.Render(" hash "+short(state.LastHash)))
		} else {
			b.WriteString(alertStyle.Render("Integrity check failed") + dimStyle.Render(" hash "+short(state.LastHash)))
		}
		b.WriteString("\n")
	}
	if len(state.Keys) > 0 {
		b.WriteString(keyStyle.Render(fmt.Sprintf("%d session keys distributed", len(state.Keys))))
		b.WriteString("\n")
	}

	if len(m.FilteredIndices) == 0 {
		return b.String()
	}
	n := g.Nodes[m.FilteredIndices[m.SelectedIdx]]
	b.WriteString("\n")
	b.WriteString(titleStyle.Render(n.Label) + dimStyle.Render(fmt.Sprintf("  %s, %s, %d links", n.ID, n.Category.Title(), g.Degree(n.ID))))
	if n.Compromised {
		b.WriteString(alertStyle.Render("  compromised"))
	}
	if res := m.Driver.Result(); res != nil {
		if dist, ok := res.Distances[n.ID]; ok && !math.IsInf(dist, 1) {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %g from sender", dist)))
		} else {
			b.WriteString(dimStyle.Render("  unreachable"))
		}
	}
	b.WriteString("\n")

	edges := g.Incident(n.ID)
	if len(edges) == 0 {
		b.WriteString(dimStyle.Render("no links"))
		return b.String()
	}
	rows := make([][]string, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []string{
			g.Label(model.Opposite(e, n.ID)),
			string(e.Category),
			fmt.Sprintf("%g", e.Latency),
			fmt.Sprintf("%g", e.EncryptionOverhead),
			fmt.Sprintf("%g", e.SecurityRisk),
			fmt.Sprintf("%g", e.Weight),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("Neighbor", "Link", "Lat", "Enc", "Risk", "Cost").
		Rows(rows...).
		Width(l.rightWidth)
	b.WriteString(t.Render())
	return b.String()
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "…"
	}
	return hash
}

// clip keeps the first n lines of s.
func clip(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
