package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sleeptrackr/internal/sleep"
	"github.com/sadopc/sleeptrackr/internal/tracker"
)

// chartSessions caps how many nights the history chart shows.
const chartSessions = 14

type historyModel struct {
	repo   *tracker.Repository
	width  int
	height int

	sessions []sleep.Session
	cursor   int

	chart barchart.Model
}

func newHistoryModel(repo *tracker.Repository) historyModel {
	return historyModel{
		repo:  repo,
		chart: barchart.New(60, 10),
	}
}

func (h *historyModel) setSize(w, hgt int) {
	h.width = w
	h.height = hgt
	h.buildChart()
}

type historyDataMsg struct {
	sessions []sleep.Session
}

func (h historyModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return historyDataMsg{sessions: h.repo.History()}
	}
}

func (h historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case historyDataMsg:
		h.sessions = msg.sessions
		if h.cursor >= len(h.sessions) {
			h.cursor = max(0, len(h.sessions)-1)
		}
		h.buildChart()
		return h, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if h.cursor > 0 {
				h.cursor--
			}
		case key.Matches(msg, keys.Down):
			if h.cursor < len(h.sessions)-1 {
				h.cursor++
			}
		}
	}
	return h, nil
}

// buildChart draws average noise per night, oldest on the left.
func (h *historyModel) buildChart() {
	chartWidth := max(20, h.width-8)
	chartHeight := 10
	if h.height > 40 {
		chartHeight = 14
	}
	h.chart = barchart.New(chartWidth, chartHeight)

	n := min(len(h.sessions), chartSessions)
	if n == 0 {
		return
	}

	bars := make([]barchart.BarData, 0, n)
	for i := n - 1; i >= 0; i-- {
		s := h.sessions[i]
		bars = append(bars, barchart.BarData{
			Label: s.StartTime.Local().Format("02"),
			Values: []barchart.BarValue{{
				Name:  "noise",
				Value: s.AverageNoise,
				Style: severityStyle(s.Suggestion.Color()),
			}},
		})
	}

	h.chart.PushAll(bars)
	h.chart.Draw()
}

func (h historyModel) view() string {
	w := h.width - 4
	title := titleStyle.Render("History")

	if len(h.sessions) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No sleep history yet"),
		))
	}

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		title, "  ", mutedStyle.Render(fmt.Sprintf("%d nights · avg noise per night", len(h.sessions))),
	)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
		header, "", h.chart.View(), "", h.renderList(w), "", h.renderDetail(), "",
		mutedStyle.Render("  ↑/↓: select  e: export"),
	))
}

// visibleRange returns the window of list rows that keeps the cursor shown.
func (h historyModel) visibleRange() (int, int) {
	rows := max(3, h.height/4)
	start := 0
	if h.cursor >= rows {
		start = h.cursor - rows + 1
	}
	return start, min(len(h.sessions), start+rows)
}

func (h historyModel) renderList(w int) string {
	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-30s %10s %10s  %s", "Night", "Light", "Noise", "Rating")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 64))))

	start, end := h.visibleRange()
	for i := start; i < end; i++ {
		s := h.sessions[i]
		cursor := "  "
		style := normalItemStyle
		if i == h.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		dot := severityStyle(s.Suggestion.Color()).Render("●")
		line := fmt.Sprintf("%s%-30s %10s %10s  ", cursor, sessionRange(s.StartTime, s.EndTime),
			formatLevel(s.AverageLight, "lux"), formatLevel(s.AverageNoise, "dB"))
		rows = append(rows, style.Render(line)+dot+" "+s.Suggestion.Severity.String())
	}
	return strings.Join(rows, "\n")
}

func (h historyModel) renderDetail() string {
	if h.cursor >= len(h.sessions) {
		return ""
	}
	s := h.sessions[h.cursor]
	meta := mutedStyle.Render(fmt.Sprintf("Duration %s · peak %s",
		formatDuration(s.Duration()), formatLevel(s.PeakNoise, "dB")))
	return lipgloss.JoinVertical(lipgloss.Left,
		meta,
		severityStyle(s.Suggestion.Color()).Render(s.Suggestion.Message),
	)
}
