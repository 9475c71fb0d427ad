package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sleeptrackr/internal/sleep"
	"github.com/sadopc/sleeptrackr/internal/tracker"
)

// monitorModel is the Tracker view: live levels for the session in progress
// and the morning analysis once it stops.
type monitorModel struct {
	repo     *tracker.Repository
	source   tracker.NoiseSource
	interval time.Duration
	ctx      context.Context
	width    int
	height   int

	now       time.Time
	tracking  bool
	startedAt time.Time
	readings  []sleep.Reading

	noiseChart barchart.Model
	lightChart barchart.Model
}

func newMonitorModel(ctx context.Context, repo *tracker.Repository, source tracker.NoiseSource, interval time.Duration) monitorModel {
	return monitorModel{
		repo:       repo,
		source:     source,
		interval:   interval,
		ctx:        ctx,
		now:        time.Now(),
		noiseChart: barchart.New(60, 6),
		lightChart: barchart.New(60, 6),
	}
}

func (m monitorModel) Init() tea.Cmd {
	return m.loadData()
}

func (m *monitorModel) setSize(w, h int) {
	m.width = w
	m.height = h
	m.buildCharts()
}

type monitorDataMsg struct {
	tracking  bool
	startedAt time.Time
	readings  []sleep.Reading
}

func (m monitorModel) loadData() tea.Cmd {
	return func() tea.Msg {
		return monitorDataMsg{
			tracking:  m.repo.IsTracking(),
			startedAt: m.repo.StartedAt(),
			readings:  m.repo.Readings(),
		}
	}
}

func (m monitorModel) update(msg tea.Msg) (monitorModel, tea.Cmd) {
	switch msg := msg.(type) {
	case monitorDataMsg:
		m.tracking = msg.tracking
		m.startedAt = msg.startedAt
		m.readings = msg.readings
		m.buildCharts()
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Start):
			return m.startTracking()
		case key.Matches(msg, keys.Stop):
			return m.stopTracking()
		}
	}
	return m, nil
}

func (m monitorModel) startTracking() (monitorModel, tea.Cmd) {
	if err := m.repo.StartTracking(); err != nil {
		text := fmt.Sprintf("Error: %v", err)
		if errors.Is(err, tracker.ErrAlreadyTracking) {
			text = "Already tracking"
		}
		return m, func() tea.Msg { return statusMsg{text: text, isError: true} }
	}
	m.tracking = true
	return m, tea.Batch(
		m.runSampler(),
		m.loadData(),
		func() tea.Msg { return statusMsg{text: "Tracking started"} },
	)
}

// runSampler blocks in its own command goroutine until tracking stops.
func (m monitorModel) runSampler() tea.Cmd {
	sampler := tracker.NewSampler(m.repo, m.source, m.interval)
	ctx := m.ctx
	return func() tea.Msg {
		return samplerDoneMsg{err: sampler.Run(ctx)}
	}
}

func (m monitorModel) stopTracking() (monitorModel, tea.Cmd) {
	if _, ok := m.repo.StopTracking(); !ok {
		return m, func() tea.Msg { return statusMsg{text: "Not tracking"} }
	}
	m.tracking = false
	return m, tea.Batch(
		m.loadData(),
		func() tea.Msg { return statusMsg{text: "Session saved"} },
	)
}

func (m monitorModel) elapsed() time.Duration {
	if !m.tracking || m.now.Before(m.startedAt) {
		return 0
	}
	return m.now.Sub(m.startedAt)
}

// chartCapacity is how many of the newest readings fit in a chart.
func (m monitorModel) chartCapacity() int {
	return max(1, (m.chartWidth()-2)/2)
}

func (m monitorModel) chartWidth() int {
	return max(20, m.width-8)
}

func (m *monitorModel) buildCharts() {
	w := m.chartWidth()
	m.noiseChart = barchart.New(w, 6)
	m.lightChart = barchart.New(w, 6)

	recent := m.readings
	if n := m.chartCapacity(); len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	if len(recent) == 0 {
		return
	}

	noiseBars := make([]barchart.BarData, 0, len(recent))
	lightBars := make([]barchart.BarData, 0, len(recent))
	for _, r := range recent {
		noiseStyle := lipgloss.NewStyle().Foreground(colorSecondary)
		if r.NoiseLevel > sleep.PoorDB {
			noiseStyle = lipgloss.NewStyle().Foreground(colorAccent)
		}
		lightStyle := lipgloss.NewStyle().Foreground(colorHighlight)
		if r.LightLevel > sleep.PoorLux {
			lightStyle = lipgloss.NewStyle().Foreground(colorWarning)
		}
		noiseBars = append(noiseBars, barchart.BarData{
			Values: []barchart.BarValue{{Name: "noise", Value: r.NoiseLevel, Style: noiseStyle}},
		})
		lightBars = append(lightBars, barchart.BarData{
			Values: []barchart.BarValue{{Name: "light", Value: r.LightLevel, Style: lightStyle}},
		})
	}

	m.noiseChart.PushAll(noiseBars)
	m.noiseChart.Draw()
	m.lightChart.PushAll(lightBars)
	m.lightChart.Draw()
}

func (m monitorModel) view() string {
	if m.width < 20 {
		return "Terminal too small"
	}

	w := m.width - 4
	panels := []string{m.renderClockPanel(w), m.renderLevelsPanel(w)}
	if !m.tracking && len(m.readings) > 0 {
		panels = append(panels, m.renderAnalysisPanel(w))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

func (m monitorModel) renderClockPanel(w int) string {
	if m.tracking {
		content := lipgloss.JoinVertical(lipgloss.Center,
			clockRunningStyle.Width(w-6).Render(formatDuration(m.elapsed())),
			successStyle.Render("●  TRACKING"),
			mutedStyle.Render("since "+m.startedAt.Local().Format("15:04")+"  ·  x to stop"),
		)
		return activePanelStyle.Width(w).Render(content)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		clockStyle.Width(w-6).Render("00:00:00"),
		mutedStyle.Render("■  IDLE"),
		mutedStyle.Render("Press s to start tracking"),
	)
	return panelStyle.Width(w).Render(content)
}

func (m monitorModel) renderLevelsPanel(w int) string {
	light, noise := "--", "--"
	if n := len(m.readings); n > 0 {
		last := m.readings[n-1]
		light = formatLevel(last.LightLevel, "lux")
		noise = formatLevel(last.NoiseLevel, "dB")
	}

	header := fmt.Sprintf("%s %s    %s %s    %s",
		titleStyle.Render("Light"), highlightStyle.Render(light),
		titleStyle.Render("Noise"), highlightStyle.Render(noise),
		mutedStyle.Render(fmt.Sprintf("Data points: %d", len(m.readings))),
	)

	if len(m.readings) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			header, "", mutedStyle.Render("No readings yet"),
		))
	}

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		subtitleStyle.Render("Noise (dB)"),
		m.noiseChart.View(),
		subtitleStyle.Render("Light (lux)"),
		m.lightChart.View(),
	))
}

func (m monitorModel) renderAnalysisPanel(w int) string {
	s := sleep.AnalyzeSession(m.readings)
	body := severityStyle(s.Color()).Render(s.Message)
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Morning Analysis"), "", body,
	))
}
