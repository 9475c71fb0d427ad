package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sleeptrackr/internal/export"
	"github.com/sadopc/sleeptrackr/internal/sensor"
	"github.com/sadopc/sleeptrackr/internal/tracker"
)

// Options wires the App to its collaborators.
type Options struct {
	// Context bounds the sampler goroutines. Defaults to context.Background.
	Context context.Context
	// Noise is polled once per snapshot tick. Defaults to a simulated meter.
	Noise tracker.NoiseSource
	// Interval is the snapshot cadence. Defaults to tracker.DefaultInterval.
	Interval time.Duration
	// Settings lists stored settings on the Settings view. Optional.
	Settings SettingsLister
	// Info is shown as read-only label/value rows on the Settings view.
	Info [][2]string
	// ExportDir receives exports. Defaults to the home directory.
	ExportDir string
}

// App is the root Bubble Tea model.
type App struct {
	repo   *tracker.Repository
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int
	exportDir     string
	dark          bool

	events       <-chan tracker.Event
	cancelEvents func()

	monitor  monitorModel
	history  historyModel
	settings settingsModel

	help   help.Model
	status string
}

func NewApp(repo *tracker.Repository, opts Options) App {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Noise == nil {
		opts.Noise = sensor.NewSimulatedNoise(uint64(time.Now().UnixNano()))
	}
	if opts.Interval <= 0 {
		opts.Interval = tracker.DefaultInterval
	}
	if opts.ExportDir == "" {
		opts.ExportDir, _ = os.UserHomeDir()
	}

	h := help.New()
	h.ShowAll = false

	dark := repo.IsDarkMode()
	applyTheme(dark)

	events, cancel := repo.Subscribe()

	return App{
		repo:         repo,
		activeView:   viewTracker,
		exportDir:    opts.ExportDir,
		dark:         dark,
		events:       events,
		cancelEvents: cancel,
		monitor:      newMonitorModel(opts.Context, repo, opts.Noise, opts.Interval),
		history:      newHistoryModel(repo),
		settings:     newSettingsModel(repo, opts.Settings, opts.Info),
		help:         h,
	}
}

// Close cancels the event subscription.
func (a App) Close() {
	a.cancelEvents()
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		a.monitor.Init(),
		a.history.refresh(),
		tickCmd(),
		waitForEvent(a.events),
	}
	// Resume sampling for a session started before the UI attached.
	if a.repo.IsTracking() {
		cmds = append(cmds, a.monitor.runSampler())
	}
	return tea.Batch(cmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent delivers the next Repository event as a message.
func waitForEvent(events <-chan tracker.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: e}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.monitor.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Theme):
			return a, setTheme(a.repo, !a.dark)
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Start), key.Matches(msg, keys.Stop):
			// Start and stop work from every view.
			var cmd tea.Cmd
			a.monitor, cmd = a.monitor.update(msg)
			return a, cmd
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewTracker
			return a, a.monitor.loadData()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewHistory
			return a, a.history.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		var cmd tea.Cmd
		a.monitor, cmd = a.monitor.update(msg)
		return a, tea.Batch(tickCmd(), cmd)

	case eventMsg:
		return a, tea.Batch(waitForEvent(a.events), a.handleEvent(msg.event))

	case eventsClosedMsg:
		return a, nil

	case samplerDoneMsg:
		if msg.err != nil {
			a.status = fmt.Sprintf("Sampler stopped: %v", msg.err)
		}
		return a, nil

	case themeChangedMsg:
		a.dark = msg.dark
		applyTheme(msg.dark)
		a.monitor.buildCharts()
		a.history.buildChart()
		a.status = "Theme: " + themeName(msg.dark)
		return a, a.settings.refresh()

	case statusMsg:
		a.status = msg.text
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a App) handleEvent(e tracker.Event) tea.Cmd {
	switch e.Kind {
	case tracker.EventTrackingStarted, tracker.EventSnapshotRecorded:
		return a.monitor.loadData()
	case tracker.EventTrackingStopped:
		return tea.Batch(a.monitor.loadData(), a.history.refresh())
	case tracker.EventHistorySaved:
		return a.settings.refresh()
	case tracker.EventSaveFailed:
		return func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Save failed: %v", e.Err), isError: true}
		}
	}
	return nil
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.(type) {
	case monitorDataMsg:
		a.monitor, cmd = a.monitor.update(msg)
		return a, cmd
	case historyDataMsg:
		a.history, cmd = a.history.update(msg)
		return a, cmd
	case settingsDataMsg:
		if !a.settings.formActive {
			a.settings, cmd = a.settings.update(msg)
			return a, cmd
		}
	}

	switch a.activeView {
	case viewTracker:
		a.monitor, cmd = a.monitor.update(msg)
	case viewHistory:
		a.history, cmd = a.history.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	return a.activeView == viewSettings && a.settings.formActive
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewTracker:
		return a.monitor.loadData()
	case viewHistory:
		return a.history.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTracker:
		content = a.monitor.view()
	case viewHistory:
		content = a.history.view()
	case viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(1, a.height-headerHeight-footerHeight)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("sleeptrackr")
	gap := max(1, a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		status = mutedStyle.Render(" " + a.status)
	}

	trackingInfo := ""
	if a.monitor.tracking {
		trackingInfo = successStyle.Render(" ● " + formatDuration(a.monitor.elapsed()))
	}

	left := footerStyle.Render(helpView)
	right := trackingInfo + status

	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	formats := []string{"CSV", "JSON"}
	var rows []string
	rows = append(rows, title, "")
	for i, f := range formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

	return activePanelStyle.Width(a.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < 1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	sessions := a.repo.History()
	dir := a.exportDir
	return func() tea.Msg {
		dateStr := time.Now().Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(dir, fmt.Sprintf("sleeptrackr-export-%s.csv", dateStr))
			if err := export.ToCSV(sessions, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(dir, fmt.Sprintf("sleeptrackr-export-%s.json", dateStr))
			if err := export.ToJSON(sessions, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path}
	}
}
