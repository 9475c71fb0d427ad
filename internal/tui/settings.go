package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/sleeptrackr/internal/history"
	"github.com/sadopc/sleeptrackr/internal/store"
	"github.com/sadopc/sleeptrackr/internal/tracker"
)

// SettingsLister lists the raw stored settings for display.
type SettingsLister interface {
	GetAllSettings() ([]store.Setting, error)
}

type settingsModel struct {
	repo   *tracker.Repository
	lister SettingsLister
	info   [][2]string
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	theme *string
}

func newSettingsModel(repo *tracker.Repository, lister SettingsLister, info [][2]string) settingsModel {
	theme := ""
	return settingsModel{
		repo:   repo,
		lister: lister,
		info:   info,
		theme:  &theme,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings []store.Setting
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		if s.lister == nil {
			return settingsDataMsg{}
		}
		settings, err := s.lister.GetAllSettings()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Settings error: %v", err), isError: true}
		}
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Enter) {
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.theme = themeName(s.repo.IsDarkMode())

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Theme").
				Options(
					huh.NewOption("Dark", "dark"),
					huh.NewOption("Light", "light"),
				).Value(s.theme),
		).Title("Appearance"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		return s, tea.Batch(setTheme(s.repo, *s.theme == "dark"), s.refresh())
	}

	return s, cmd
}

// setTheme persists the preference and reports the new theme.
func setTheme(repo *tracker.Repository, dark bool) tea.Cmd {
	return func() tea.Msg {
		if err := repo.SaveThemePreference(dark); err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return themeChangedMsg{dark: dark}
	}
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	var rows []string
	rows = append(rows, title, "")

	for _, kv := range s.info {
		rows = append(rows, settingRow(kv[0], kv[1]))
	}
	if len(s.info) > 0 {
		rows = append(rows, "")
	}

	rows = append(rows, subtitleStyle.Render("Stored"))
	for _, setting := range s.settings {
		rows = append(rows, settingRow(setting.Key, formatSettingValue(setting.Key, setting.Value)))
	}

	rows = append(rows, "", mutedStyle.Render("Press enter to edit settings, t to toggle theme"))
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func settingRow(label, value string) string {
	l := lipgloss.NewStyle().Width(24).Render(label)
	return fmt.Sprintf("  %s %s", l, highlightStyle.Render(value))
}

func formatSettingValue(k, v string) string {
	switch k {
	case tracker.DarkModeKey:
		if dark, err := strconv.ParseBool(v); err == nil {
			return themeName(dark)
		}
	case history.HistoryKey:
		return fmt.Sprintf("%d bytes", len(v))
	}
	return v
}

func themeName(dark bool) string {
	if dark {
		return "dark"
	}
	return "light"
}
