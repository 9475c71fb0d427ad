package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/sleeptrackr/internal/history"
	"github.com/sadopc/sleeptrackr/internal/sleep"
	"github.com/sadopc/sleeptrackr/internal/store"
	"github.com/sadopc/sleeptrackr/internal/tracker"
)

type fixedNoise float64

func (n fixedNoise) Decibels() float64 { return float64(n) }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRepo(t *testing.T) (*tracker.Repository, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	repo, err := tracker.New(s)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, s
}

func newTestApp(t *testing.T) (App, *tracker.Repository) {
	t.Helper()
	repo, s := newTestRepo(t)
	app := NewApp(repo, Options{
		Noise:     fixedNoise(35),
		Settings:  s,
		Info:      [][2]string{{"db_path", ":memory:"}},
		ExportDir: t.TempDir(),
	})
	t.Cleanup(app.Close)
	return app, repo
}

func runeKey(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

// recordNight runs a short session with fixed levels through the repository.
func recordNight(t *testing.T, repo *tracker.Repository, light, noise float64) {
	t.Helper()
	if err := repo.StartTracking(); err != nil {
		t.Fatal(err)
	}
	repo.UpdateLight(light)
	repo.UpdateNoise(noise)
	repo.RecordSnapshot()
	repo.StopTracking()
}

// ============================================================
// Helpers
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{time.Second, "00:00:01"},
		{time.Minute, "00:01:00"},
		{time.Hour, "01:00:00"},
		{3661 * time.Second, "01:01:01"},
		{8*time.Hour + 30*time.Minute, "08:30:00"},
		{25*time.Hour + 61*time.Second, "25:01:01"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatLevel(t *testing.T) {
	if got := formatLevel(12.34, "lux"); got != "12.3 lux" {
		t.Fatalf("formatLevel = %q", got)
	}
	if got := formatLevel(0, "dB"); got != "0.0 dB" {
		t.Fatalf("formatLevel = %q", got)
	}
}

func TestSessionRange(t *testing.T) {
	start := time.Date(2026, 1, 5, 23, 10, 0, 0, time.Local)
	end := time.Date(2026, 1, 6, 7, 5, 0, 0, time.Local)
	if got := sessionRange(start, end); got != "Jan 05, 23:10 - Jan 06, 07:05" {
		t.Fatalf("sessionRange = %q", got)
	}
}

func TestFormatSettingValue(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{tracker.DarkModeKey, "true", "dark"},
		{tracker.DarkModeKey, "false", "light"},
		{tracker.DarkModeKey, "maybe", "maybe"},
		{history.HistoryKey, "[]", "2 bytes"},
		{history.VersionKey, "1", "1"},
	}
	for _, tt := range tests {
		if got := formatSettingValue(tt.key, tt.value); got != tt.want {
			t.Errorf("formatSettingValue(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestViewNames(t *testing.T) {
	if len(viewNames) != 3 {
		t.Fatalf("expected 3 views, got %d", len(viewNames))
	}
	if viewNames[viewTracker] != "Tracker" || viewNames[viewHistory] != "History" || viewNames[viewSettings] != "Settings" {
		t.Fatalf("unexpected view names: %v", viewNames)
	}
}

// ============================================================
// Tracker view
// ============================================================

func TestMonitorStartStop(t *testing.T) {
	repo, _ := newTestRepo(t)
	m := newMonitorModel(t.Context(), repo, fixedNoise(30), time.Hour)
	m.setSize(100, 30)

	m, cmd := m.update(runeKey("s"))
	if cmd == nil {
		t.Fatal("start should return commands")
	}
	if !repo.IsTracking() || !m.tracking {
		t.Fatal("should be tracking after s")
	}

	m, _ = m.update(runeKey("s"))
	if !repo.IsTracking() {
		t.Fatal("second start should leave the session running")
	}

	repo.UpdateLight(3)
	repo.RecordSnapshot()

	m, _ = m.update(runeKey("x"))
	if repo.IsTracking() || m.tracking {
		t.Fatal("should be idle after x")
	}
	if len(repo.History()) != 1 {
		t.Fatalf("expected 1 session, got %d", len(repo.History()))
	}
}

func TestMonitorStopWhenIdle(t *testing.T) {
	repo, _ := newTestRepo(t)
	m := newMonitorModel(t.Context(), repo, fixedNoise(30), time.Hour)

	_, cmd := m.update(runeKey("x"))
	msg := cmd()
	status, ok := msg.(statusMsg)
	if !ok || status.text != "Not tracking" {
		t.Fatalf("expected 'Not tracking' status, got %#v", msg)
	}
	if len(repo.History()) != 0 {
		t.Fatal("idle stop must not record a session")
	}
}

func TestMonitorLoadData(t *testing.T) {
	repo, _ := newTestRepo(t)
	m := newMonitorModel(t.Context(), repo, fixedNoise(30), time.Hour)
	m.setSize(100, 30)

	repo.StartTracking()
	repo.UpdateLight(4)
	repo.UpdateNoise(42)
	repo.RecordSnapshot()

	m, _ = m.update(m.loadData()())
	if !m.tracking {
		t.Fatal("loaded state should be tracking")
	}
	if len(m.readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(m.readings))
	}

	out := m.view()
	if !strings.Contains(out, "42.0 dB") || !strings.Contains(out, "Data points: 1") {
		t.Fatalf("view missing latest levels:\n%s", out)
	}
	if strings.Contains(out, "Morning Analysis") {
		t.Fatal("analysis must not show while tracking")
	}
}

func TestMonitorEmptyLevels(t *testing.T) {
	repo, _ := newTestRepo(t)
	m := newMonitorModel(t.Context(), repo, fixedNoise(30), time.Hour)
	m.setSize(100, 30)

	out := m.view()
	if !strings.Contains(out, "--") {
		t.Fatalf("empty view should show placeholders:\n%s", out)
	}
	if !strings.Contains(out, "Press s to start tracking") {
		t.Fatal("idle hint missing")
	}
}

func TestMonitorMorningAnalysis(t *testing.T) {
	repo, _ := newTestRepo(t)
	recordNight(t, repo, 30, 45)

	m := newMonitorModel(t.Context(), repo, fixedNoise(30), time.Hour)
	m.setSize(100, 30)
	m, _ = m.update(m.loadData()())

	out := m.view()
	if !strings.Contains(out, "Morning Analysis") {
		t.Fatalf("analysis panel missing:\n%s", out)
	}
	if !strings.Contains(out, "Sleep Report:") {
		t.Fatal("report text missing")
	}
}

func TestMonitorElapsed(t *testing.T) {
	repo, _ := newTestRepo(t)
	m := newMonitorModel(t.Context(), repo, fixedNoise(30), time.Hour)

	if m.elapsed() != 0 {
		t.Fatal("idle monitor should have 0 elapsed")
	}

	start := time.Now()
	m.tracking = true
	m.startedAt = start
	m, _ = m.update(tickMsg(start.Add(90 * time.Second)))
	if m.elapsed() != 90*time.Second {
		t.Fatalf("elapsed = %v, want 90s", m.elapsed())
	}
}

func TestMonitorChartCapacity(t *testing.T) {
	repo, _ := newTestRepo(t)
	m := newMonitorModel(t.Context(), repo, fixedNoise(30), time.Hour)
	m.setSize(10, 10)
	if m.chartCapacity() < 1 {
		t.Fatal("capacity must be at least 1")
	}

	for i := 0; i < 500; i++ {
		m.readings = append(m.readings, sleep.Reading{LightLevel: 1, NoiseLevel: float64(i % 80)})
	}
	m.setSize(120, 30)
	if m.noiseChart.View() == "" {
		t.Fatal("chart should render")
	}
}

// ============================================================
// History view
// ============================================================

func TestHistoryEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)
	h := newHistoryModel(repo)
	h.setSize(100, 30)

	h, _ = h.update(h.refresh()())
	if !strings.Contains(h.view(), "No sleep history yet") {
		t.Fatal("empty history message missing")
	}
}

func TestHistoryListAndCursor(t *testing.T) {
	repo, _ := newTestRepo(t)
	recordNight(t, repo, 1, 20)
	recordNight(t, repo, 30, 60)

	h := newHistoryModel(repo)
	h.setSize(120, 40)
	h, _ = h.update(h.refresh()())

	if len(h.sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(h.sessions))
	}
	out := h.view()
	if !strings.Contains(out, "poor") || !strings.Contains(out, "healthy") {
		t.Fatalf("severities missing:\n%s", out)
	}
	// most recent first: the poor night is selected
	if !strings.Contains(h.renderDetail(), "too bright") {
		t.Fatal("detail should show the most recent night")
	}

	h, _ = h.update(tea.KeyMsg{Type: tea.KeyDown})
	if h.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", h.cursor)
	}
	h, _ = h.update(tea.KeyMsg{Type: tea.KeyDown})
	if h.cursor != 1 {
		t.Fatal("cursor should stop at the last session")
	}
	if !strings.Contains(h.renderDetail(), "Darkness was ideal") {
		t.Fatal("detail should follow the cursor")
	}
	h, _ = h.update(tea.KeyMsg{Type: tea.KeyUp})
	if h.cursor != 0 {
		t.Fatalf("cursor = %d, want 0", h.cursor)
	}
}

func TestHistoryCursorClampedOnRefresh(t *testing.T) {
	repo, _ := newTestRepo(t)
	h := newHistoryModel(repo)
	h.cursor = 5
	h, _ = h.update(historyDataMsg{})
	if h.cursor != 0 {
		t.Fatalf("cursor = %d, want 0", h.cursor)
	}
}

// ============================================================
// Settings view
// ============================================================

func TestSettingsRefreshListsStoredKeys(t *testing.T) {
	repo, s := newTestRepo(t)
	repo.SaveThemePreference(true)

	m := newSettingsModel(repo, s, [][2]string{{"sample_interval", "PT1S"}})
	m.setSize(100, 30)
	m, _ = m.update(m.refresh()())

	out := m.view()
	if !strings.Contains(out, tracker.DarkModeKey) || !strings.Contains(out, "dark") {
		t.Fatalf("stored theme missing:\n%s", out)
	}
	if !strings.Contains(out, "PT1S") {
		t.Fatal("info rows missing")
	}
}

type brokenLister struct{}

func (brokenLister) GetAllSettings() ([]store.Setting, error) {
	return nil, errors.New("database is locked")
}

func TestSettingsRefreshReportsError(t *testing.T) {
	repo, _ := newTestRepo(t)
	m := newSettingsModel(repo, brokenLister{}, nil)

	msg, ok := m.refresh()().(statusMsg)
	if !ok {
		t.Fatal("expected a status message for a failed settings read")
	}
	if !msg.isError || !strings.Contains(msg.text, "database is locked") {
		t.Fatalf("unexpected status: %+v", msg)
	}
}

func TestSettingsFormOpensAndCancels(t *testing.T) {
	repo, s := newTestRepo(t)
	m := newSettingsModel(repo, s, nil)
	m.setSize(100, 30)

	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.formActive || m.form == nil {
		t.Fatal("enter should open the form")
	}
	if *m.theme != "light" {
		t.Fatalf("form should load current theme, got %q", *m.theme)
	}

	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.formActive {
		t.Fatal("esc should close the form")
	}
}

func TestSetThemePersists(t *testing.T) {
	repo, _ := newTestRepo(t)

	msg := setTheme(repo, true)()
	changed, ok := msg.(themeChangedMsg)
	if !ok || !changed.dark {
		t.Fatalf("expected themeChangedMsg{dark:true}, got %#v", msg)
	}
	if !repo.IsDarkMode() {
		t.Fatal("preference not saved")
	}
}

// ============================================================
// App model
// ============================================================

func TestNewApp(t *testing.T) {
	app, _ := newTestApp(t)

	if app.activeView != viewTracker {
		t.Fatal("default view should be tracker")
	}
	if app.showHelp {
		t.Fatal("help should be hidden by default")
	}
	if app.exportPicking {
		t.Fatal("export picker should be hidden by default")
	}
	if app.dark {
		t.Fatal("theme should default to light")
	}
	if app.isFormActive() {
		t.Fatal("no forms should be active initially")
	}
}

func TestAppViewStates(t *testing.T) {
	app, repo := newTestApp(t)
	recordNight(t, repo, 10, 45)
	app.width = 120
	app.height = 40

	for _, v := range []viewState{viewTracker, viewHistory, viewSettings} {
		app.activeView = v
		if app.View() == "" {
			t.Fatalf("view %d rendered empty", v)
		}
	}
}

func TestAppTabCycles(t *testing.T) {
	app, _ := newTestApp(t)

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app = model.(App)
	if app.activeView != viewHistory {
		t.Fatalf("tab should move to history, got %d", app.activeView)
	}
	model, _ = app.Update(runeKey("3"))
	app = model.(App)
	if app.activeView != viewSettings {
		t.Fatal("3 should select settings")
	}
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app = model.(App)
	if app.activeView != viewTracker {
		t.Fatal("tab should wrap to tracker")
	}
}

func TestAppStartFromAnyView(t *testing.T) {
	app, repo := newTestApp(t)
	app.activeView = viewHistory

	model, _ := app.Update(runeKey("s"))
	app = model.(App)
	if !repo.IsTracking() {
		t.Fatal("s should start tracking from the history view")
	}
	app.Update(runeKey("x"))
	if repo.IsTracking() {
		t.Fatal("x should stop tracking")
	}
}

func TestAppThemeChanged(t *testing.T) {
	app, _ := newTestApp(t)
	t.Cleanup(func() { applyTheme(true) })

	model, _ := app.Update(themeChangedMsg{dark: true})
	app = model.(App)
	if !app.dark {
		t.Fatal("app should be dark")
	}
	if colorPrimary != darkPalette.primary {
		t.Fatal("dark palette not applied")
	}

	model, _ = app.Update(themeChangedMsg{dark: false})
	app = model.(App)
	if colorPrimary != lightPalette.primary {
		t.Fatal("light palette not applied")
	}
	if app.status != "Theme: light" {
		t.Fatalf("status = %q", app.status)
	}
}

func TestAppReceivesEvents(t *testing.T) {
	app, repo := newTestApp(t)

	repo.StartTracking()
	msg := waitForEvent(app.events)()
	ev, ok := msg.(eventMsg)
	if !ok || ev.event.Kind != tracker.EventTrackingStarted {
		t.Fatalf("expected tracking started event, got %#v", msg)
	}

	_, cmd := app.Update(ev)
	if cmd == nil {
		t.Fatal("event should re-subscribe and refresh")
	}
}

func TestAppEventsClosed(t *testing.T) {
	repo, _ := newTestRepo(t)
	app := NewApp(repo, Options{Noise: fixedNoise(30)})
	app.Close()

	if _, ok := waitForEvent(app.events)().(eventsClosedMsg); !ok {
		t.Fatal("cancelled subscription should report closed")
	}
}

func TestAppSaveFailedStatus(t *testing.T) {
	app, _ := newTestApp(t)
	cmd := app.handleEvent(tracker.Event{Kind: tracker.EventSaveFailed, Err: os.ErrPermission})
	status, ok := cmd().(statusMsg)
	if !ok || !status.isError || !strings.Contains(status.text, "Save failed") {
		t.Fatalf("unexpected status: %#v", status)
	}
}

func TestAppExport(t *testing.T) {
	app, repo := newTestApp(t)
	recordNight(t, repo, 2, 30)

	for format, ext := range []string{".csv", ".json"} {
		msg := app.doExport(format)()
		done, ok := msg.(exportDoneMsg)
		if !ok {
			t.Fatalf("export failed: %#v", msg)
		}
		if filepath.Ext(done.path) != ext {
			t.Fatalf("path = %q, want %s", done.path, ext)
		}
		if _, err := os.Stat(done.path); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAppExportPicker(t *testing.T) {
	app, _ := newTestApp(t)

	model, _ := app.Update(runeKey("e"))
	app = model.(App)
	if !app.exportPicking {
		t.Fatal("e should open the export picker")
	}
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = model.(App)
	if app.exportCursor != 1 {
		t.Fatal("down should select JSON")
	}
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = model.(App)
	if app.exportPicking {
		t.Fatal("esc should close the picker")
	}
}

func TestAppRenderHeaderContainsAllTabs(t *testing.T) {
	app, _ := newTestApp(t)
	app.width = 120
	app.height = 40

	header := app.renderHeader()
	for _, name := range viewNames {
		if !strings.Contains(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}
}

func TestAppLoadingState(t *testing.T) {
	app, _ := newTestApp(t)
	if output := app.View(); output != "Loading..." {
		t.Fatalf("expected 'Loading...', got %q", output)
	}
}

func TestAppStatusMessage(t *testing.T) {
	app, _ := newTestApp(t)
	app.width = 120
	app.height = 40
	app.status = "test status"

	if !strings.Contains(app.renderFooter(), "test status") {
		t.Fatal("footer should contain status message")
	}
}

// ============================================================
// Key bindings
// ============================================================

func TestKeyMapShortHelp(t *testing.T) {
	if len(keys.ShortHelp()) == 0 {
		t.Fatal("short help should have bindings")
	}
}

func TestKeyMapFullHelp(t *testing.T) {
	groups := keys.FullHelp()
	if len(groups) == 0 {
		t.Fatal("full help should have groups")
	}
	for i, g := range groups {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}

// ============================================================
// Styles (smoke test, both themes)
// ============================================================

func TestStylesRender(t *testing.T) {
	t.Cleanup(func() { applyTheme(true) })

	for _, dark := range []bool{true, false} {
		applyTheme(dark)
		styles := map[string]func() string{
			"activeTab":    func() string { return activeTabStyle.Render("test") },
			"inactiveTab":  func() string { return inactiveTabStyle.Render("test") },
			"panel":        func() string { return panelStyle.Render("test") },
			"activePanel":  func() string { return activePanelStyle.Render("test") },
			"clock":        func() string { return clockStyle.Render("test") },
			"clockRunning": func() string { return clockRunningStyle.Render("test") },
			"title":        func() string { return titleStyle.Render("test") },
			"subtitle":     func() string { return subtitleStyle.Render("test") },
			"accent":       func() string { return accentStyle.Render("test") },
			"success":      func() string { return successStyle.Render("test") },
			"warning":      func() string { return warningStyle.Render("test") },
			"error":        func() string { return errorStyle.Render("test") },
			"muted":        func() string { return mutedStyle.Render("test") },
			"highlight":    func() string { return highlightStyle.Render("test") },
			"header":       func() string { return headerStyle.Render("test") },
			"footer":       func() string { return footerStyle.Render("test") },
			"selectedItem": func() string { return selectedItemStyle.Render("test") },
			"normalItem":   func() string { return normalItemStyle.Render("test") },
			"severity":     func() string { return severityStyle(sleep.ColorPoor).Render("test") },
		}
		for name, fn := range styles {
			if fn() == "" {
				t.Fatalf("style %q rendered empty (dark=%v)", name, dark)
			}
		}
	}
}
