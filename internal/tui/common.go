package tui

import (
	"fmt"
	"time"

	"github.com/sadopc/sleeptrackr/internal/tracker"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTracker viewState = iota
	viewHistory
	viewSettings
)

var viewNames = []string{"Tracker", "History", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

// eventMsg carries one Repository event into the update loop.
type eventMsg struct {
	event tracker.Event
}

// eventsClosedMsg is sent once the Repository closes the subscription.
type eventsClosedMsg struct{}

type samplerDoneMsg struct {
	err error
}

type themeChangedMsg struct {
	dark bool
}

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatLevel renders a sensor value with one decimal.
func formatLevel(v float64, unit string) string {
	return fmt.Sprintf("%.1f %s", v, unit)
}

// sessionRange renders "Jan 02, 23:10 - Jan 03, 07:05".
func sessionRange(start, end time.Time) string {
	const layout = "Jan 02, 15:04"
	return start.Local().Format(layout) + " - " + end.Local().Format(layout)
}
