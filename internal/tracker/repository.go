// Package tracker runs sleep tracking sessions: it buffers sensor readings
// while a session is active, closes sessions into analyzed history, and
// persists that history.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sadopc/sleeptrackr/internal/clock"
	"github.com/sadopc/sleeptrackr/internal/history"
	"github.com/sadopc/sleeptrackr/internal/sleep"
)

// DarkModeKey stores the theme preference, independent of the history key.
const DarkModeKey = "dark_mode_pref"

var ErrAlreadyTracking = errors.New("tracking already in progress")

type options struct {
	clock  clock.Clock
	logger *slog.Logger
}

type Option func(*options)

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Repository owns the tracking state machine (idle -> tracking -> idle), the
// reading buffer and the session history. All methods are safe for
// concurrent use.
type Repository struct {
	mu    sync.Mutex
	kv    history.KV
	clock clock.Clock
	log   *slog.Logger

	readings  ReadingStore
	history   []sleep.Session
	tracking  bool
	startedAt time.Time
	runID     string
	light     float64
	noise     float64
	closed    bool

	events *broker
	writer *historyWriter
}

// New loads the stored history from kv. A corrupt history blob is returned
// as an error rather than discarded.
func New(kv history.KV, opts ...Option) (*Repository, error) {
	o := options{clock: clock.System{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	sessions, err := history.Load(kv)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	r := &Repository{
		kv:      kv,
		clock:   o.clock,
		log:     o.logger,
		history: sessions,
		events:  newBroker(),
	}
	r.writer = newHistoryWriter(kv, r.log, r.onSaved)
	r.log.Info("History loaded", "sessions", len(sessions))
	return r, nil
}

func (r *Repository) onSaved(_ int, err error) {
	e := Event{Kind: EventHistorySaved, At: r.clock.Now()}
	if err != nil {
		e.Kind = EventSaveFailed
		e.Err = err
	}
	r.events.publish(e)
}

// StartTracking clears the reading buffer and begins a session. It returns
// ErrAlreadyTracking, leaving the buffer untouched, if a session is active.
func (r *Repository) StartTracking() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tracking {
		r.log.Warn("Start ignored, already tracking", "run_id", r.runID, "readings", r.readings.Len())
		return ErrAlreadyTracking
	}

	r.readings.Clear()
	r.startedAt = r.clock.Now()
	r.runID = uuid.NewString()
	r.tracking = true

	r.log.Info("Tracking started", "run_id", r.runID)
	r.events.publish(Event{Kind: EventTrackingStarted, At: r.startedAt})
	return nil
}

// StopTracking closes the active session, prepends it to history and queues
// the history for saving. It reports false when no session was active.
func (r *Repository) StopTracking() (sleep.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.tracking {
		return sleep.Session{}, false
	}

	stats, ok := sleep.Summarize(r.readings.Snapshot())
	suggestion := sleep.NoDataSuggestion()
	if ok {
		suggestion = sleep.GenerateReport(stats.AverageLight, stats.AverageNoise, stats.PeakNoise)
	}
	session := sleep.NewSession(r.startedAt, r.clock.Now(), stats, suggestion)

	r.history = slices.Insert(r.history, 0, session)
	r.tracking = false

	r.log.Info("Tracking stopped",
		"run_id", r.runID,
		"readings", stats.Count,
		"avg_light", stats.AverageLight,
		"avg_noise", stats.AverageNoise,
		"peak_noise", stats.PeakNoise,
		"severity", suggestion.Severity.String(),
	)
	r.events.publish(Event{Kind: EventTrackingStopped, At: session.EndTime, Session: session})
	r.persistLocked()
	return session, true
}

func (r *Repository) persistLocked() {
	snapshot := slices.Clone(r.history)
	if r.closed {
		r.writer.write(snapshot)
		return
	}
	r.writer.enqueue(snapshot)
}

// UpdateLight stores the latest light level. Non-finite values are dropped
// and the previous level is kept.
func (r *Repository) UpdateLight(lux float64) {
	if !finite(lux) {
		r.log.Warn("Light update ignored", "value", lux)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.light = lux
}

// UpdateNoise stores the latest noise level. Non-finite values are dropped
// and the previous level is kept.
func (r *Repository) UpdateNoise(db float64) {
	if !finite(db) {
		r.log.Warn("Noise update ignored", "value", db)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noise = db
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RecordSnapshot appends a reading built from the latest light and noise
// values. It does nothing and reports false unless tracking.
func (r *Repository) RecordSnapshot() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordLocked()
}

// RunID identifies the active session. It is empty while idle.
func (r *Repository) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.tracking {
		return ""
	}
	return r.runID
}

// sample stores db and records a snapshot as one step, but only while runID
// is still the active session.
func (r *Repository) sample(runID string, db float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.tracking || r.runID != runID {
		return false
	}
	if finite(db) {
		r.noise = db
	} else {
		r.log.Warn("Noise update ignored", "value", db)
	}
	return r.recordLocked()
}

func (r *Repository) recordLocked() bool {
	if !r.tracking {
		return false
	}
	reading := sleep.Reading{
		Timestamp:  r.clock.Now(),
		LightLevel: r.light,
		NoiseLevel: r.noise,
	}
	r.readings.Append(reading)

	r.log.Debug("Snapshot recorded", "run_id", r.runID, "light", reading.LightLevel, "noise", reading.NoiseLevel)
	r.events.publish(Event{Kind: EventSnapshotRecorded, At: reading.Timestamp, Reading: reading})
	return true
}

func (r *Repository) IsTracking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracking
}

// StartedAt returns the start of the current or most recent session.
func (r *Repository) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// Readings returns the readings of the current or most recent session.
func (r *Repository) Readings() []sleep.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readings.Snapshot()
}

func (r *Repository) LatestReading() (sleep.Reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readings.Last()
}

// Levels returns the latest known light and noise values.
func (r *Repository) Levels() (light, noise float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.light, r.noise
}

// History returns completed sessions, most recent first.
func (r *Repository) History() []sleep.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.history)
}

func (r *Repository) SaveThemePreference(dark bool) error {
	if err := r.kv.PutBool(DarkModeKey, dark); err != nil {
		return fmt.Errorf("save theme preference: %w", err)
	}
	return nil
}

// IsDarkMode returns the stored theme preference, false if unset or
// unreadable.
func (r *Repository) IsDarkMode() bool {
	dark, err := r.kv.GetBool(DarkModeKey, false)
	if err != nil {
		r.log.Warn("Failed to read theme preference", "error", err)
		return false
	}
	return dark
}

// Subscribe returns a channel of change notifications and a function that
// cancels the subscription.
func (r *Repository) Subscribe() (<-chan Event, func()) {
	return r.events.subscribe()
}

// Close waits for pending history writes and closes subscriber channels.
// Sessions stopped after Close are saved synchronously.
func (r *Repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.writer.close()
	r.events.close()
	return nil
}
