package tracker

import (
	"slices"

	"github.com/sadopc/sleeptrackr/internal/sleep"
)

// ReadingStore is the ordered buffer of readings for the session in
// progress. It is not safe for concurrent use; Repository guards it.
type ReadingStore struct {
	readings []sleep.Reading
}

// Clear drops every reading. Called once per session start.
func (s *ReadingStore) Clear() {
	s.readings = nil
}

func (s *ReadingStore) Append(r sleep.Reading) {
	s.readings = append(s.readings, r)
}

// Snapshot returns a copy of the readings in insertion order.
func (s *ReadingStore) Snapshot() []sleep.Reading {
	return slices.Clone(s.readings)
}

func (s *ReadingStore) Len() int {
	return len(s.readings)
}

func (s *ReadingStore) Last() (sleep.Reading, bool) {
	if len(s.readings) == 0 {
		return sleep.Reading{}, false
	}
	return s.readings[len(s.readings)-1], true
}
