// Package history persists completed sleep sessions as a single JSON blob in
// a key/value store and rebuilds them on load.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/sadopc/sleeptrackr/internal/sleep"
)

const (
	HistoryKey = "history_json"
	VersionKey = "history_version"

	// SchemaVersion is the version of the SavedSession layout written by Save.
	SchemaVersion = 1

	// LocalDateTime is ISO-8601 local date-time without a zone offset.
	LocalDateTime = "2006-01-02T15:04:05.999999999"
)

var (
	ErrCorruptHistory     = errors.New("corrupt session history")
	ErrUnsupportedVersion = errors.New("unsupported history schema version")
)

// KV is the durable key/value store the codec writes to.
type KV interface {
	GetString(key string) (string, bool, error)
	PutString(key, value string) error
	GetBool(key string, def bool) (bool, error)
	PutBool(key string, value bool) error
}

// SavedSession is the durable projection of a session. The suggestion is not
// stored; it is regenerated from the aggregates on load.
type SavedSession struct {
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	AvgLight  float64 `json:"avgLight"`
	AvgNoise  float64 `json:"avgNoise"`
	PeakNoise float64 `json:"peakNoise"`
}

// DecodeError reports a history blob that could not be turned back into
// sessions. Index is -1 when the blob itself is malformed.
type DecodeError struct {
	Key   string
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("decode %s entry %d: %v", e.Key, e.Index, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrCorruptHistory, e.Err}
}

func toSaved(s sleep.Session) SavedSession {
	return SavedSession{
		StartTime: FormatLocal(s.StartTime),
		EndTime:   FormatLocal(s.EndTime),
		AvgLight:  s.AverageLight,
		AvgNoise:  s.AverageNoise,
		PeakNoise: s.PeakNoise,
	}
}

func fromSaved(saved SavedSession) (sleep.Session, error) {
	start, err := ParseLocal(saved.StartTime)
	if err != nil {
		return sleep.Session{}, fmt.Errorf("startTime: %w", err)
	}
	end, err := ParseLocal(saved.EndTime)
	if err != nil {
		return sleep.Session{}, fmt.Errorf("endTime: %w", err)
	}
	stats := sleep.Stats{
		AverageLight: saved.AvgLight,
		AverageNoise: saved.AvgNoise,
		PeakNoise:    saved.PeakNoise,
	}
	report := sleep.GenerateReport(saved.AvgLight, saved.AvgNoise, saved.PeakNoise)
	return sleep.NewSession(start, end, stats, report), nil
}

// Encode maps sessions to the stored JSON array, keeping their order.
func Encode(sessions []sleep.Session) (string, error) {
	saved := make([]SavedSession, 0, len(sessions))
	for _, s := range sessions {
		saved = append(saved, toSaved(s))
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored JSON array back into sessions in stored order.
func Decode(blob string) ([]sleep.Session, error) {
	dec := json.NewDecoder(strings.NewReader(blob))
	dec.DisallowUnknownFields()

	var saved []SavedSession
	if err := dec.Decode(&saved); err != nil {
		return nil, &DecodeError{Key: HistoryKey, Index: -1, Err: err}
	}
	if dec.More() {
		return nil, &DecodeError{Key: HistoryKey, Index: -1, Err: errors.New("trailing data after history array")}
	}

	sessions := make([]sleep.Session, 0, len(saved))
	for i, s := range saved {
		session, err := fromSaved(s)
		if err != nil {
			return nil, &DecodeError{Key: HistoryKey, Index: i, Err: err}
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Save writes the full history under HistoryKey.
func Save(kv KV, sessions []sleep.Session) error {
	blob, err := Encode(sessions)
	if err != nil {
		return err
	}
	if err := kv.PutString(HistoryKey, blob); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := kv.PutString(VersionKey, strconv.Itoa(SchemaVersion)); err != nil {
		return fmt.Errorf("write history version: %w", err)
	}
	return nil
}

// Load reads the history. A missing key yields an empty history; a malformed
// blob yields a *DecodeError.
func Load(kv KV) ([]sleep.Session, error) {
	blob, ok, err := kv.GetString(HistoryKey)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if !ok {
		return nil, nil
	}

	version, ok, err := kv.GetString(VersionKey)
	if err != nil {
		return nil, fmt.Errorf("read history version: %w", err)
	}
	if ok && version != strconv.Itoa(SchemaVersion) {
		return nil, &DecodeError{Key: VersionKey, Index: -1, Err: fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)}
	}

	return Decode(blob)
}

// FormatLocal renders t as a local date-time without zone.
func FormatLocal(t time.Time) string {
	return t.Local().Format(LocalDateTime)
}

// ParseLocal parses an ISO-8601 date-time. Values without a zone are read as
// local wall-clock time.
func ParseLocal(s string) (time.Time, error) {
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, err
	}
	if hasZone(s) {
		return t.Local(), nil
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local), nil
}

func hasZone(s string) bool {
	i := strings.IndexAny(s, "Tt")
	if i < 0 {
		return false
	}
	return strings.ContainsAny(s[i:], "Zz+-")
}
