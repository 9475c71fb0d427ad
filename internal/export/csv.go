package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sosodev/duration"

	"github.com/sadopc/sleeptrackr/internal/sleep"
)

var csvHeader = []string{
	"#", "Start", "End", "Duration (s)", "Duration", "ISO Duration",
	"Avg Light (lux)", "Avg Noise (dB)", "Peak Noise (dB)", "Severity", "Report",
}

// ToCSV writes one row per session in the given order (history order is
// most recent first).
func ToCSV(sessions []sleep.Session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for i, s := range sessions {
		d := s.Duration()
		row := []string{
			strconv.Itoa(i + 1),
			s.StartTime.Local().Format(time.RFC3339),
			s.EndTime.Local().Format(time.RFC3339),
			strconv.FormatInt(int64(d/time.Second), 10),
			formatDuration(int64(d / time.Second)),
			duration.Format(d),
			formatLevel(s.AverageLight),
			formatLevel(s.AverageNoise),
			formatLevel(s.PeakNoise),
			s.Suggestion.Severity.String(),
			s.Suggestion.Message,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}

func formatLevel(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
