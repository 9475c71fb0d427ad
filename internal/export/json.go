package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sosodev/duration"

	"github.com/sadopc/sleeptrackr/internal/sleep"
)

type jsonExport struct {
	ExportedAt string        `json:"exported_at"`
	Count      int           `json:"count"`
	Sessions   []jsonSession `json:"sessions"`
}

type jsonSession struct {
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	DurationSec  int64   `json:"duration_seconds"`
	Duration     string  `json:"duration"`
	AverageLight float64 `json:"avg_light"`
	AverageNoise float64 `json:"avg_noise"`
	PeakNoise    float64 `json:"peak_noise"`
	Severity     string  `json:"severity"`
	Color        string  `json:"color"`
	Report       string  `json:"report"`
}

func ToJSON(sessions []sleep.Session, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(sessions),
	}

	for _, s := range sessions {
		d := s.Duration()
		export.Sessions = append(export.Sessions, jsonSession{
			StartTime:    s.StartTime.Local().Format(time.RFC3339),
			EndTime:      s.EndTime.Local().Format(time.RFC3339),
			DurationSec:  int64(d / time.Second),
			Duration:     duration.Format(d),
			AverageLight: s.AverageLight,
			AverageNoise: s.AverageNoise,
			PeakNoise:    s.PeakNoise,
			Severity:     s.Suggestion.Severity.String(),
			Color:        s.Suggestion.Color(),
			Report:       s.Suggestion.Message,
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
