// Package sleep holds the sleep-environment data model and the pure
// functions that turn a night of readings into a report.
package sleep

import (
	"fmt"
	"math"
	"strings"
)

// Classification thresholds.
const (
	DarkLux = 5.0  // below: ideal darkness
	DimLux  = 20.0 // below: slightly dim
	PoorLux = 20.0 // above: poor night

	QuietDB = 40.0 // below: healthy noise
	PoorDB  = 50.0 // above: poor night
	SpikeDB = 70.0 // above: spike note
)

const noDataMessage = "No data collected yet."

// NoDataSuggestion is returned for a session without readings.
func NoDataSuggestion() Suggestion {
	return Suggestion{Message: noDataMessage, Severity: SeverityNoData}
}

// Summarize computes the mean light, mean noise and peak noise of readings.
// It reports false for an empty sequence.
func Summarize(readings []Reading) (Stats, bool) {
	if len(readings) == 0 {
		return Stats{}, false
	}

	var lightSum, noiseSum float64
	peak := 0.0
	for i, r := range readings {
		lightSum += r.LightLevel
		noiseSum += r.NoiseLevel
		if i == 0 || r.NoiseLevel > peak {
			peak = r.NoiseLevel
		}
	}

	n := float64(len(readings))
	return Stats{
		AverageLight: lightSum / n,
		AverageNoise: noiseSum / n,
		PeakNoise:    peak,
		Count:        len(readings),
	}, true
}

// AnalyzeSession reports on a live sequence of readings.
func AnalyzeSession(readings []Reading) Suggestion {
	stats, ok := Summarize(readings)
	if !ok {
		return NoDataSuggestion()
	}
	return GenerateReport(stats.AverageLight, stats.AverageNoise, stats.PeakNoise)
}

// GenerateReport builds the report from aggregates alone, so it serves both
// live sessions and sessions reloaded from storage.
func GenerateReport(avgLight, avgNoise, peakNoise float64) Suggestion {
	severity := SeverityHealthy
	if avgLight > PoorLux || avgNoise > PoorDB {
		severity = SeverityPoor
	}

	var b strings.Builder
	b.WriteString("Sleep Report:\n")
	fmt.Fprintf(&b, "• Average Light: %d lux\n", roundInt(avgLight))
	fmt.Fprintf(&b, "• Average Noise: %d dB\n\n", roundInt(avgNoise))
	b.WriteString(lightSummary(avgLight))
	b.WriteString("\n")
	b.WriteString(noiseSummary(avgNoise, peakNoise))

	return Suggestion{Message: b.String(), Severity: severity}
}

func lightSummary(avgLux float64) string {
	switch {
	case avgLux < DarkLux:
		return "Darkness was ideal for sleep."
	case avgLux < DimLux:
		return "Room was slightly dim. Blackout curtains would improve it."
	default:
		return fmt.Sprintf("Room was too bright (%.1f lux avg). This suppresses melatonin.", avgLux)
	}
}

func noiseSummary(avgDB, peakDB float64) string {
	msg := "Noise levels were healthy."
	if avgDB >= QuietDB {
		msg = fmt.Sprintf("Background noise was high (%.1f dB).", avgDB)
	}
	if peakDB > SpikeDB {
		msg += fmt.Sprintf(" (Spike detected at %d dB)", int(peakDB))
	}
	return msg
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
