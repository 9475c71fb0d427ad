package sleep

import "time"

// Reading is one timestamped light/noise sample.
type Reading struct {
	Timestamp  time.Time
	LightLevel float64 // lux
	NoiseLevel float64 // dB
}

// Severity classifies a night. There are exactly three states.
type Severity int

const (
	SeverityNoData Severity = iota
	SeverityHealthy
	SeverityPoor
)

var severityNames = map[Severity]string{
	SeverityNoData:  "no-data",
	SeverityHealthy: "healthy",
	SeverityPoor:    "poor",
}

// Color tokens per severity.
const (
	ColorNoData  = "#9E9E9E"
	ColorHealthy = "#81C784"
	ColorPoor    = "#E57373"
)

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

// Color returns the display token for the severity.
func (s Severity) Color() string {
	switch s {
	case SeverityHealthy:
		return ColorHealthy
	case SeverityPoor:
		return ColorPoor
	default:
		return ColorNoData
	}
}

type Suggestion struct {
	Message  string
	Severity Severity
}

func (s Suggestion) Color() string {
	return s.Severity.Color()
}

// Stats holds the aggregates of a reading sequence.
type Stats struct {
	AverageLight float64
	AverageNoise float64
	PeakNoise    float64
	Count        int
}

type Session struct {
	StartTime    time.Time
	EndTime      time.Time
	AverageLight float64
	AverageNoise float64
	PeakNoise    float64
	Suggestion   Suggestion
}

// NewSession builds a session from its aggregates. EndTime is clamped so it
// never precedes StartTime.
func NewSession(start, end time.Time, stats Stats, suggestion Suggestion) Session {
	if end.Before(start) {
		end = start
	}
	return Session{
		StartTime:    start,
		EndTime:      end,
		AverageLight: stats.AverageLight,
		AverageNoise: stats.AverageNoise,
		PeakNoise:    stats.PeakNoise,
		Suggestion:   suggestion,
	}
}

func (s Session) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

func (s Session) Stats() Stats {
	return Stats{
		AverageLight: s.AverageLight,
		AverageNoise: s.AverageNoise,
		PeakNoise:    s.PeakNoise,
	}
}
