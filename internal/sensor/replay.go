package sensor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sadopc/sleeptrackr/internal/tracker"
)

var ErrEmptyScript = errors.New("replay script has no rows")

// Sample is one scripted light/noise pair.
type Sample struct {
	Lux     float64
	Decibel float64
}

// Replay plays back a fixed list of samples. Each Decibels call advances one
// row, pushes that row's lux to the bound sink and returns its decibels.
// Playback wraps around at the end.
type Replay struct {
	mu      sync.Mutex
	samples []Sample
	pos     int
	sink    tracker.LightSink
}

// ParseReplay reads "lux,db" rows. A first row that does not parse as
// numbers is treated as a header; blank lines are skipped.
func ParseReplay(r io.Reader) (*Replay, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var samples []Sample
	for first := true; ; first = false {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read replay script: %w", err)
		}

		s, err := parseSample(rec)
		if err != nil {
			if first {
				continue
			}
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("parse replay line %d: %w", line, err)
		}
		samples = append(samples, s)
	}

	if len(samples) == 0 {
		return nil, ErrEmptyScript
	}
	return &Replay{samples: samples}, nil
}

func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay script: %w", err)
	}
	defer f.Close()
	return ParseReplay(f)
}

var errNotFinite = errors.New("value must be a finite number")

func parseSample(rec []string) (Sample, error) {
	lux, err := parseLevel(rec[0])
	if err != nil {
		return Sample{}, fmt.Errorf("lux: %w", err)
	}
	db, err := parseLevel(rec[1])
	if err != nil {
		return Sample{}, fmt.Errorf("decibels: %w", err)
	}
	return Sample{Lux: lux, Decibel: db}, nil
}

func parseLevel(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q: %w", field, errNotFinite)
	}
	return v, nil
}

// Bind sets the sink that receives each row's lux value.
func (p *Replay) Bind(sink tracker.LightSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

func (p *Replay) Len() int {
	return len(p.samples)
}

func (p *Replay) Decibels() float64 {
	p.mu.Lock()
	s := p.samples[p.pos]
	p.pos = (p.pos + 1) % len(p.samples)
	sink := p.sink
	p.mu.Unlock()

	if sink != nil {
		sink.UpdateLight(s.Lux)
	}
	return s.Decibel
}
