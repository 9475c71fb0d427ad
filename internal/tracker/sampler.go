package tracker

import (
	"context"
	"time"
)

// DefaultInterval is the snapshot cadence.
const DefaultInterval = time.Second

// NoiseSource returns the latest noise level in decibels. It is polled once
// per snapshot tick.
type NoiseSource interface {
	Decibels() float64
}

// LightSink receives light levels pushed by a light sensor.
type LightSink interface {
	UpdateLight(lux float64)
}

// Sampler drives snapshot ticks for one session: the session active when the
// sampler is created.
type Sampler struct {
	repo     *Repository
	noise    NoiseSource
	interval time.Duration
	runID    string
}

func NewSampler(repo *Repository, noise NoiseSource, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{repo: repo, noise: noise, interval: interval, runID: repo.RunID()}
}

// Run samples noise and records a snapshot every interval while its session
// is active. It returns nil once that session stops, even if another one has
// started since, or the context error if ctx ends first. Stop is observed
// between ticks, never mid-tick.
func (s *Sampler) Run(ctx context.Context) error {
	if s.runID == "" {
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for s.repo.RunID() == s.runID {
		if !s.repo.sample(s.runID, s.noise.Decibels()) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
