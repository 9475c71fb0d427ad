package sensor

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sadopc/sleeptrackr/internal/tracker"
)

// SimulatedLight pushes a random walk of lux values, independent of the
// snapshot cadence.
type SimulatedLight struct {
	rng *rand.Rand

	Interval time.Duration
	Start    float64
	Step     float64
	Max      float64
}

func NewSimulatedLight(seed uint64) *SimulatedLight {
	return &SimulatedLight{
		rng:      rand.New(rand.NewPCG(seed, seed+1)),
		Interval: 2 * time.Second,
		Start:    3,
		Step:     1.5,
		Max:      60,
	}
}

// Run pushes a value immediately and then once per Interval until ctx ends.
// It always returns the context error.
func (l *SimulatedLight) Run(ctx context.Context, sink tracker.LightSink) error {
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	lux := clamp(l.Start, 0, l.Max)
	for {
		sink.UpdateLight(lux)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		lux = clamp(lux+(l.rng.Float64()*2-1)*l.Step, 0, l.Max)
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
