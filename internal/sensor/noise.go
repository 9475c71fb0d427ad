// Package sensor provides light and noise sources for the tracker: random
// simulations for demos and CSV replay for scripted runs.
package sensor

import (
	"math"
	"math/rand/v2"
	"sync"
)

// MaxAmplitude is the largest value a 16-bit microphone meter reports.
const MaxAmplitude = 32767

// AmplitudeToDecibels converts a raw meter amplitude to decibels relative to
// an amplitude of 1. Non-positive amplitudes read as silence (0 dB).
func AmplitudeToDecibels(amplitude int) float64 {
	if amplitude <= 0 {
		return 0
	}
	return 20 * math.Log10(float64(amplitude))
}

// SimulatedNoise is a fake microphone. Most samples fall in a quiet bedroom
// range; a small fraction are loud spikes.
type SimulatedNoise struct {
	mu  sync.Mutex
	rng *rand.Rand

	MinAmplitude int
	MaxAmplitude int
	SpikeChance  float64
}

func NewSimulatedNoise(seed uint64) *SimulatedNoise {
	return &SimulatedNoise{
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		MinAmplitude: 10,
		MaxAmplitude: 400,
		SpikeChance:  0.02,
	}
}

// Amplitude returns the next raw meter reading.
func (n *SimulatedNoise) Amplitude() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.rng.Float64() < n.SpikeChance {
		return n.MaxAmplitude + n.rng.IntN(MaxAmplitude-n.MaxAmplitude+1)
	}
	return n.MinAmplitude + n.rng.IntN(n.MaxAmplitude-n.MinAmplitude+1)
}

func (n *SimulatedNoise) Decibels() float64 {
	return AmplitudeToDecibels(n.Amplitude())
}
