package sensor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lightRecorder struct {
	mu     sync.Mutex
	values []float64
}

func (r *lightRecorder) UpdateLight(lux float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, lux)
}

func (r *lightRecorder) snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.values...)
}

func TestAmplitudeToDecibels(t *testing.T) {
	assert.Equal(t, 0.0, AmplitudeToDecibels(0))
	assert.Equal(t, 0.0, AmplitudeToDecibels(-5))
	assert.Equal(t, 0.0, AmplitudeToDecibels(1))
	assert.InDelta(t, 20.0, AmplitudeToDecibels(10), 1e-9)
	assert.InDelta(t, 60.0, AmplitudeToDecibels(1000), 1e-9)
	assert.InDelta(t, 20*math.Log10(MaxAmplitude), AmplitudeToDecibels(MaxAmplitude), 1e-9)
}

func TestSimulatedNoiseRange(t *testing.T) {
	n := NewSimulatedNoise(42)
	hi := AmplitudeToDecibels(MaxAmplitude)
	for i := 0; i < 1000; i++ {
		a := n.Amplitude()
		require.GreaterOrEqual(t, a, n.MinAmplitude)
		require.LessOrEqual(t, a, MaxAmplitude)
	}
	for i := 0; i < 100; i++ {
		db := n.Decibels()
		require.GreaterOrEqual(t, db, AmplitudeToDecibels(n.MinAmplitude))
		require.LessOrEqual(t, db, hi)
	}
}

func TestSimulatedNoiseQuietWithoutSpikes(t *testing.T) {
	n := NewSimulatedNoise(7)
	n.SpikeChance = 0
	for i := 0; i < 500; i++ {
		require.LessOrEqual(t, n.Amplitude(), n.MaxAmplitude)
	}
}

func TestSimulatedNoiseDeterministic(t *testing.T) {
	a, b := NewSimulatedNoise(99), NewSimulatedNoise(99)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Decibels(), b.Decibels())
	}
}

func TestSimulatedLightRun(t *testing.T) {
	l := NewSimulatedLight(1)
	l.Interval = time.Millisecond
	rec := &lightRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, rec) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 10 }, 2*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	values := rec.snapshot()
	assert.Equal(t, l.Start, values[0])
	for i, v := range values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, l.Max)
		if i > 0 {
			assert.LessOrEqual(t, math.Abs(v-values[i-1]), l.Step+1e-9)
		}
	}
}

func TestParseReplay(t *testing.T) {
	script := "lux,db\n2, 30\n\n25,55.5\n"
	p, err := ParseReplay(strings.NewReader(script))
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())

	rec := &lightRecorder{}
	p.Bind(rec)

	assert.Equal(t, 30.0, p.Decibels())
	assert.Equal(t, 55.5, p.Decibels())
	// wraps around
	assert.Equal(t, 30.0, p.Decibels())
	assert.Equal(t, []float64{2, 25, 2}, rec.snapshot())
}

func TestParseReplayWithoutHeader(t *testing.T) {
	p, err := ParseReplay(strings.NewReader("1,2\n3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 2.0, p.Decibels())
}

func TestParseReplayUnbound(t *testing.T) {
	p, err := ParseReplay(strings.NewReader("1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.Decibels())
}

func TestParseReplayErrors(t *testing.T) {
	_, err := ParseReplay(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyScript)

	_, err = ParseReplay(strings.NewReader("lux,db\n"))
	assert.ErrorIs(t, err, ErrEmptyScript)

	_, err = ParseReplay(strings.NewReader("1,2\nbright,40\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseReplay(strings.NewReader("1,2,3\n"))
	assert.Error(t, err)
}

func TestParseReplayRejectsNonFinite(t *testing.T) {
	for _, script := range []string{
		"1,2\nNaN,40\n",
		"1,2\n3,Inf\n",
		"lux,db\n1,2\n-inf,30\n",
	} {
		_, err := ParseReplay(strings.NewReader(script))
		require.Error(t, err, script)
		assert.ErrorIs(t, err, errNotFinite, script)
	}

	// a non-finite first row reads as a header, leaving nothing to replay
	_, err := ParseReplay(strings.NewReader("NaN,40\n"))
	assert.ErrorIs(t, err, ErrEmptyScript)
}

func TestOpenReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "night.csv")
	require.NoError(t, os.WriteFile(path, []byte("lux,db\n4,35\n"), 0o644))

	p, err := OpenReplay(path)
	require.NoError(t, err)
	assert.Equal(t, 35.0, p.Decibels())

	_, err = OpenReplay(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
