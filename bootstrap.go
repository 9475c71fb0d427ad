package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sadopc/sleeptrackr/internal/config"
	"github.com/sadopc/sleeptrackr/internal/logging"
	"github.com/sadopc/sleeptrackr/internal/sensor"
	"github.com/sadopc/sleeptrackr/internal/store"
	"github.com/sadopc/sleeptrackr/internal/tracker"
)

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	dbPath     string
	envErr     error
}

// app holds the opened collaborators for one command run.
type app struct {
	cfg   *config.Config
	store *store.Store
	repo  *tracker.Repository
	log   *slog.Logger

	logFile io.Closer
}

func openApp(opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}

	logger, logFile, err := logging.Open(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	if opts.envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo, err := tracker.New(s, tracker.WithLogger(logger))
	if err != nil {
		s.Close()
		logFile.Close()
		return nil, err
	}

	logger.Info("Started", "db", cfg.DBPath, "sample_interval", cfg.SampleInterval.String())
	return &app{cfg: cfg, store: s, repo: repo, log: logger, logFile: logFile}, nil
}

// Close flushes pending history writes before closing the database.
func (a *app) Close() error {
	err := errors.Join(a.repo.Close(), a.store.Close())
	a.log.Info("Stopped")
	return errors.Join(err, a.logFile.Close())
}

// sources is the pair of sensor collaborators for a session.
type sources struct {
	noise tracker.NoiseSource
	// runLight pushes light values until ctx ends. Nil when the noise source
	// already pushes light.
	runLight func(ctx context.Context, sink tracker.LightSink) error
}

// newSources replays script when given, otherwise simulates both sensors.
func newSources(cfg *config.Config, script string, sink tracker.LightSink) (sources, error) {
	if script != "" {
		replay, err := sensor.OpenReplay(script)
		if err != nil {
			return sources{}, err
		}
		replay.Bind(sink)
		return sources{noise: replay}, nil
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	light := sensor.NewSimulatedLight(seed)
	light.Interval = time.Duration(cfg.LightInterval)
	return sources{
		noise:    sensor.NewSimulatedNoise(seed),
		runLight: light.Run,
	}, nil
}

// startLight runs the light collaborator in the background. The returned
// function stops it and waits for it to exit.
func (s sources) startLight(ctx context.Context, sink tracker.LightSink) func() {
	if s.runLight == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.runLight(ctx, sink)
	}()
	return func() {
		cancel()
		<-done
	}
}
