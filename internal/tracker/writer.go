package tracker

import (
	"log/slog"
	"sync"

	"github.com/sadopc/sleeptrackr/internal/history"
	"github.com/sadopc/sleeptrackr/internal/sleep"
)

const writeQueueSize = 16

// historyWriter persists history snapshots on its own goroutine, in the
// order they were queued. A failed save leaves the previous blob in place.
type historyWriter struct {
	kv       history.KV
	log      *slog.Logger
	jobs     chan []sleep.Session
	done     chan struct{}
	onResult func(sessions int, err error)
	once     sync.Once
}

func newHistoryWriter(kv history.KV, log *slog.Logger, onResult func(int, error)) *historyWriter {
	w := &historyWriter{
		kv:       kv,
		log:      log,
		jobs:     make(chan []sleep.Session, writeQueueSize),
		done:     make(chan struct{}),
		onResult: onResult,
	}
	go w.run()
	return w
}

func (w *historyWriter) run() {
	defer close(w.done)
	for sessions := range w.jobs {
		w.write(sessions)
	}
}

func (w *historyWriter) write(sessions []sleep.Session) {
	err := history.Save(w.kv, sessions)
	if err != nil {
		w.log.Error("Failed to save history", "error", err, "sessions", len(sessions))
	} else {
		w.log.Debug("History saved", "sessions", len(sessions))
	}
	if w.onResult != nil {
		w.onResult(len(sessions), err)
	}
}

func (w *historyWriter) enqueue(sessions []sleep.Session) {
	w.jobs <- sessions
}

// close waits for queued writes to finish.
func (w *historyWriter) close() {
	w.once.Do(func() { close(w.jobs) })
	<-w.done
}
