package tracker

import (
	"sync"
	"time"

	"github.com/sadopc/sleeptrackr/internal/sleep"
)

type EventKind int

const (
	EventTrackingStarted EventKind = iota + 1
	EventSnapshotRecorded
	EventTrackingStopped
	EventHistorySaved
	EventSaveFailed
)

var eventNames = map[EventKind]string{
	EventTrackingStarted:  "tracking_started",
	EventSnapshotRecorded: "snapshot_recorded",
	EventTrackingStopped:  "tracking_stopped",
	EventHistorySaved:     "history_saved",
	EventSaveFailed:       "save_failed",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a change notification from the Repository. Reading is set for
// snapshots, Session for stops, Err for failed saves.
type Event struct {
	Kind    EventKind
	At      time.Time
	Reading sleep.Reading
	Session sleep.Session
	Err     error
}

const subscriberBuffer = 64

// broker fans events out to subscribers. A subscriber whose buffer is full
// misses the event; publishers never block.
type broker struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Event
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
