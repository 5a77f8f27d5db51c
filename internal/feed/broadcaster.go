package feed

import (
	"sync"
	"sync/atomic"

	"github.com/beaconops/emergency-dispatch/internal/dispatch"
)

// Report is one dispatch batch as pushed to feed subscribers.
type Report struct {
	IncidentID string            `json:"incident_id"`
	UserID     string            `json:"user_id"`
	Results    []dispatch.Result `json:"results"`
}

// Broadcaster fans dispatch reports out to live subscribers. Slow consumers
// are skipped rather than allowed to stall the dispatch path.
type Broadcaster struct {
	subscribers map[uint64]chan Report
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan Report),
	}
}

func (b *Broadcaster) Subscribe() (uint64, chan Report) {
	id := b.nextID.Add(1)
	ch := make(chan Report, 16)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(r Report) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- r:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing feed streams to exit
// gracefully.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
