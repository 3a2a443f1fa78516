// Package eventbus is the Event Bus (C8): a many-producer,
// many-consumer fan-out of lifecycle events across the bus's three
// logical channels — queue, downloads, jobs (spec.md §4.8). Delivery
// is best-effort and non-blocking: a slow subscriber never stalls a
// producer, and events pending for a disconnected subscriber are
// dropped. Grounded on the teacher's channel-based
// Worker.processJobs semaphore idiom, generalized here from bounding
// concurrency to pub/sub fan-out.
package eventbus

import (
	"sync"
	"time"
)

// Channel names one of the bus's three logical streams.
type Channel string

const (
	ChannelQueue     Channel = "queue"
	ChannelDownloads Channel = "downloads"
	ChannelJobs      Channel = "jobs"
)

// Event is one lifecycle notification published on a Channel.
type Event struct {
	Channel   Channel   `json:"channel"`
	Kind      string    `json:"kind"`
	Payload   any       `json:"payload,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// subscriberBuffer is the depth of each subscriber's single buffer,
// shared by every channel it subscribes to; beyond this, new events
// for a slow subscriber are dropped rather than blocking the publisher.
const subscriberBuffer = 64

// Bus fans out Events to any number of subscribers without blocking
// producers (spec.md §4.8, §5 "the event bus is many-producer
// many-consumer").
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextID      int
	dropped     int64
}

type subscriber struct {
	ch     chan Event
	filter map[Channel]bool
}

func New() *Bus {
	return &Bus{subscribers: make(map[int]*subscriber)}
}

// Subscribe registers a new listener for the given channels (all
// channels when none are given) and returns its event stream plus an
// Unsubscribe func. The caller must drain ch or call Unsubscribe to
// avoid leaking the buffer.
func (b *Bus) Subscribe(channels ...Channel) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	filter := make(map[Channel]bool, len(channels))
	for _, c := range channels {
		filter[c] = true
	}

	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan Event, subscriberBuffer), filter: filter}
	b.subscribers[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing.ch)
		}
	}
	return sub.ch, unsubscribe
}

// Publish fans ev out to every matching subscriber, dropping it for
// any subscriber whose buffer is full instead of blocking (spec.md
// §4.8 "a slow subscriber must not stall producers").
func (b *Bus) Publish(ev Event) {
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		if len(sub.filter) > 0 && !sub.filter[ev.Channel] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped++
		}
	}
}

// Dropped returns the cumulative count of events dropped for a full
// subscriber buffer, useful for metrics/diagnostics.
func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// JobStarted/JobCompleted/JobFailed/JobCancelled/JobProgress are the
// convenience constructors for the fixed job lifecycle event kinds
// named in spec.md §4.6.
func JobStarted(name string) Event {
	return Event{Channel: ChannelJobs, Kind: "started", Payload: map[string]any{"name": name}}
}

func JobCompleted(name string, duration time.Duration) Event {
	return Event{Channel: ChannelJobs, Kind: "completed", Payload: map[string]any{"name": name, "duration_ms": duration.Milliseconds()}}
}

func JobFailed(name string, duration time.Duration, err error) Event {
	return Event{Channel: ChannelJobs, Kind: "failed", Payload: map[string]any{"name": name, "duration_ms": duration.Milliseconds(), "error": err.Error()}}
}

func JobCancelled(name string, duration time.Duration) Event {
	return Event{Channel: ChannelJobs, Kind: "cancelled", Payload: map[string]any{"name": name, "duration_ms": duration.Milliseconds()}}
}

func JobProgress(name string, current, total int) Event {
	return Event{Channel: ChannelJobs, Kind: "progress", Payload: map[string]any{"name": name, "current": current, "total": total}}
}
