// Package events fans out match events to in-process subscribers. The
// coordinator publishes; the archive writer and CLI streams subscribe.
// Delivery is best effort: a slow subscriber drops events rather than
// stalling the coordinator.
package events

import (
	"context"
	"sync"
	"time"

	"tagarena"
)

const (
	subscriberBufferCap = 128
	replayBufferCap     = 256
)

// Kind labels an event variant.
type Kind string

const (
	KindPhase    Kind = "phase"
	KindHit      Kind = "hit"
	KindScore    Kind = "score"
	KindDisable  Kind = "disable"
	KindEnable   Kind = "enable"
	KindRegister Kind = "register"
	KindAward    Kind = "award"
)

// Event is one observable state change. Fields beyond Kind and At are
// populated per variant.
type Event struct {
	Kind  Kind
	At    time.Time
	Team  tagarena.TeamID
	Match string
	Phase tagarena.MatchPhase
	Hit   *tagarena.Hit
	Score *tagarena.Score
	Note  string
}

// Broker is a single-topic fan-out with a bounded replay buffer. A new
// subscriber first receives the replay tail, so it can catch up on a
// match already in progress.
type Broker struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
	replay []Event
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]chan Event)}
}

// Publish records the event in the replay buffer and offers it to every
// subscriber without blocking.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.replay) < replayBufferCap {
		b.replay = append(b.replay, ev)
	} else {
		copy(b.replay, b.replay[1:])
		b.replay[len(b.replay)-1] = ev
	}
	for _, sub := range b.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The channel first yields the
// replay tail, then live events, and is closed when ctx is cancelled.
func (b *Broker) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, subscriberBufferCap)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	for _, ev := range b.replay {
		select {
		case ch <- ev:
		default:
		}
	}
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()
	return ch
}

func (b *Broker) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}
