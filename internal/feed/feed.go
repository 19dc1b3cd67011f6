// Package feed carries change notifications from the service to realtime
// subscribers. Events name what changed; receivers re-read current state.
package feed

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	KindPresenceChanged     Kind = "presence.changed"
	KindSpaceChanged        Kind = "space.changed"
	KindMembershipChanged   Kind = "membership.changed"
	KindMessageCreated      Kind = "message.created"
	KindMessageDeleted      Kind = "message.deleted"
	KindNotificationCreated Kind = "notification.created"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	SpaceID string    `json:"spaceId,omitempty"`
	UserID  string    `json:"userId,omitempty"`
	At      time.Time `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel of events and a cancel func that closes it.
	Subscribe(ctx context.Context) (<-chan Event, func(), error)
}

const subscriberBuffer = 64

// LocalBus fans events out to in-process subscribers. A subscriber whose
// buffer is full misses the event.
type LocalBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: map[int]chan Event{}}
}

func (b *LocalBus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

// Subscribers reports the number of live subscriptions.
func (b *LocalBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
