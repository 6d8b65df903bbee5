package events

import (
	"context"
	"errors"
	"sync"

	"github.com/caia/concierge/pkg/logger"
)

var ErrBrokerClosed = errors.New("broker closed")

const subscriberBuffer = 256

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func newSubscriber() *subscriber {
	return &subscriber{ch: make(chan Event, subscriberBuffer), done: make(chan struct{})}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}

// MemoryBroker is an in-process Broker. Slow subscribers lose events rather
// than block publishers.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*subscriber]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	for sub := range b.subs[ev.SessionID] {
		select {
		case sub.ch <- ev:
		default:
			logger.Warn(logger.EVENTS, "Dropping %s event for slow subscriber of session %s", ev.Type, ev.SessionID)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrBrokerClosed
	}

	sub := newSubscriber()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[*subscriber]struct{})
	}
	b.subs[sessionID][sub] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		delete(b.subs[sessionID], sub)
		if len(b.subs[sessionID]) == 0 {
			delete(b.subs, sessionID)
		}
		b.mu.Unlock()
		sub.close()
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub.ch, cancel, nil
}

// Subscribers returns the number of subscribers for a session.
func (b *MemoryBroker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, subs := range b.subs {
		for sub := range subs {
			sub.close()
		}
		delete(b.subs, id)
	}
	return nil
}
