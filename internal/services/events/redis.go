package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/caia/concierge/internal/infrastructure/redis"
	"github.com/caia/concierge/pkg/logger"
)

const channelPrefix = "concierge:events:"

func channelFor(sessionID string) string {
	return channelPrefix + sessionID
}

// RedisBroker relays events through Redis pub/sub so that a websocket served
// by any replica sees events of sessions owned by another.
type RedisBroker struct {
	redis *redis.Service

	mu      sync.Mutex
	cancels map[*func()]struct{}
}

func NewRedisBroker(svc *redis.Service) *RedisBroker {
	return &RedisBroker{redis: svc, cancels: make(map[*func()]struct{})}
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return b.redis.Publish(ctx, channelFor(ev.SessionID), payload)
}

func (b *RedisBroker) Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error) {
	ps, err := b.redis.Subscribe(ctx, channelFor(sessionID))
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe to session %s: %w", sessionID, err)
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	b.mu.Lock()
	b.cancels[&cancel] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			b.mu.Lock()
			delete(b.cancels, &cancel)
			b.mu.Unlock()
		}()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Warn(logger.EVENTS, "Discarding malformed event on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- ev:
				default:
					logger.Warn(logger.EVENTS, "Dropping %s event for slow subscriber of session %s", ev.Type, sessionID)
				}
			}
		}
	}()

	return out, cancel, nil
}

// Close ends all open subscriptions. The Redis connection itself is owned by
// the caller.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	cancels := make([]func(), 0, len(b.cancels))
	for c := range b.cancels {
		cancels = append(cancels, *c)
	}
	b.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	return nil
}

// NewBroker picks Redis when a connection is available and memory otherwise.
func NewBroker(svc *redis.Service) Broker {
	if svc == nil {
		logger.Info(logger.EVENTS, "Using in-memory event broker")
		return NewMemoryBroker()
	}
	logger.Info(logger.EVENTS, "Using Redis event broker")
	return NewRedisBroker(svc)
}
