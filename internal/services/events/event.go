// Package events fans session events out to websocket subscribers.
package events

import (
	"context"
	"time"

	"github.com/caia/concierge/internal/services/reveal"
)

type Type string

const (
	MessageCreated   Type = "message.created"
	MessageRevealed  Type = "message.revealed"
	StatusChanged    Type = "status.changed"
	DispatchStarted  Type = "dispatch.started"
	DispatchFinished Type = "dispatch.finished"
	SessionReset     Type = "session.reset"
)

type Event struct {
	Type        Type                   `json:"type"`
	SessionID   string                 `json:"sessionId"`
	Message     *reveal.DisplayMessage `json:"message,omitempty"`
	MessageID   string                 `json:"messageId,omitempty"`
	Text        string                 `json:"text,omitempty"`
	Status      string                 `json:"status,omitempty"`
	ActiveAgent string                 `json:"activeAgent,omitempty"`
	Participant string                 `json:"participant,omitempty"`
	Hidden      bool                   `json:"hidden,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Broker delivers events published for a session to that session's
// subscribers, in publish order.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of events and a function that ends the
	// subscription and closes the channel.
	Subscribe(ctx context.Context, sessionID string) (<-chan Event, func(), error)
	Close() error
}
