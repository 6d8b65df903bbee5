package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestMemoryBrokerDeliversInOrderPerSession(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ch, cancel, err := b.Subscribe(context.Background(), "s1")
	require.NoError(t, err)
	defer cancel()

	other, cancelOther, err := b.Subscribe(context.Background(), "s2")
	require.NoError(t, err)
	defer cancelOther()

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, Event{Type: MessageCreated, SessionID: "s1", MessageID: "a"}))
	require.NoError(t, b.Publish(ctx, Event{Type: StatusChanged, SessionID: "s1", Status: "DONE"}))

	assert.Equal(t, "a", receive(t, ch).MessageID)
	assert.Equal(t, "DONE", receive(t, ch).Status)

	select {
	case ev := <-other:
		t.Fatalf("unexpected event for other session: %+v", ev)
	default:
	}
}

func TestMemoryBrokerCancelClosesChannel(t *testing.T) {
	b := NewMemoryBroker()
	ch, cancel, err := b.Subscribe(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("s1"))

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers("s1"))
	assert.NoError(t, b.Publish(context.Background(), Event{SessionID: "s1"}))
}

func TestMemoryBrokerContextEndsSubscription(t *testing.T) {
	b := NewMemoryBroker()
	ctx, cancelCtx := context.WithCancel(context.Background())

	ch, _, err := b.Subscribe(ctx, "s1")
	require.NoError(t, err)

	cancelCtx()
	assert.Eventually(t, func() bool { return b.Subscribers("s1") == 0 }, time.Second, time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestMemoryBrokerClose(t *testing.T) {
	b := NewMemoryBroker()
	ch, _, err := b.Subscribe(context.Background(), "s1")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	_, ok := <-ch
	assert.False(t, ok)

	assert.ErrorIs(t, b.Publish(context.Background(), Event{SessionID: "s1"}), ErrBrokerClosed)
	_, _, err = b.Subscribe(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrBrokerClosed)
}

func TestNewBrokerFallsBackToMemory(t *testing.T) {
	_, ok := NewBroker(nil).(*MemoryBroker)
	assert.True(t, ok)
}
