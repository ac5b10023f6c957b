package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_PublishReachesSubscribers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	var received []Event
	dispatcher.Subscribe(EventOrderCreated, func(_ context.Context, event Event) error {
		received = append(received, event)
		return nil
	})

	err := dispatcher.Publish(context.Background(), Event{Type: EventOrderCreated, OrderID: "o-1"})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "o-1", received[0].OrderID)

	// unrelated event types are not delivered
	err = dispatcher.Publish(context.Background(), Event{Type: EventOrderStateChanged, OrderID: "o-2"})
	require.NoError(t, err)
	assert.Len(t, received, 1)
}

func TestDispatcher_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()

	calls := 0
	dispatcher.Subscribe(EventOrderStateChanged, func(context.Context, Event) error {
		calls++
		return errors.New("boom")
	})
	dispatcher.Subscribe(EventOrderStateChanged, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := dispatcher.Publish(context.Background(), Event{Type: EventOrderStateChanged})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
