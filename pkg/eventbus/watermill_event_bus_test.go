package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwayhq/pathway/pkg/channels/gochannel"
	"github.com/pathwayhq/pathway/pkg/eventbus"
	"github.com/pathwayhq/pathway/pkg/events"
)

func TestWatermillEventBus_PublishAndSubscribe(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.FlowTriggered, 1)

	err = bus.Handle(events.FlowTriggeredEvent, func(ctx context.Context, event any) error {
		triggered, ok := event.(*events.FlowTriggered)
		require.True(t, ok)

		received <- triggered

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	triggered := events.FlowTriggered{
		BaseEvent: events.NewBaseEvent(events.FlowTriggeredEvent, "orders"),
		TriggerID: "schedule-1",
		Variables: map[string]any{"priority": "high"},
		Actor:     "scheduler",
	}

	require.NoError(t, bus.Publish(ctx, "orders", triggered))

	select {
	case got := <-received:
		assert.Equal(t, "orders", got.FlowName)
		assert.Equal(t, "schedule-1", got.TriggerID)
		assert.Equal(t, "high", got.Variables["priority"])
		assert.Equal(t, events.FlowTriggeredEvent, got.GetType())
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	require.NoError(t, bus.Close())
}

func TestWatermillEventBus_UnhandledEventTypeIsAcked(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered; publish must not block or error.
	completed := events.ExecutionCompleted{
		BaseEvent:  events.NewBaseEvent(events.ExecutionCompletedEvent, "orders"),
		InstanceID: "inst-1",
	}

	assert.NoError(t, bus.Publish(ctx, "orders", completed))
	assert.NoError(t, bus.Close())
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
