package activator_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwayhq/pathway/pkg/activator"
	"github.com/pathwayhq/pathway/pkg/channels/gochannel"
	"github.com/pathwayhq/pathway/pkg/engine"
	"github.com/pathwayhq/pathway/pkg/eventbus"
	"github.com/pathwayhq/pathway/pkg/events"
	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/persistence/file"
	"github.com/pathwayhq/pathway/pkg/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func linearFlow(name string) *models.Flow {
	return &models.Flow{
		Name:    name,
		Type:    models.FlowTypeManual,
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeStart},
			{ID: "n2", Type: models.NodeTypeAssignment, Config: map[string]any{"approved": true}},
			{ID: "n3", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n2", Target: "n3"},
		},
	}
}

func deadEndFlow(name string) *models.Flow {
	return &models.Flow{
		Name:    name,
		Type:    models.FlowTypeManual,
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeStart},
			{ID: "n2", Type: models.NodeTypeAssignment},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "n1", Target: "n2"},
		},
	}
}

func setup(t *testing.T) (*activator.Activator, *file.Persistence, eventbus.EventBus) {
	t.Helper()

	logger := testLogger()
	p := file.NewPersistence(t.TempDir())
	eng := engine.New(registry.NewRegistry(logger), engine.WithLogger(logger))

	// The non-blocking channel avoids deadlock when a handler publishes
	// follow-up events on the same bus.
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	return activator.NewActivator(logger, p, eng, bus), p, bus
}

func TestStartWorkflow_CompletesAndPersists(t *testing.T) {
	act, p, bus := setup(t)
	ctx := context.Background()

	require.NoError(t, p.Definitions().Save(ctx, linearFlow("orders")))

	completed := make(chan *events.ExecutionCompleted, 1)
	require.NoError(t, bus.Handle(events.ExecutionCompletedEvent, func(ctx context.Context, event any) error {
		completed <- event.(*events.ExecutionCompleted)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	result, err := act.StartWorkflow(ctx, "orders", map[string]any{"amount": 10.0}, "alice")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 3, result.NodesVisited)
	assert.Equal(t, true, result.Variables["approved"])

	stored, err := p.Instances().GetByID(ctx, result.Instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, stored.Status)
	assert.Equal(t, "alice", stored.StartedBy)
	assert.Len(t, stored.History, 2)

	select {
	case event := <-completed:
		assert.Equal(t, result.Instance.ID, event.InstanceID)
		assert.Equal(t, "orders", event.FlowName)
		assert.Equal(t, 3, event.NodesVisited)
	case <-time.After(2 * time.Second):
		t.Fatal("execution.completed event was not published")
	}
}

func TestCancelInstance(t *testing.T) {
	act, p, bus := setup(t)
	ctx := context.Background()

	cancelled := make(chan *events.ExecutionCancelled, 1)
	require.NoError(t, bus.Handle(events.ExecutionCancelledEvent, func(ctx context.Context, event any) error {
		cancelled <- event.(*events.ExecutionCancelled)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	pending := &models.Instance{
		ID:           "inst-pending",
		WorkflowID:   "orders",
		Version:      "1.0.0",
		CurrentState: "n1",
		Status:       models.InstanceStatusPending,
		Data:         map[string]any{},
		StartedBy:    "alice",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, p.Instances().Save(ctx, pending))

	require.NoError(t, act.CancelInstance(ctx, "inst-pending", "superseded", "bob"))

	stored, err := p.Instances().GetByID(ctx, "inst-pending")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCancelled, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	select {
	case event := <-cancelled:
		assert.Equal(t, "inst-pending", event.InstanceID)
		assert.Equal(t, "superseded", event.Reason)
		assert.Equal(t, "bob", event.CancelledBy)
	case <-time.After(2 * time.Second):
		t.Fatal("execution.cancelled event was not published")
	}

	err = act.CancelInstance(ctx, "inst-pending", "", "bob")
	require.ErrorIs(t, err, activator.ErrInstanceTerminal)
}

func TestStartWorkflow_UnknownFlow(t *testing.T) {
	act, _, _ := setup(t)

	_, err := act.StartWorkflow(context.Background(), "ghost", nil, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestStartWorkflow_FailurePersistedAndPublished(t *testing.T) {
	act, p, bus := setup(t)
	ctx := context.Background()

	require.NoError(t, p.Definitions().Save(ctx, deadEndFlow("broken")))

	failed := make(chan *events.ExecutionFailed, 1)
	require.NoError(t, bus.Handle(events.ExecutionFailedEvent, func(ctx context.Context, event any) error {
		failed <- event.(*events.ExecutionFailed)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	result, err := act.StartWorkflow(ctx, "broken", nil, "alice")
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "no outgoing edge matched")

	stored, err := p.Instances().GetByID(ctx, result.Instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusFailed, stored.Status)

	select {
	case event := <-failed:
		assert.Equal(t, result.Instance.ID, event.InstanceID)
		assert.Contains(t, event.Error, "no outgoing edge matched")
	case <-time.After(2 * time.Second):
		t.Fatal("execution.failed event was not published")
	}
}

func TestSubscribe_FlowTriggeredStartsInstance(t *testing.T) {
	act, p, bus := setup(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, p.Definitions().Save(ctx, linearFlow("orders")))

	completed := make(chan *events.ExecutionCompleted, 1)
	require.NoError(t, bus.Handle(events.ExecutionCompletedEvent, func(ctx context.Context, event any) error {
		completed <- event.(*events.ExecutionCompleted)

		return nil
	}))

	require.NoError(t, act.Subscribe(ctx))

	triggered := events.FlowTriggered{
		BaseEvent: events.NewBaseEvent(events.FlowTriggeredEvent, "orders"),
		TriggerID: "schedule-1",
		Variables: map[string]any{"priority": "high"},
		Actor:     "scheduler",
	}
	require.NoError(t, bus.Publish(ctx, "orders", triggered))

	select {
	case event := <-completed:
		stored, err := p.Instances().GetByID(ctx, event.InstanceID)
		require.NoError(t, err)
		assert.Equal(t, models.InstanceStatusCompleted, stored.Status)
		assert.Equal(t, "scheduler", stored.StartedBy)
		assert.Equal(t, "high", stored.Data["priority"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for triggered execution")
	}
}

func TestCallback_AdaptsStartWorkflow(t *testing.T) {
	act, p, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, p.Definitions().Save(ctx, linearFlow("orders")))

	callback := act.Callback()
	require.NoError(t, callback(ctx, "orders", nil, "queue"))

	assert.Error(t, callback(ctx, "ghost", nil, "queue"))
}
