// Package activator connects trigger sources and the event bus to the flow
// engine: it loads definitions, runs instances and persists the outcome.
package activator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pathwayhq/pathway/pkg/engine"
	"github.com/pathwayhq/pathway/pkg/eventbus"
	"github.com/pathwayhq/pathway/pkg/events"
	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/persistence"
	"github.com/pathwayhq/pathway/pkg/protocol"
)

// ErrInstanceTerminal is returned by CancelInstance when the instance has
// already reached a final status.
var ErrInstanceTerminal = errors.New("instance already in a terminal status")

type Activator struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
	bus         eventbus.EventBus

	triggerMutex    sync.Mutex
	runningTriggers map[string]protocol.TriggerSource
}

func NewActivator(logger *slog.Logger, p persistence.Persistence, eng *engine.Engine, bus eventbus.EventBus) *Activator {
	return &Activator{
		logger:          logger.With("module", "activator"),
		persistence:     p,
		engine:          eng,
		bus:             bus,
		runningTriggers: make(map[string]protocol.TriggerSource),
	}
}

// StartWorkflow loads the latest definition of the named flow, creates an
// instance and runs it to a terminal state. The instance is persisted before
// and after execution so its record survives a crash mid-run.
func (a *Activator) StartWorkflow(ctx context.Context, flowName string, variables map[string]any, actor string) (*engine.ExecutionResult, error) {
	logger := a.logger.With("flow_name", flowName, "actor", actor)

	flow, err := a.persistence.Definitions().Get(ctx, flowName, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load flow definition %q: %w", flowName, err)
	}

	instance, err := a.engine.CreateInstance(flow, variables, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance of flow %q: %w", flowName, err)
	}

	err = a.persistence.Instances().Save(ctx, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to save instance %s: %w", instance.ID, err)
	}

	logger = logger.With("instance_id", instance.ID)
	logger.InfoContext(ctx, "Starting flow execution")

	a.publish(ctx, flowName, events.ExecutionStarted{
		BaseEvent:  events.NewBaseEvent(events.ExecutionStartedEvent, flowName),
		InstanceID: instance.ID,
		Variables:  instance.Data,
		Initiator:  actor,
	})

	result := a.engine.Execute(ctx, flow, instance, nil)

	err = a.persistence.Instances().Save(ctx, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to save instance %s after execution: %w", instance.ID, err)
	}

	if result.Success {
		logger.InfoContext(ctx, "Flow execution completed",
			"nodes_visited", result.NodesVisited,
			"duration", result.Duration,
		)

		a.publish(ctx, flowName, events.ExecutionCompleted{
			BaseEvent:    events.NewBaseEvent(events.ExecutionCompletedEvent, flowName),
			InstanceID:   instance.ID,
			DurationMs:   result.Duration.Milliseconds(),
			NodesVisited: result.NodesVisited,
			Variables:    result.Variables,
		})
	} else {
		logger.WarnContext(ctx, "Flow execution failed",
			"error", result.Error,
			"nodes_visited", result.NodesVisited,
		)

		a.publish(ctx, flowName, events.ExecutionFailed{
			BaseEvent:    events.NewBaseEvent(events.ExecutionFailedEvent, flowName),
			InstanceID:   instance.ID,
			Error:        result.Error,
			DurationMs:   result.Duration.Milliseconds(),
			NodesVisited: result.NodesVisited,
			Variables:    result.Variables,
		})
	}

	return result, nil
}

// CancelInstance marks a non-terminal instance cancelled and publishes the
// cancellation. The engine itself has no cancellation token; this is the
// external path that retires an instance record.
func (a *Activator) CancelInstance(ctx context.Context, instanceID, reason, cancelledBy string) error {
	instance, err := a.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.Terminal() {
		return fmt.Errorf("instance %s is already %s: %w", instanceID, instance.Status, ErrInstanceTerminal)
	}

	status := models.InstanceStatusCancelled
	now := time.Now().UTC()

	err = a.persistence.Instances().Update(ctx, instanceID, persistence.InstanceUpdate{
		Status:      &status,
		CompletedAt: &now,
	})
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Instance cancelled",
		"instance_id", instanceID,
		"cancelled_by", cancelledBy,
	)

	a.publish(ctx, instance.WorkflowID, events.ExecutionCancelled{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, instance.WorkflowID),
		InstanceID:  instanceID,
		Reason:      reason,
		CancelledBy: cancelledBy,
	})

	return nil
}

// Callback adapts StartWorkflow to the trigger source contract.
func (a *Activator) Callback() protocol.TriggerCallback {
	return func(ctx context.Context, flowName string, variables map[string]any, actor string) error {
		_, err := a.StartWorkflow(ctx, flowName, variables, actor)

		return err
	}
}

// Subscribe registers the activator on the event bus: every FlowTriggered
// event starts one instance.
func (a *Activator) Subscribe(ctx context.Context) error {
	err := a.bus.Handle(events.FlowTriggeredEvent, func(ctx context.Context, event any) error {
		triggered, ok := event.(*events.FlowTriggered)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		_, err := a.StartWorkflow(ctx, triggered.FlowName, triggered.Variables, triggered.Actor)

		return err
	})
	if err != nil {
		return err
	}

	return a.bus.Subscribe(ctx)
}

// RegisterTrigger starts a trigger source and keeps it for shutdown.
func (a *Activator) RegisterTrigger(ctx context.Context, id string, source protocol.TriggerSource) error {
	err := source.Start(ctx, a.Callback())
	if err != nil {
		return fmt.Errorf("failed to start trigger %s: %w", id, err)
	}

	a.triggerMutex.Lock()
	a.runningTriggers[id] = source
	a.triggerMutex.Unlock()

	a.logger.InfoContext(ctx, "Started trigger", "trigger_id", id)

	return nil
}

// Stop shuts down all running trigger sources.
func (a *Activator) Stop(ctx context.Context) {
	a.triggerMutex.Lock()
	defer a.triggerMutex.Unlock()

	for id, source := range a.runningTriggers {
		a.logger.InfoContext(ctx, "Stopping trigger", "trigger_id", id)

		if err := source.Stop(ctx); err != nil {
			a.logger.ErrorContext(ctx, "Error stopping trigger", "trigger_id", id, "error", err)
		}
	}

	a.runningTriggers = make(map[string]protocol.TriggerSource)
}

func (a *Activator) publish(ctx context.Context, key string, event eventbus.Event) {
	if a.bus == nil {
		return
	}

	if err := a.bus.Publish(ctx, key, event); err != nil {
		a.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
