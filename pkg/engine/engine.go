// Package engine orchestrates graph traversal: it creates workflow
// instances and executes them to completion or failure while recording a
// replayable history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/otelhelper"
	"github.com/pathwayhq/pathway/pkg/protocol"
	"github.com/pathwayhq/pathway/pkg/registry"
	"github.com/pathwayhq/pathway/pkg/template"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxNodes bounds total traversal steps per execution. The engine
// does no static cycle detection; the counter caps cyclic and long linear
// flows alike.
const DefaultMaxNodes = 100

// ErrMaxNodeLimit is the exact failure message reported when the node-visit
// counter exceeds the configured ceiling.
const ErrMaxNodeLimit = "Max node limit exceeded"

// Engine runs flow definitions. One engine may execute many instances
// concurrently; the only shared state is the handler registry and the
// read-only flow definitions.
type Engine struct {
	registry  *registry.Registry
	evaluator models.ConditionEvaluator
	maxNodes  int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxNodes overrides the node-visit ceiling.
func WithMaxNodes(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.maxNodes = limit
		}
	}
}

// WithEvaluator replaces the default template-backed condition evaluator.
func WithEvaluator(evaluator models.ConditionEvaluator) Option {
	return func(e *Engine) {
		e.evaluator = evaluator
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer enables tracing of executions and node visits.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// New creates an Engine backed by the given handler registry.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:  reg,
		evaluator: template.NewConditionEvaluator(),
		maxNodes:  DefaultMaxNodes,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegisterHandler binds a handler to a node type. Handlers are looked up
// fresh on each node visit, so registering between executions (or even
// mid-flight) takes effect immediately; callers should normally register
// everything during setup.
func (e *Engine) RegisterHandler(nodeType string, handler protocol.NodeHandler) {
	e.registry.Register(nodeType, handler)
}

// CreateInstance validates the definition, locates its start node and
// returns a pending instance positioned there. No node is executed. The
// initial variables are copied; the instance never aliases the caller's
// map.
func (e *Engine) CreateInstance(flow *models.Flow, variables map[string]any, startedBy string) (*models.Instance, error) {
	if err := flow.Validate(); err != nil {
		return nil, err
	}

	start, err := flow.StartNode()
	if err != nil {
		return nil, err
	}

	for _, node := range flow.Nodes {
		if err := e.registry.ValidateConfig(node.Type, node.Config); err != nil {
			return nil, err
		}
	}

	data := make(map[string]any, len(variables))
	maps.Copy(data, variables)

	return &models.Instance{
		ID:           "inst-" + uuid.New().String(),
		WorkflowID:   flow.Name,
		Version:      flow.Version,
		CurrentState: start.ID,
		Status:       models.InstanceStatusPending,
		Data:         data,
		History:      make([]models.HistoryEntry, 0),
		StartedBy:    startedBy,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Execute runs the instance until it reaches an end node, a handler
// reports failure, no edge is selectable, or the node-visit limit is
// exceeded. In-graph failures never surface as errors; they are reported
// inside the returned result so callers can inspect the instance history.
//
// Execution is strictly sequential: one active node at a time, each handler
// awaited before the next edge is selected. The loop has no built-in
// cancellation; wrap the call or make handlers context-aware if interruption
// is needed.
func (e *Engine) Execute(ctx context.Context, flow *models.Flow, instance *models.Instance, variables map[string]any) *ExecutionResult {
	startedAt := time.Now()

	logger := e.logger.With(
		"workflow", flow.Name,
		"instance_id", instance.ID,
	)
	logger.InfoContext(ctx, "Starting workflow execution")

	var span trace.Span
	if e.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
			attribute.String(otelhelper.FlowNameKey, flow.Name),
			attribute.String(otelhelper.InstanceIDKey, instance.ID),
		)
		defer span.End()
	}

	instance.Status = models.InstanceStatusRunning
	if instance.StartedAt == nil {
		now := time.Now().UTC()
		instance.StartedAt = &now
	}

	maps.Copy(instance.Data, variables)

	result := e.run(ctx, logger, flow, instance, startedAt)
	if !result.Success {
		otelhelper.SpanError(span, errors.New(result.Error))
	}

	return result
}

// run is the traversal loop proper; Execute wraps it with tracing and
// instance state setup.
func (e *Engine) run(ctx context.Context, logger *slog.Logger, flow *models.Flow, instance *models.Instance, startedAt time.Time) *ExecutionResult {
	visited := 0

	for {
		visited++
		if visited > e.maxNodes {
			logger.WarnContext(ctx, "Node visit limit exceeded", "max_nodes", e.maxNodes)

			return e.fail(instance, visited, startedAt, ErrMaxNodeLimit)
		}

		node := flow.NodeByID(instance.CurrentState)
		if node == nil {
			return e.fail(instance, visited, startedAt,
				fmt.Sprintf("current node %q not found in flow %q", instance.CurrentState, flow.Name))
		}

		logger.DebugContext(ctx, "Visiting node", "node_id", node.ID, "node_type", node.Type)

		result := e.invokeHandler(ctx, node, instance.Data)
		if !result.Success {
			logger.InfoContext(ctx, "Node handler reported failure", "node_id", node.ID, "error", result.Error)

			return e.fail(instance, visited, startedAt, result.Error)
		}

		// Shallow merge: output keys overwrite same-named variables.
		maps.Copy(instance.Data, result.Output)

		if node.Type == models.NodeTypeEnd {
			return e.complete(ctx, logger, instance, visited, startedAt)
		}

		edge, err := e.selectEdge(flow, node, result, instance.Data)
		if err != nil {
			return e.fail(instance, visited, startedAt, err.Error())
		}

		if edge == nil {
			return e.fail(instance, visited, startedAt,
				fmt.Sprintf("no outgoing edge matched from node %q", node.ID))
		}

		instance.AppendHistory(models.HistoryEntry{
			FromState: node.ID,
			ToState:   edge.Target,
			EdgeID:    edge.ID,
			Timestamp: time.Now().UTC(),
			Output:    result.Output,
		})
		instance.CurrentState = edge.Target
	}
}

// invokeHandler resolves and runs the handler for a node, passing a copy of
// the variable bag. Handlers never see another handler's yet-unapplied
// output; merging happens in the loop after return.
func (e *Engine) invokeHandler(ctx context.Context, node *models.Node, data map[string]any) models.HandlerResult {
	handler := e.registry.Resolve(node.Type)

	snapshot := make(map[string]any, len(data))
	maps.Copy(snapshot, data)

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.NodeTypeKey, node.Type),
		)
		defer span.End()
	}

	return handler(ctx, node, snapshot)
}

// selectEdge picks the next edge: a handler-directed label match first,
// then the first condition that evaluates true in declaration order, then
// the first unconditional edge. Returns nil when nothing matches.
func (e *Engine) selectEdge(flow *models.Flow, node *models.Node, result models.HandlerResult, data map[string]any) (*models.Edge, error) {
	outgoing := flow.OutgoingEdges(node.ID)

	if result.NextEdge != "" {
		for _, edge := range outgoing {
			if edge.Label == result.NextEdge {
				return edge, nil
			}
		}

		// A directed label that matches nothing is a dead end, not a
		// fallthrough to condition evaluation.
		return nil, nil
	}

	for _, edge := range outgoing {
		if edge.Condition == "" {
			continue
		}

		matched, err := e.evaluator.Evaluate(edge.Condition, data)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate condition on edge %q: %w", edge.ID, err)
		}

		if matched {
			return edge, nil
		}
	}

	for _, edge := range outgoing {
		if edge.Condition == "" {
			return edge, nil
		}
	}

	return nil, nil
}

func (e *Engine) complete(ctx context.Context, logger *slog.Logger, instance *models.Instance, visited int, startedAt time.Time) *ExecutionResult {
	now := time.Now().UTC()
	instance.Status = models.InstanceStatusCompleted
	instance.CompletedAt = &now

	logger.InfoContext(ctx, "Workflow execution completed", "nodes_visited", visited)

	return &ExecutionResult{
		Success:      true,
		Instance:     instance,
		Variables:    instance.Data,
		NodesVisited: visited,
		Duration:     time.Since(startedAt),
	}
}

func (e *Engine) fail(instance *models.Instance, visited int, startedAt time.Time, message string) *ExecutionResult {
	now := time.Now().UTC()
	instance.Status = models.InstanceStatusFailed
	instance.Error = message
	instance.CompletedAt = &now

	return &ExecutionResult{
		Success:      false,
		Instance:     instance,
		Variables:    instance.Data,
		NodesVisited: visited,
		Error:        message,
		Duration:     time.Since(startedAt),
	}
}
