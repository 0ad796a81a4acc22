package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/otelhelper"
	"github.com/pathwayhq/pathway/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithLogger(logger)}, opts...)

	return New(registry.NewRegistry(logger), opts...)
}

func linearFlow() *models.Flow {
	return &models.Flow{
		Name:    "linear",
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeStart},
			{ID: "n2", Type: models.NodeTypeAssignment, Config: map[string]any{"status": "active"}},
			{ID: "n3", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n2", Target: "n3"},
		},
	}
}

func decisionFlow() *models.Flow {
	return &models.Flow{
		Name:    "decision",
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "branch", Type: models.NodeTypeDecision},
			{ID: "end_a", Type: models.NodeTypeEnd},
			{ID: "end_b", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "branch"},
			{ID: "e2", Source: "branch", Target: "end_a", Condition: "approved"},
			{ID: "e3", Source: "branch", Target: "end_b"},
		},
	}
}

func TestEngine_CreateInstance(t *testing.T) {
	eng := newTestEngine(t)
	initial := map[string]any{"seed": 1}

	instance, err := eng.CreateInstance(linearFlow(), initial, "tester")
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusPending, instance.Status)
	assert.Equal(t, "n1", instance.CurrentState)
	assert.Equal(t, "linear", instance.WorkflowID)
	assert.Equal(t, "tester", instance.StartedBy)
	assert.Empty(t, instance.History)
	assert.Nil(t, instance.StartedAt)

	// Copy-on-create: mutating the caller's map must not leak in.
	initial["seed"] = 99
	assert.Equal(t, 1, instance.Data["seed"])
}

func TestEngine_CreateInstance_NoStartNode(t *testing.T) {
	eng := newTestEngine(t)
	flow := linearFlow()
	flow.Nodes[0].Type = models.NodeTypeDecision

	_, err := eng.CreateInstance(flow, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no start node")
}

func TestEngine_CreateInstance_DanglingEdge(t *testing.T) {
	eng := newTestEngine(t)
	flow := linearFlow()
	flow.Edges[0].Target = "ghost"

	_, err := eng.CreateInstance(flow, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target node")
}

func TestEngine_CreateInstance_ConfigSchemaRejected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.NewRegistry(logger)
	reg.RegisterSchema(models.NodeTypeAssignment, map[string]any{
		"type":     "object",
		"required": []string{"status"},
	})

	eng := New(reg, WithLogger(logger))
	flow := linearFlow()
	flow.Nodes[1].Config = map[string]any{"other": true}

	_, err := eng.CreateInstance(flow, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestEngine_Execute_LinearCompletion(t *testing.T) {
	eng := newTestEngine(t)
	flow := linearFlow()

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	assert.True(t, result.Success)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Equal(t, "active", result.Variables["status"])
	assert.Equal(t, 3, result.NodesVisited)
	assert.Len(t, instance.History, 2)
	assert.NotNil(t, instance.StartedAt)
	assert.NotNil(t, instance.CompletedAt)
	assert.Positive(t, result.Duration)
}

func TestEngine_Execute_DecisionTruePath(t *testing.T) {
	eng := newTestEngine(t)
	flow := decisionFlow()

	instance, err := eng.CreateInstance(flow, map[string]any{"approved": true}, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	assert.True(t, result.Success)
	assert.Equal(t, "end_a", instance.CurrentState)
}

func TestEngine_Execute_DecisionFalsePath(t *testing.T) {
	for name, vars := range map[string]map[string]any{
		"approved false": {"approved": false},
		"key absent":     {},
	} {
		t.Run(name, func(t *testing.T) {
			eng := newTestEngine(t)
			flow := decisionFlow()

			instance, err := eng.CreateInstance(flow, vars, "")
			require.NoError(t, err)

			result := eng.Execute(context.Background(), flow, instance, nil)

			assert.True(t, result.Success)
			assert.Equal(t, "end_b", instance.CurrentState)
		})
	}
}

func TestEngine_Execute_FirstMatchingConditionWins(t *testing.T) {
	eng := newTestEngine(t)
	flow := decisionFlow()
	// Two simultaneously-true conditions resolve to the first declared edge.
	flow.Edges[2].Condition = "approved"
	flow.Edges = append(flow.Edges, &models.Edge{ID: "e4", Source: "branch", Target: "end_b"})

	instance, err := eng.CreateInstance(flow, map[string]any{"approved": true}, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	require.True(t, result.Success)
	assert.Equal(t, "end_a", instance.CurrentState)
	assert.Equal(t, "e2", instance.History[len(instance.History)-1].EdgeID)
}

func TestEngine_Execute_HistoryInvariant(t *testing.T) {
	eng := newTestEngine(t)
	flow := decisionFlow()

	instance, err := eng.CreateInstance(flow, map[string]any{"approved": true}, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	assert.Len(t, instance.History, result.NodesVisited-1)

	for i := 0; i < len(instance.History)-1; i++ {
		assert.Equal(t, instance.History[i].ToState, instance.History[i+1].FromState,
			"history must form a contiguous path")
	}
}

func TestEngine_Execute_CycleSafety(t *testing.T) {
	eng := newTestEngine(t, WithMaxNodes(5))
	flow := &models.Flow{
		Name:    "cyclic",
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeStart},
			{ID: "n2", Type: models.NodeTypeDecision},
			{ID: "n3", Type: models.NodeTypeDecision},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n2", Target: "n3"},
			{ID: "e3", Source: "n3", Target: "n2"},
		},
	}

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Max node limit")
	assert.Equal(t, models.InstanceStatusFailed, instance.Status)
	assert.Len(t, instance.History, result.NodesVisited-1)
}

func TestEngine_Execute_HandlerDirectedBranching(t *testing.T) {
	eng := newTestEngine(t)
	eng.RegisterHandler("router", func(context.Context, *models.Node, map[string]any) models.HandlerResult {
		return models.HandlerResult{Success: true, NextEdge: "path_b"}
	})

	flow := &models.Flow{
		Name:    "routed",
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "route", Type: "router"},
			{ID: "end_a", Type: models.NodeTypeEnd},
			{ID: "end_b", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "route"},
			// A true condition that the directed label must override.
			{ID: "e2", Source: "route", Target: "end_a", Condition: "true", Label: "path_a"},
			{ID: "e3", Source: "route", Target: "end_b", Label: "path_b"},
		},
	}

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	require.True(t, result.Success)
	assert.Equal(t, "end_b", instance.CurrentState)
}

func TestEngine_Execute_DirectedEdgeMissingIsDeadEnd(t *testing.T) {
	eng := newTestEngine(t)
	eng.RegisterHandler("router", func(context.Context, *models.Node, map[string]any) models.HandlerResult {
		return models.HandlerResult{Success: true, NextEdge: "nowhere"}
	})

	flow := &models.Flow{
		Name:    "misrouted",
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "route", Type: "router"},
			{ID: "done", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "route"},
			{ID: "e2", Source: "route", Target: "done", Label: "path_a"},
		},
	}

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no outgoing edge matched")
}

func TestEngine_Execute_HandlerFailureHaltsTraversal(t *testing.T) {
	eng := newTestEngine(t)
	eng.RegisterHandler("flaky", func(context.Context, *models.Node, map[string]any) models.HandlerResult {
		return models.Fail("upstream service unavailable")
	})

	flow := &models.Flow{
		Name:    "failing",
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeStart},
			{ID: "n2", Type: "flaky"},
			{ID: "n3", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n2", Target: "n3"},
		},
	}

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	assert.False(t, result.Success)
	assert.Equal(t, models.InstanceStatusFailed, instance.Status)
	assert.Equal(t, "upstream service unavailable", instance.Error)
	assert.Equal(t, "n2", instance.CurrentState, "current state must not advance past the failed node")
	assert.Equal(t, 2, result.NodesVisited)
	assert.Len(t, instance.History, 1)
}

func TestEngine_Execute_DeadEndFails(t *testing.T) {
	eng := newTestEngine(t)
	flow := &models.Flow{
		Name:    "deadend",
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeStart},
			{ID: "n2", Type: models.NodeTypeAssignment, Config: map[string]any{"x": 1}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "n1", Target: "n2"},
		},
	}

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no outgoing edge matched")
	assert.Equal(t, models.InstanceStatusFailed, instance.Status)
}

func TestEngine_Execute_EndNodeIgnoresOutgoingEdges(t *testing.T) {
	eng := newTestEngine(t)
	flow := linearFlow()
	flow.Edges = append(flow.Edges, &models.Edge{ID: "e3", Source: "n3", Target: "n1"})

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	assert.True(t, result.Success)
	assert.Equal(t, "n3", instance.CurrentState)
	assert.Equal(t, 3, result.NodesVisited)
}

func TestEngine_Execute_OutputMergeLastWriteWins(t *testing.T) {
	eng := newTestEngine(t)
	eng.RegisterHandler("emit", func(_ context.Context, node *models.Node, _ map[string]any) models.HandlerResult {
		return models.Succeed(node.Config)
	})

	flow := &models.Flow{
		Name:    "merging",
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeStart},
			{ID: "n2", Type: "emit", Config: map[string]any{"key": "first", "only_first": true}},
			{ID: "n3", Type: "emit", Config: map[string]any{"key": "second"}},
			{ID: "n4", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n2", Target: "n3"},
			{ID: "e3", Source: "n3", Target: "n4"},
		},
	}

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	require.True(t, result.Success)
	assert.Equal(t, "second", result.Variables["key"])
	assert.Equal(t, true, result.Variables["only_first"])
}

func TestEngine_Execute_HandlersSeeAppliedOutputsOnly(t *testing.T) {
	eng := newTestEngine(t)

	var observed map[string]any

	eng.RegisterHandler("mutator", func(_ context.Context, _ *models.Node, data map[string]any) models.HandlerResult {
		// Mutating the snapshot must not leak into the instance bag.
		data["leak"] = true

		return models.Succeed(map[string]any{"emitted": true})
	})
	eng.RegisterHandler("observer", func(_ context.Context, _ *models.Node, data map[string]any) models.HandlerResult {
		observed = data

		return models.Succeed(nil)
	})

	flow := &models.Flow{
		Name:    "isolation",
		Version: "1.0.0",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeStart},
			{ID: "n2", Type: "mutator"},
			{ID: "n3", Type: "observer"},
			{ID: "n4", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n2", Target: "n3"},
			{ID: "e3", Source: "n3", Target: "n4"},
		},
	}

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	require.True(t, result.Success)
	assert.Equal(t, true, observed["emitted"], "merged output must be visible downstream")
	assert.NotContains(t, result.Variables, "leak", "snapshot mutation must not reach the bag")
}

func TestEngine_Execute_Determinism(t *testing.T) {
	run := func() (*ExecutionResult, []models.HistoryEntry) {
		eng := newTestEngine(t)
		flow := decisionFlow()

		instance, err := eng.CreateInstance(flow, map[string]any{"approved": true}, "")
		require.NoError(t, err)

		result := eng.Execute(context.Background(), flow, instance, nil)

		return result, instance.History
	}

	first, firstHistory := run()
	second, secondHistory := run()

	assert.Equal(t, first.Variables, second.Variables)
	require.Len(t, secondHistory, len(firstHistory))

	for i := range firstHistory {
		assert.Equal(t, firstHistory[i].FromState, secondHistory[i].FromState)
		assert.Equal(t, firstHistory[i].ToState, secondHistory[i].ToState)
		assert.Equal(t, firstHistory[i].EdgeID, secondHistory[i].EdgeID)
	}
}

func TestEngine_Execute_MergesAdditionalVariables(t *testing.T) {
	eng := newTestEngine(t)
	flow := decisionFlow()

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, map[string]any{"approved": true})

	require.True(t, result.Success)
	assert.Equal(t, "end_a", instance.CurrentState)
}

func TestEngine_Execute_EmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	eng := newTestEngine(t, WithTracer(tp.Tracer("test")))
	flow := linearFlow()

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)
	require.True(t, result.Success)

	spans := exporter.GetSpans()

	var executeSpans, nodeSpans int

	for _, span := range spans {
		switch span.Name {
		case "workflow.execute":
			executeSpans++

			keys := make([]string, 0, len(span.Attributes))
			for _, attr := range span.Attributes {
				keys = append(keys, string(attr.Key))
			}

			assert.Contains(t, keys, otelhelper.FlowNameKey)
			assert.Contains(t, keys, otelhelper.InstanceIDKey)
		case "workflow.node":
			nodeSpans++
		}
	}

	assert.Equal(t, 1, executeSpans)
	assert.Equal(t, 3, nodeSpans)
}

func TestEngine_Execute_UnknownNodeTypePassesThrough(t *testing.T) {
	eng := newTestEngine(t)
	flow := linearFlow()
	flow.Nodes[1].Type = "not_yet_implemented"

	instance, err := eng.CreateInstance(flow, nil, "")
	require.NoError(t, err)

	result := eng.Execute(context.Background(), flow, instance, nil)

	assert.True(t, result.Success)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
}
