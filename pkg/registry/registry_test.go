package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestRegistry_ResolveBuiltins(t *testing.T) {
	reg := NewRegistry(testLogger())
	ctx := context.Background()

	for _, nodeType := range []string{
		models.NodeTypeStart,
		models.NodeTypeEnd,
		models.NodeTypeAssignment,
		models.NodeTypeDecision,
	} {
		handler := reg.Resolve(nodeType)
		require.NotNil(t, handler, nodeType)

		result := handler(ctx, &models.Node{ID: "n", Type: nodeType}, nil)
		assert.True(t, result.Success, nodeType)
	}
}

func TestRegistry_UnknownTypePassesThrough(t *testing.T) {
	reg := NewRegistry(testLogger())

	handler := reg.Resolve("quantum_teleport")
	require.NotNil(t, handler)

	result := handler(context.Background(), &models.Node{ID: "n", Type: "quantum_teleport"}, nil)
	assert.True(t, result.Success)
	assert.Empty(t, result.Output)
	assert.False(t, reg.Registered("quantum_teleport"))
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	reg := NewRegistry(testLogger())
	ctx := context.Background()

	reg.Register("custom", func(context.Context, *models.Node, map[string]any) models.HandlerResult {
		return models.Succeed(map[string]any{"version": 1})
	})
	reg.Register("custom", func(context.Context, *models.Node, map[string]any) models.HandlerResult {
		return models.Succeed(map[string]any{"version": 2})
	})

	result := reg.Resolve("custom")(ctx, &models.Node{ID: "n", Type: "custom"}, nil)
	assert.Equal(t, 2, result.Output["version"])
}

func TestRegistry_OverrideBuiltin(t *testing.T) {
	reg := NewRegistry(testLogger())

	reg.Register(models.NodeTypeDecision, func(context.Context, *models.Node, map[string]any) models.HandlerResult {
		return models.Fail("decisions are hard")
	})

	result := reg.Resolve(models.NodeTypeDecision)(context.Background(), &models.Node{}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "decisions are hard", result.Error)
}

func TestAssignment_MergesConfigVerbatim(t *testing.T) {
	node := &models.Node{
		ID:     "assign",
		Type:   models.NodeTypeAssignment,
		Config: map[string]any{"status": "active", "count": 3},
	}

	result := Assignment(context.Background(), node, map[string]any{})
	require.True(t, result.Success)
	assert.Equal(t, node.Config, result.Output)
}

func TestRegistry_ValidateConfig(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.RegisterSchema("notify", map[string]any{
		"type":     "object",
		"required": []string{"channel"},
		"properties": map[string]any{
			"channel": map[string]any{"type": "string"},
		},
	})

	err := reg.ValidateConfig("notify", map[string]any{"channel": "ops"})
	assert.NoError(t, err)

	err = reg.ValidateConfig("notify", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config for node type")

	// Types without schema accept anything.
	assert.NoError(t, reg.ValidateConfig("unschema'd", map[string]any{"x": 1}))
}
