package registry

import (
	"context"

	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/protocol"
)

// builtinHandlers are resolvable without registration and may be overridden
// by Register.
var builtinHandlers = map[string]protocol.NodeHandler{
	models.NodeTypeStart:      Start,
	models.NodeTypeEnd:        End,
	models.NodeTypeAssignment: Assignment,
	models.NodeTypeDecision:   Decision,
}

// Start always succeeds with no output; it exists purely as the traversal
// entry anchor.
func Start(_ context.Context, _ *models.Node, _ map[string]any) models.HandlerResult {
	return models.Succeed(nil)
}

// End always succeeds. The engine treats reaching an end-typed node as the
// terminal signal regardless of outgoing edges.
func End(_ context.Context, _ *models.Node, _ map[string]any) models.HandlerResult {
	return models.Succeed(nil)
}

// Assignment merges the node's entire config into the variable bag
// verbatim: the config is the set of variables to assign.
func Assignment(_ context.Context, node *models.Node, _ map[string]any) models.HandlerResult {
	return models.Succeed(node.Config)
}

// Decision carries no logic itself; branching is driven entirely by the
// outgoing edges' condition expressions.
func Decision(_ context.Context, _ *models.Node, _ map[string]any) models.HandlerResult {
	return models.Succeed(nil)
}

// Passthrough is the fallback for unrecognized node types: success, no
// output. Graphs may reference node types the running engine does not
// implement yet; tolerating them preserves forward compatibility.
func Passthrough(_ context.Context, _ *models.Node, _ map[string]any) models.HandlerResult {
	return models.Succeed(nil)
}
