// Package protocol defines the interfaces and contracts for pluggable node
// handlers and trigger sources.
package protocol

import (
	"context"

	"github.com/pathwayhq/pathway/pkg/models"
)

// NodeHandler is invoked when traversal visits a node of its registered
// type. It receives the node (whose Config is the opaque per-node bag) and
// a snapshot of the instance variables; any mutation it wants to publish
// goes through HandlerResult.Output, which the engine merges after return.
type NodeHandler func(ctx context.Context, node *models.Node, data map[string]any) models.HandlerResult
