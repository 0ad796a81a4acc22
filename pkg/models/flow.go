// Package models defines the core domain models for graph-based workflow execution.
package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// FlowType categorizes how a flow is launched.
type FlowType string

const (
	FlowTypeAutolaunched FlowType = "autolaunched" // Started by the system (events, schedules)
	FlowTypeManual       FlowType = "manual"       // Started by an explicit caller
)

// Built-in node types dispatched by the handler registry.
const (
	NodeTypeStart      = "start"
	NodeTypeEnd        = "end"
	NodeTypeAssignment = "assignment"
	NodeTypeDecision   = "decision"
)

// Node is a typed vertex in a flow graph. Config is an opaque bag handed
// verbatim to the handler registered for Type.
type Node struct {
	ID     string         `json:"id"     validate:"required"`
	Type   string         `json:"type"   validate:"required"`
	Label  string         `json:"label"`
	Config map[string]any `json:"config,omitempty"`
}

// Edge is a directed connection between two nodes. Condition, when present,
// gates traversal; Label is matched against a handler's NextEdge directive.
type Edge struct {
	ID        string `json:"id"        validate:"required"`
	Source    string `json:"source"    validate:"required"`
	Target    string `json:"target"    validate:"required"`
	Condition string `json:"condition,omitempty"`
	Label     string `json:"label,omitempty"`
}

// Flow is an immutable workflow definition: a directed graph of typed nodes
// and conditional edges. A single Flow may back many concurrent instances;
// nothing in the engine mutates it after creation.
type Flow struct {
	Name      string    `json:"name"    validate:"required,min=1"`
	Label     string    `json:"label"`
	Type      FlowType  `json:"type"`
	Version   string    `json:"version"`
	Nodes     []*Node   `json:"nodes"   validate:"required,min=1,dive"`
	Edges     []*Edge   `json:"edges"   validate:"dive"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving the given node, in declaration
// order. Declaration order is load-bearing: conditional edge selection uses
// first-match tie-breaking.
func (f *Flow) OutgoingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// StartNode returns the flow's single start node. Zero or multiple
// start-typed nodes are definition errors.
func (f *Flow) StartNode() (*Node, error) {
	var start *Node

	for _, node := range f.Nodes {
		if node.Type == NodeTypeStart {
			if start != nil {
				return nil, fmt.Errorf("flow %q declares multiple start nodes (%s, %s)", f.Name, start.ID, node.ID)
			}

			start = node
		}
	}

	if start == nil {
		return nil, fmt.Errorf("flow %q has no start node", f.Name)
	}

	return start, nil
}

// Validate checks structural invariants of the definition: field
// constraints, unique node ids, exactly one start node, and every edge
// referencing existing nodes.
func (f *Flow) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid flow definition: %w", err)
	}

	seen := make(map[string]bool, len(f.Nodes))
	for _, node := range f.Nodes {
		if seen[node.ID] {
			return fmt.Errorf("flow %q declares duplicate node id %q", f.Name, node.ID)
		}

		seen[node.ID] = true
	}

	if _, err := f.StartNode(); err != nil {
		return err
	}

	for _, edge := range f.Edges {
		if !seen[edge.Source] {
			return fmt.Errorf("edge %q references unknown source node %q", edge.ID, edge.Source)
		}

		if !seen[edge.Target] {
			return fmt.Errorf("edge %q references unknown target node %q", edge.ID, edge.Target)
		}
	}

	return nil
}
