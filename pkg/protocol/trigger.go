package protocol

import "context"

// TriggerCallback is called by a trigger source when an external event
// should start a workflow. The callback maps to the engine's
// StartWorkflow(flowName, initialVariables, actor) entry point.
type TriggerCallback func(ctx context.Context, flowName string, variables map[string]any, actor string) error

// TriggerSource is a long-running process that watches an external system
// (schedule, queue, webhook) and fires the callback when a workflow should
// start.
type TriggerSource interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}
