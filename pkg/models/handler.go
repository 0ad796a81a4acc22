package models

// HandlerResult is the outcome of a single node handler invocation.
type HandlerResult struct {
	// Success reports whether the node completed. When false, Error must
	// carry the reason and the engine stops without advancing.
	Success bool `json:"success"`

	// Output is merged into the instance variable bag after the handler
	// returns. Shallow merge, last write wins.
	Output map[string]any `json:"output,omitempty"`

	// Error is the handler's failure message, required when Success=false.
	Error string `json:"error,omitempty"`

	// NextEdge, when set, force-selects the outgoing edge whose Label
	// matches, overriding condition evaluation.
	NextEdge string `json:"next_edge,omitempty"`
}

// Succeed builds a successful result carrying the given output.
func Succeed(output map[string]any) HandlerResult {
	return HandlerResult{Success: true, Output: output}
}

// Fail builds a failed result with the given message.
func Fail(message string) HandlerResult {
	return HandlerResult{Success: false, Error: message}
}
