package contract

import "context"

// ToolGateway executes a tool on behalf of a persona.
// Implementations must resolve every call to a ToolResult; the error return is
// reserved for programming errors such as an unknown tool name.
type ToolGateway interface {
	Execute(ctx context.Context, call ToolCallContext, req ToolRequest) (ToolResult, error)
}

// ToolCallContext carries the correlation data a side-effecting tool needs.
type ToolCallContext struct {
	SessionID string
	TurnID    string
	Persona   string
	Channel   Channel
	Customer  CustomerInfo
	History   string
}

// Classifier maps a message to one of a closed set of persona names.
// An empty name means no confident match.
type Classifier interface {
	Classify(ctx context.Context, text string, candidates []string) (string, error)
}
