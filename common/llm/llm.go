package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a request carries both a single message
	// and a history, or neither. It is raised before any network call.
	ErrInvalidInput = errors.New("exactly one of message or history is required")
	// ErrIterationLimit is returned when the configured iteration ceiling is hit.
	ErrIterationLimit = errors.New("tool-use loop iteration limit reached")
)

// Role of a conversation turn sent to the model.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolType selects how a declared tool is executed.
type ToolType string

const (
	// ToolTypeCustom tools are caller-managed: the model stops and waits for results.
	ToolTypeCustom ToolType = "custom"
	// ToolTypeWebFetch and ToolTypeWebSearch are executed by the model vendor.
	ToolTypeWebFetch  ToolType = "web_fetch"
	ToolTypeWebSearch ToolType = "web_search"
)

// ToolSpec declares a tool the model may invoke.
type ToolSpec struct {
	Name        string
	Type        ToolType
	Description string
	InputSchema map[string]any // JSON Schema object, custom tools only
	MaxUses     int            // server tools only, 0 = vendor default
}

// MCPServer declares an external tool server the vendor routes tool calls to.
type MCPServer struct {
	Name               string
	URL                string
	AuthorizationToken string
	AllowedTools       []string
}

// ThinkingConfig toggles extended reasoning with a token budget.
type ThinkingConfig struct {
	Enabled      bool
	BudgetTokens int
}

// ModelParams are the per-agent sampling and tool parameters.
type ModelParams struct {
	Model         string
	MaxTokens     int
	Temperature   *float64 // nil = model default
	TopP          *float64
	TopK          *int
	StopSequences []string
	Thinking      ThinkingConfig
	Tools         []ToolSpec
	MCPServers    []MCPServer
}

// Message is one prior conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Request is a single reasoning invocation. Exactly one of Message or History must be set.
type Request struct {
	System  string
	Params  ModelParams
	Message string
	History []Message
}

// ToolUse describes a tool invocation emitted by the model.
type ToolUse struct {
	ID         string
	Name       string
	Kind       string // tool_use, server_tool_use or mcp_tool_use
	ServerName string // mcp_tool_use only
	Input      json.RawMessage
}

// Callbacks receive streamed signals in the order the loop produces them.
// Nil callbacks are skipped.
type Callbacks struct {
	OnToolUse     func(ctx context.Context, use ToolUse)
	OnThinking    func(ctx context.Context, thinking string)
	OnInterimText func(ctx context.Context, text string)
}

// Result of a completed tool-use loop.
type Result struct {
	Text       string
	TokensUsed int // cumulative input+output tokens across all iterations
	Iterations int
}

// Reasoner runs a request to completion, relaying intermediate signals via callbacks.
type Reasoner interface {
	Run(ctx context.Context, req Request, cb Callbacks) (*Result, error)
}

// APIError is a non-success response from the reasoning backend.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reasoning api error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (r Request) validate() error {
	hasMessage := r.Message != ""
	hasHistory := len(r.History) > 0
	if hasMessage == hasHistory {
		return ErrInvalidInput
	}
	return nil
}
