package domain

import "basegraph.app/dispatch/common/llm"

// AgentDefinition is a named system prompt plus model parameters.
// Loaded once at startup and never mutated.
type AgentDefinition struct {
	ID           string
	Name         string
	SystemPrompt string
	Params       llm.ModelParams
}
