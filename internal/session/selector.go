package session

import "basegraph.app/dispatch/internal/domain"

// AgentSelector picks the agent that handles an event.
type AgentSelector interface {
	Select(event domain.NormalizedEvent) (domain.AgentDefinition, bool)
}

// FirstAgent selects the first configured agent for every event.
// Routing on labels, team or event type would slot in behind AgentSelector.
type FirstAgent struct {
	agents []domain.AgentDefinition
}

func NewFirstAgent(agents []domain.AgentDefinition) *FirstAgent {
	return &FirstAgent{agents: agents}
}

func (f *FirstAgent) Select(domain.NormalizedEvent) (domain.AgentDefinition, bool) {
	if len(f.agents) == 0 {
		return domain.AgentDefinition{}, false
	}
	return f.agents[0], true
}
