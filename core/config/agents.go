package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"basegraph.app/dispatch/common"
	"basegraph.app/dispatch/common/llm"
	"basegraph.app/dispatch/internal/domain"
)

type agentFile struct {
	Agents []agentSpec `yaml:"agents"`
}

type agentSpec struct {
	ID            string          `yaml:"id"`
	Name          string          `yaml:"name"`
	SystemPrompt  string          `yaml:"system_prompt"`
	Model         string          `yaml:"model"`
	Temperature   *float64        `yaml:"temperature"`
	TopP          *float64        `yaml:"top_p"`
	TopK          *int            `yaml:"top_k"`
	StopSequences []string        `yaml:"stop_sequences"`
	MaxTokens     int             `yaml:"max_tokens"`
	Thinking      thinkingSpec    `yaml:"thinking"`
	Tools         []toolSpec      `yaml:"tools"`
	MCPServers    []mcpServerSpec `yaml:"mcp_servers"`
}

type thinkingSpec struct {
	Enabled      bool `yaml:"enabled"`
	BudgetTokens int  `yaml:"budget_tokens"`
}

type toolSpec struct {
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description"`
	InputSchema map[string]any `yaml:"input_schema"`
	MaxUses     int            `yaml:"max_uses"`
}

type mcpServerSpec struct {
	Name                  string   `yaml:"name"`
	URL                   string   `yaml:"url"`
	AuthorizationTokenEnv string   `yaml:"authorization_token_env"`
	AllowedTools          []string `yaml:"allowed_tools"`
}

// emptyToolInput is the schema used for custom tools declared without one.
type emptyToolInput struct{}

func loadAgents() ([]domain.AgentDefinition, error) {
	if path := getEnv("AGENTS_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading agents file: %w", err)
		}
		return ParseAgents(data)
	}

	name := getEnv("AGENT_NAME", "")
	if name == "" {
		return nil, ErrNoAgents
	}

	spec := agentSpec{
		Name:         name,
		SystemPrompt: getEnv("AGENT_SYSTEM_PROMPT", ""),
		Model:        getEnv("AGENT_MODEL", ""),
		MaxTokens:    getEnvInt("AGENT_MAX_TOKENS", 0),
	}
	if _, ok := os.LookupEnv("AGENT_TEMPERATURE"); ok {
		t := getEnvFloat("AGENT_TEMPERATURE", 0)
		spec.Temperature = &t
	}
	if budget := getEnvInt("AGENT_THINKING_BUDGET", 0); budget > 0 {
		spec.Thinking = thinkingSpec{Enabled: true, BudgetTokens: budget}
	}

	agent, err := spec.toDefinition()
	if err != nil {
		return nil, err
	}
	return []domain.AgentDefinition{agent}, nil
}

// ParseAgents decodes and validates a YAML agents document.
func ParseAgents(data []byte) ([]domain.AgentDefinition, error) {
	var file agentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing agents file: %w", err)
	}
	if len(file.Agents) == 0 {
		return nil, ErrNoAgents
	}

	seen := make(map[string]bool, len(file.Agents))
	agents := make([]domain.AgentDefinition, 0, len(file.Agents))
	for i, spec := range file.Agents {
		agent, err := spec.toDefinition()
		if err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
		if seen[agent.ID] {
			return nil, fmt.Errorf("agent %d: duplicate id %q", i, agent.ID)
		}
		seen[agent.ID] = true
		agents = append(agents, agent)
	}
	return agents, nil
}

func (s agentSpec) toDefinition() (domain.AgentDefinition, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return domain.AgentDefinition{}, fmt.Errorf("name is required")
	}
	if s.MaxTokens < 0 {
		return domain.AgentDefinition{}, fmt.Errorf("max_tokens must not be negative")
	}
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 1) {
		return domain.AgentDefinition{}, fmt.Errorf("temperature must be between 0 and 1")
	}

	id := s.ID
	if id == "" {
		slug, err := common.Slugify(name, "agent")
		if err != nil {
			return domain.AgentDefinition{}, err
		}
		id = slug
	}

	tools := make([]llm.ToolSpec, 0, len(s.Tools))
	for _, t := range s.Tools {
		tool, err := t.toToolSpec()
		if err != nil {
			return domain.AgentDefinition{}, err
		}
		tools = append(tools, tool)
	}

	servers := make([]llm.MCPServer, 0, len(s.MCPServers))
	for _, m := range s.MCPServers {
		if m.Name == "" || m.URL == "" {
			return domain.AgentDefinition{}, fmt.Errorf("mcp server requires name and url")
		}
		server := llm.MCPServer{Name: m.Name, URL: m.URL, AllowedTools: m.AllowedTools}
		if m.AuthorizationTokenEnv != "" {
			server.AuthorizationToken = os.Getenv(m.AuthorizationTokenEnv)
		}
		servers = append(servers, server)
	}

	return domain.AgentDefinition{
		ID:           id,
		Name:         name,
		SystemPrompt: s.SystemPrompt,
		Params: llm.ModelParams{
			Model:         s.Model,
			MaxTokens:     s.MaxTokens,
			Temperature:   s.Temperature,
			TopP:          s.TopP,
			TopK:          s.TopK,
			StopSequences: s.StopSequences,
			Thinking:      llm.ThinkingConfig{Enabled: s.Thinking.Enabled, BudgetTokens: s.Thinking.BudgetTokens},
			Tools:         tools,
			MCPServers:    servers,
		},
	}, nil
}

func (t toolSpec) toToolSpec() (llm.ToolSpec, error) {
	if t.Name == "" {
		return llm.ToolSpec{}, fmt.Errorf("tool name is required")
	}

	kind := llm.ToolType(t.Type)
	switch kind {
	case "":
		kind = llm.ToolTypeCustom
	case llm.ToolTypeCustom, llm.ToolTypeWebFetch, llm.ToolTypeWebSearch:
	default:
		return llm.ToolSpec{}, fmt.Errorf("tool %q: unsupported type %q", t.Name, t.Type)
	}

	schema := t.InputSchema
	if kind == llm.ToolTypeCustom && len(schema) == 0 {
		schema = llm.SchemaFor[emptyToolInput]()
	}

	return llm.ToolSpec{
		Name:        t.Name,
		Type:        kind,
		Description: t.Description,
		InputSchema: schema,
		MaxUses:     t.MaxUses,
	}, nil
}
