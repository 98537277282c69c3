package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/dispatch/common/llm"
	"basegraph.app/dispatch/core/config"
)

const agentsYAML = `
agents:
  - name: Triage Bot
    system_prompt: You triage issues.
    model: claude-sonnet-4-5
    temperature: 0.2
    max_tokens: 4096
    thinking:
      enabled: true
      budget_tokens: 2048
    tools:
      - name: web_fetch
        type: web_fetch
      - name: lookup_runbook
        description: Find a runbook
        input_schema:
          type: object
          properties:
            service:
              type: string
          required: [service]
    mcp_servers:
      - name: docs
        url: https://mcp.example.com/sse
        authorization_token_env: DOCS_MCP_TOKEN
        allowed_tools: [search]
  - id: reviewer
    name: Reviewer
`

var _ = Describe("ParseAgents", func() {
	BeforeEach(func() {
		GinkgoT().Setenv("DOCS_MCP_TOKEN", "secret-token")
	})

	It("decodes agent definitions", func() {
		agents, err := config.ParseAgents([]byte(agentsYAML))
		Expect(err).NotTo(HaveOccurred())
		Expect(agents).To(HaveLen(2))

		triage := agents[0]
		Expect(triage.ID).To(Equal("triage-bot"))
		Expect(triage.Name).To(Equal("Triage Bot"))
		Expect(triage.SystemPrompt).To(Equal("You triage issues."))
		Expect(triage.Params.Model).To(Equal("claude-sonnet-4-5"))
		Expect(*triage.Params.Temperature).To(BeNumerically("~", 0.2))
		Expect(triage.Params.MaxTokens).To(Equal(4096))
		Expect(triage.Params.Thinking).To(Equal(llm.ThinkingConfig{Enabled: true, BudgetTokens: 2048}))

		Expect(triage.Params.Tools).To(HaveLen(2))
		Expect(triage.Params.Tools[0].Type).To(Equal(llm.ToolTypeWebFetch))
		Expect(triage.Params.Tools[1].Type).To(Equal(llm.ToolTypeCustom))
		Expect(triage.Params.Tools[1].InputSchema).To(HaveKeyWithValue("type", "object"))

		Expect(triage.Params.MCPServers).To(ConsistOf(llm.MCPServer{
			Name:               "docs",
			URL:                "https://mcp.example.com/sse",
			AuthorizationToken: "secret-token",
			AllowedTools:       []string{"search"},
		}))

		Expect(agents[1].ID).To(Equal("reviewer"))
		Expect(agents[1].Params.Temperature).To(BeNil())
	})

	It("gives schemaless custom tools an object schema", func() {
		agents, err := config.ParseAgents([]byte("agents:\n  - name: a\n    tools:\n      - name: ping\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(agents[0].Params.Tools[0].InputSchema).To(HaveKeyWithValue("type", "object"))
	})

	DescribeTable("rejects invalid documents",
		func(doc string, match string) {
			_, err := config.ParseAgents([]byte(doc))
			Expect(err).To(MatchError(ContainSubstring(match)))
		},
		Entry("missing name", "agents:\n  - system_prompt: x\n", "name is required"),
		Entry("bad tool type", "agents:\n  - name: a\n    tools:\n      - name: t\n        type: shell\n", "unsupported type"),
		Entry("duplicate ids", "agents:\n  - name: a\n  - name: A\n", "duplicate id"),
		Entry("temperature range", "agents:\n  - name: a\n    temperature: 3\n", "temperature"),
		Entry("mcp without url", "agents:\n  - name: a\n    mcp_servers:\n      - name: x\n", "mcp server"),
	)

	It("returns ErrNoAgents for an empty list", func() {
		_, err := config.ParseAgents([]byte("agents: []\n"))
		Expect(err).To(MatchError(config.ErrNoAgents))
	})
})

var _ = Describe("Load", func() {
	BeforeEach(func() {
		GinkgoT().Setenv("DISPATCH_ENV", "test")
		GinkgoT().Setenv("ANTHROPIC_API_KEY", "sk-test")
		GinkgoT().Setenv("AGENTS_FILE", "")
		GinkgoT().Setenv("AGENT_NAME", "Helper")
		GinkgoT().Setenv("AGENT_THINKING_BUDGET", "1500")
		GinkgoT().Setenv("AGENT_RUN_TIMEOUT", "90s")
		GinkgoT().Setenv("REASONING_MAX_ITERATIONS", "12")
		GinkgoT().Setenv("GITLAB_TOKEN", "")
		GinkgoT().Setenv("REDIS_URL", "")
	})

	It("builds a single agent from environment variables", func() {
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Port).NotTo(BeEmpty())
		Expect(cfg.AgentRunTimeout).To(Equal(90 * time.Second))
		Expect(cfg.Reasoning.MaxIterations).To(Equal(12))
		Expect(cfg.GitLab.Enabled()).To(BeFalse())
		Expect(cfg.Redis.Enabled()).To(BeFalse())
		Expect(cfg.Redis.DeliveryTTL).To(Equal(24 * time.Hour))

		Expect(cfg.Agents).To(HaveLen(1))
		Expect(cfg.Agents[0].ID).To(Equal("helper"))
		Expect(cfg.Agents[0].Params.Thinking.Enabled).To(BeTrue())
		Expect(cfg.Agents[0].Params.Thinking.BudgetTokens).To(Equal(1500))
	})

	It("prefers the agents file when set", func() {
		path := filepath.Join(GinkgoT().TempDir(), "agents.yaml")
		Expect(os.WriteFile(path, []byte(agentsYAML), 0o600)).To(Succeed())
		GinkgoT().Setenv("AGENTS_FILE", path)

		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Agents).To(HaveLen(2))
	})

	It("requires an API key", func() {
		GinkgoT().Setenv("ANTHROPIC_API_KEY", "")
		_, err := config.Load()
		Expect(err).To(MatchError(ContainSubstring("ANTHROPIC_API_KEY")))
	})

	It("fails without any agent", func() {
		GinkgoT().Setenv("AGENT_NAME", "")
		_, err := config.Load()
		Expect(err).To(MatchError(config.ErrNoAgents))
	})
})
