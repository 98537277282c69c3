package llm

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func parseMessage(raw string) *anthropic.BetaMessage {
	var msg anthropic.BetaMessage
	Expect(json.Unmarshal([]byte(raw), &msg)).To(Succeed())
	return &msg
}

func signalKinds(t turn) []signalKind {
	kinds := make([]signalKind, 0, len(t.signals))
	for _, s := range t.signals {
		kinds = append(kinds, s.kind)
	}
	return kinds
}

var _ = Describe("classifyTurn", func() {
	It("treats a server tool response as terminal and splits text around the last tool block", func() {
		msg := parseMessage(`{
			"stop_reason": "end_turn",
			"content": [
				{"type": "text", "text": "Let me fetch that page."},
				{"type": "server_tool_use", "id": "srv_1", "name": "web_fetch", "input": {"url": "https://example.com"}},
				{"type": "web_fetch_tool_result", "tool_use_id": "srv_1", "content": {}},
				{"type": "text", "text": "  The page says hello.  "},
				{"type": "text", "text": "Done."}
			]
		}`)

		t := classifyTurn(string(msg.StopReason), msg.Content)

		Expect(t.kind).To(Equal(turnServerTool))
		Expect(signalKinds(t)).To(Equal([]signalKind{signalInterimText, signalToolUse}))
		Expect(t.signals[0].text).To(Equal("Let me fetch that page."))
		Expect(t.signals[1].tool.Name).To(Equal("web_fetch"))
		Expect(t.signals[1].tool.Kind).To(Equal("server_tool_use"))
		Expect(t.finalText).To(Equal("The page says hello.  \nDone."))
	})

	It("reports every MCP tool call regardless of position", func() {
		msg := parseMessage(`{
			"stop_reason": "end_turn",
			"content": [
				{"type": "mcp_tool_use", "id": "m1", "name": "search_docs", "server_name": "docs", "input": {}},
				{"type": "mcp_tool_result", "tool_use_id": "m1", "content": []},
				{"type": "text", "text": "Between calls"},
				{"type": "mcp_tool_use", "id": "m2", "name": "read_doc", "server_name": "docs", "input": {}},
				{"type": "mcp_tool_result", "tool_use_id": "m2", "content": []},
				{"type": "text", "text": "Answer"}
			]
		}`)

		t := classifyTurn(string(msg.StopReason), msg.Content)

		Expect(t.kind).To(Equal(turnServerTool))
		Expect(signalKinds(t)).To(Equal([]signalKind{signalToolUse, signalInterimText, signalToolUse}))
		Expect(t.signals[0].tool.ServerName).To(Equal("docs"))
		Expect(t.finalText).To(Equal("Answer"))
	})

	It("continues on caller-managed tool use", func() {
		msg := parseMessage(`{
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Checking the issue."},
				{"type": "tool_use", "id": "tu_1", "name": "lookup_issue", "input": {"issue_id": "ENG-1"}},
				{"type": "tool_use", "id": "tu_2", "name": "lookup_issue", "input": {"issue_id": "ENG-2"}}
			]
		}`)

		t := classifyTurn(string(msg.StopReason), msg.Content)

		Expect(t.kind).To(Equal(turnClientTool))
		Expect(signalKinds(t)).To(Equal([]signalKind{signalInterimText, signalToolUse, signalToolUse}))
		Expect(t.pendingIDs).To(Equal([]string{"tu_1", "tu_2"}))
		Expect(string(t.signals[1].tool.Input)).To(MatchJSON(`{"issue_id": "ENG-1"}`))
	})

	It("does not continue on tool_use blocks without the tool_use stop reason", func() {
		msg := parseMessage(`{
			"stop_reason": "max_tokens",
			"content": [
				{"type": "text", "text": "partial"},
				{"type": "tool_use", "id": "tu_1", "name": "lookup_issue", "input": {}}
			]
		}`)

		t := classifyTurn(string(msg.StopReason), msg.Content)

		Expect(t.kind).To(Equal(turnDone))
		Expect(t.finalText).To(Equal("partial"))
	})

	It("emits thinking in document order before finishing", func() {
		msg := parseMessage(`{
			"stop_reason": "end_turn",
			"content": [
				{"type": "thinking", "thinking": "first thought", "signature": "s"},
				{"type": "text", "text": "Hello"},
				{"type": "thinking", "thinking": "second thought", "signature": "s"},
				{"type": "text", "text": "World"}
			]
		}`)

		t := classifyTurn(string(msg.StopReason), msg.Content)

		Expect(t.kind).To(Equal(turnDone))
		Expect(signalKinds(t)).To(Equal([]signalKind{signalThinking, signalThinking}))
		Expect(t.signals[0].text).To(Equal("first thought"))
		Expect(t.signals[1].text).To(Equal("second thought"))
		Expect(t.finalText).To(Equal("Hello\nWorld"))
	})
})

var _ = Describe("Request validation", func() {
	It("rejects both message and history", func() {
		req := Request{Message: "hi", History: []Message{{Role: RoleUser, Content: "hi"}}}
		Expect(req.validate()).To(MatchError(ErrInvalidInput))
	})

	It("rejects neither", func() {
		Expect(Request{}.validate()).To(MatchError(ErrInvalidInput))
	})

	It("accepts exactly one", func() {
		Expect(Request{Message: "hi"}.validate()).To(Succeed())
		Expect(Request{History: []Message{{Role: RoleUser, Content: "hi"}}}.validate()).To(Succeed())
	})
})

var _ = Describe("betasFor", func() {
	It("opts into web fetch and MCP only when present", func() {
		tools, err := buildTools([]ToolSpec{
			{Name: "lookup_issue", Type: ToolTypeCustom},
			{Name: "web_fetch", Type: ToolTypeWebFetch},
			{Name: "web_fetch_again", Type: ToolTypeWebFetch},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(betasFor(tools, nil)).To(Equal([]anthropic.AnthropicBeta{BetaWebFetch}))

		servers := buildMCPServers([]MCPServer{{Name: "docs", URL: "https://mcp.example.com"}})
		Expect(betasFor(tools, servers)).To(Equal([]anthropic.AnthropicBeta{BetaWebFetch, BetaMCPClient}))
		Expect(betasFor(nil, nil)).To(BeEmpty())
	})

	It("rejects unknown tool types", func() {
		_, err := buildTools([]ToolSpec{{Name: "shell", Type: "bash"}})
		Expect(err).To(MatchError(ContainSubstring("unsupported tool type")))
	})
})

var _ = Describe("thinkingBudget", func() {
	It("applies the default and the vendor minimum", func() {
		Expect(thinkingBudget(ThinkingConfig{Enabled: true})).To(Equal(defaultThinkingBudget))
		Expect(thinkingBudget(ThinkingConfig{Enabled: true, BudgetTokens: 100})).To(Equal(minThinkingBudget))
		Expect(thinkingBudget(ThinkingConfig{Enabled: true, BudgetTokens: 2048})).To(Equal(2048))
	})
})
