package llm

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Content block kinds returned by the Messages API.
const (
	blockText          = "text"
	blockThinking      = "thinking"
	blockToolUse       = "tool_use"
	blockServerToolUse = "server_tool_use"
	blockMCPToolUse    = "mcp_tool_use"
	blockToolResult    = "tool_result"
)

type turnKind int

const (
	// turnDone: no tool use, the text blocks are the answer.
	turnDone turnKind = iota
	// turnServerTool: the vendor (or an MCP server) already resolved every tool call.
	turnServerTool
	// turnClientTool: the model waits on results for caller-managed tools.
	turnClientTool
)

func (k turnKind) String() string {
	switch k {
	case turnServerTool:
		return "server_tool"
	case turnClientTool:
		return "client_tool"
	default:
		return "done"
	}
}

type signalKind int

const (
	signalToolUse signalKind = iota
	signalThinking
	signalInterimText
)

type signal struct {
	kind signalKind
	text string
	tool ToolUse
}

// turn is the classification of one model response: which state the loop
// moves to, the signals to emit (in emission order) and the final text.
type turn struct {
	kind       turnKind
	signals    []signal
	finalText  string
	pendingIDs []string
}

func isServerToolInvocation(kind string) bool {
	return kind == blockServerToolUse || kind == blockMCPToolUse
}

func isToolInvocation(kind string) bool {
	return kind == blockToolUse || isServerToolInvocation(kind)
}

// isToolResult matches tool_result and every vendor result kind
// (web_fetch_tool_result, web_search_tool_result, mcp_tool_result, ...).
func isToolResult(kind string) bool {
	return kind == blockToolResult || strings.HasSuffix(kind, "_"+blockToolResult)
}

func toolUseFromBlock(b anthropic.BetaContentBlockUnion) ToolUse {
	return ToolUse{
		ID:         b.ID,
		Name:       b.Name,
		Kind:       b.Type,
		ServerName: b.ServerName,
		Input:      b.Input,
	}
}

func classifyTurn(stopReason string, blocks []anthropic.BetaContentBlockUnion) turn {
	hasServerTool := false
	hasClientTool := false
	for _, b := range blocks {
		switch {
		case isServerToolInvocation(b.Type):
			hasServerTool = true
		case b.Type == blockToolUse:
			hasClientTool = true
		}
	}

	switch {
	case hasServerTool:
		return classifyServerTurn(blocks)
	case stopReason == string(anthropic.BetaStopReasonToolUse) && hasClientTool:
		return classifyClientTurn(blocks)
	default:
		return classifyFinalTurn(blocks)
	}
}

// classifyServerTurn splits text around the last tool invocation/result block:
// text before it is interim, text after it is the answer.
func classifyServerTurn(blocks []anthropic.BetaContentBlockUnion) turn {
	last := -1
	for i, b := range blocks {
		if isToolInvocation(b.Type) || isToolResult(b.Type) {
			last = i
		}
	}

	t := turn{kind: turnServerTool}
	var answer []string
	for i, b := range blocks {
		switch {
		case b.Type == blockText && i < last:
			if text := strings.TrimSpace(b.Text); text != "" {
				t.signals = append(t.signals, signal{kind: signalInterimText, text: text})
			}
		case b.Type == blockText && i > last:
			answer = append(answer, b.Text)
		case b.Type == blockThinking && b.Thinking != "":
			t.signals = append(t.signals, signal{kind: signalThinking, text: b.Thinking})
		case isToolInvocation(b.Type):
			t.signals = append(t.signals, signal{kind: signalToolUse, tool: toolUseFromBlock(b)})
		}
	}
	t.finalText = strings.TrimSpace(strings.Join(answer, "\n"))
	return t
}

func classifyClientTurn(blocks []anthropic.BetaContentBlockUnion) turn {
	t := turn{kind: turnClientTool}

	var interim []string
	for _, b := range blocks {
		if b.Type == blockText {
			interim = append(interim, b.Text)
		}
	}
	if text := strings.TrimSpace(strings.Join(interim, "\n")); text != "" {
		t.signals = append(t.signals, signal{kind: signalInterimText, text: text})
	}

	for _, b := range blocks {
		if b.Type != blockToolUse {
			continue
		}
		t.signals = append(t.signals, signal{kind: signalToolUse, tool: toolUseFromBlock(b)})
		t.pendingIDs = append(t.pendingIDs, b.ID)
	}
	return t
}

func classifyFinalTurn(blocks []anthropic.BetaContentBlockUnion) turn {
	t := turn{kind: turnDone}
	var answer []string
	for _, b := range blocks {
		switch b.Type {
		case blockThinking:
			if b.Thinking != "" {
				t.signals = append(t.signals, signal{kind: signalThinking, text: b.Thinking})
			}
		case blockText:
			answer = append(answer, b.Text)
		}
	}
	t.finalText = strings.TrimSpace(strings.Join(answer, "\n"))
	return t
}
