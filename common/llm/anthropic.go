package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel          = "claude-sonnet-4-5"
	defaultMaxTokens      = 8192
	minThinkingBudget     = 1024
	defaultThinkingBudget = 4096
)

// Config holds reasoning client configuration.
type Config struct {
	APIKey        string // Required
	BaseURL       string // Optional: custom API endpoint
	MaxIterations int    // 0 = unbounded, the loop ends only when the model stops using tools
}

type messageCreator interface {
	New(ctx context.Context, params anthropic.BetaMessageNewParams, opts ...option.RequestOption) (*anthropic.BetaMessage, error)
}

// Client drives the multi-turn tool-use loop against the Anthropic beta Messages API.
// It keeps no state between Run calls; the message buffer belongs to one invocation.
type Client struct {
	messages      messageCreator
	maxIterations int
}

var _ Reasoner = (*Client)(nil)

// NewClient creates a reasoning Client. SDK retries are disabled: a blind retry of a
// multi-turn call can repeat side effects of server-executed tools.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)
	return &Client{
		messages:      &client.Beta.Messages,
		maxIterations: cfg.MaxIterations,
	}, nil
}

// Run executes the tool-use loop until the model produces a final answer.
//
// Each iteration classifies the response: server-managed tool calls (vendor tools,
// MCP servers) are already resolved and end the loop; caller-managed tool calls
// are answered with empty results and the loop continues; a response without
// tool use ends the loop. Signals are emitted through cb in response order.
func (c *Client) Run(ctx context.Context, req Request, cb Callbacks) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	tools, err := buildTools(req.Params.Tools)
	if err != nil {
		return nil, fmt.Errorf("building tools: %w", err)
	}
	servers := buildMCPServers(req.Params.MCPServers)
	messages := initialMessages(req)
	model := modelName(req.Params)

	result := &Result{}
	for {
		if c.maxIterations > 0 && result.Iterations >= c.maxIterations {
			return nil, fmt.Errorf("%w (%d)", ErrIterationLimit, c.maxIterations)
		}
		result.Iterations++

		params := buildParams(req, model, messages, tools, servers)

		start := time.Now()
		resp, err := c.messages.New(ctx, params)
		if err != nil {
			return nil, toAPIError(err)
		}

		result.TokensUsed += int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
		t := classifyTurn(string(resp.StopReason), resp.Content)

		slog.DebugContext(ctx, "reasoning turn completed",
			"model", model,
			"iteration", result.Iterations,
			"duration_ms", time.Since(start).Milliseconds(),
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"stop_reason", resp.StopReason,
			"turn", t.kind.String(),
			"betas", len(params.Betas))

		for _, s := range t.signals {
			cb.emit(ctx, s)
		}

		if t.kind != turnClientTool {
			result.Text = t.finalText
			return result, nil
		}

		// The caller-managed tools are not executed here: each call gets an empty
		// result so the model can finish its turn.
		messages = append(messages, resp.ToParam(), emptyToolResults(t.pendingIDs))
	}
}

func (cb Callbacks) emit(ctx context.Context, s signal) {
	switch s.kind {
	case signalToolUse:
		if cb.OnToolUse != nil {
			cb.OnToolUse(ctx, s.tool)
		}
	case signalThinking:
		if cb.OnThinking != nil {
			cb.OnThinking(ctx, s.text)
		}
	case signalInterimText:
		if cb.OnInterimText != nil {
			cb.OnInterimText(ctx, s.text)
		}
	}
}

func buildParams(
	req Request,
	model string,
	messages []anthropic.BetaMessageParam,
	tools []anthropic.BetaToolUnionParam,
	servers []anthropic.BetaRequestMCPServerURLDefinitionParam,
) anthropic.BetaMessageNewParams {
	p := req.Params

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.BetaMessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	if req.System != "" {
		params.System = []anthropic.BetaTextBlockParam{{Text: req.System}}
	}
	if p.Temperature != nil {
		params.Temperature = anthropic.Float(*p.Temperature)
	}
	if p.TopP != nil {
		params.TopP = anthropic.Float(*p.TopP)
	}
	if p.TopK != nil {
		params.TopK = anthropic.Int(int64(*p.TopK))
	}
	if len(p.StopSequences) > 0 {
		params.StopSequences = p.StopSequences
	}
	if p.Thinking.Enabled {
		params.Thinking = anthropic.BetaThinkingConfigParamOfEnabled(int64(thinkingBudget(p.Thinking)))
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	if len(servers) > 0 {
		params.MCPServers = servers
	}
	// Recomputed per iteration since the tool set is per request.
	params.Betas = betasFor(tools, servers)

	return params
}

func initialMessages(req Request) []anthropic.BetaMessageParam {
	if req.Message != "" {
		return []anthropic.BetaMessageParam{
			anthropic.NewBetaUserMessage(anthropic.NewBetaTextBlock(req.Message)),
		}
	}

	messages := make([]anthropic.BetaMessageParam, 0, len(req.History))
	for _, m := range req.History {
		if m.Content == "" {
			continue
		}
		role := anthropic.BetaMessageParamRoleUser
		if m.Role == RoleAssistant {
			role = anthropic.BetaMessageParamRoleAssistant
		}
		messages = append(messages, anthropic.BetaMessageParam{
			Role:    role,
			Content: []anthropic.BetaContentBlockParamUnion{anthropic.NewBetaTextBlock(m.Content)},
		})
	}
	return messages
}

func emptyToolResults(ids []string) anthropic.BetaMessageParam {
	blocks := make([]anthropic.BetaContentBlockParamUnion, 0, len(ids))
	for _, id := range ids {
		blocks = append(blocks, anthropic.NewBetaToolResultBlock(id))
	}
	return anthropic.NewBetaUserMessage(blocks...)
}

func modelName(p ModelParams) string {
	if p.Model == "" {
		return defaultModel
	}
	return p.Model
}

func thinkingBudget(t ThinkingConfig) int {
	switch {
	case t.BudgetTokens <= 0:
		return defaultThinkingBudget
	case t.BudgetTokens < minThinkingBudget:
		return minThinkingBudget
	default:
		return t.BudgetTokens
	}
}

func toAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("reasoning request: %w", err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Error(), Err: err}
	}
	return &APIError{Message: err.Error(), Err: err}
}
