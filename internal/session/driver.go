package session

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/dispatch/common/llm"
	"basegraph.app/dispatch/common/logger"
	"basegraph.app/dispatch/internal/domain"
	"basegraph.app/dispatch/internal/platform"
)

// Input is everything one agent run needs.
type Input struct {
	SessionID string
	Event     domain.NormalizedEvent
	Agent     domain.AgentDefinition
	History   []domain.ConversationMessage
	Adapter   platform.Adapter

	// LoadHistory fetches the issue's conversation before the run when History is empty.
	LoadHistory bool
}

// Result is the outcome of a run, used for logging and metrics.
type Result struct {
	Success    bool
	Response   string
	TokensUsed int
	Error      error
}

// Driver bridges one normalized event and agent into a reasoning run and
// relays its progress to the originating platform.
type Driver struct {
	reasoner llm.Reasoner
}

func NewDriver(reasoner llm.Reasoner) *Driver {
	return &Driver{reasoner: reasoner}
}

func (d *Driver) Run(ctx context.Context, in Input) Result {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SessionID: logger.Ptr(in.SessionID),
		AgentID:   logger.Ptr(in.Agent.ID),
		IssueID:   logger.Ptr(in.Event.Issue.ID),
		Component: "dispatch.session.driver",
	})

	span := logger.StartSpan(ctx, "session.run")
	defer span.End()
	ctx = span.Context()
	span.SetAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.String("agent.id", in.Agent.ID),
		attribute.String("event.type", string(in.Event.Type)),
	)

	history := in.History
	if len(history) == 0 && in.LoadHistory {
		history = d.loadHistory(ctx, in)
	}

	event := in.Event
	if len(history) == 0 && (event.Issue.Title == "" || event.IsConversational()) {
		event.Issue = d.loadIssue(ctx, in)
	}
	sc := domain.SessionContext{SessionID: in.SessionID, Event: event}

	req, continuation := buildRequest(in.Agent, event, history)

	startMsg := fmt.Sprintf("Analyzing issue %s...", event.Issue.DisplayKey())
	if continuation {
		startMsg = "Thinking..."
	}
	d.report(ctx, in.Adapter, sc, domain.Activity{Type: domain.ActivityThinking, Message: startMsg})

	slog.InfoContext(ctx, "agent run started",
		"continuation", continuation,
		"history_len", len(history))

	res, err := d.reasoner.Run(ctx, req, d.callbacks(in.Adapter, sc))
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "agent run failed", "error", err)
		d.reportFailure(ctx, in.Adapter, sc, err)
		return Result{Success: false, Error: err}
	}

	response := responseHeader(in.Agent, res.Text)
	d.report(ctx, in.Adapter, sc, domain.Activity{Type: domain.ActivityResponding, Message: response})

	if err := in.Adapter.Respond(ctx, sc, response); err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "posting agent response failed", "error", err)
		d.reportFailure(ctx, in.Adapter, sc, err)
		return Result{Success: false, TokensUsed: res.TokensUsed, Error: fmt.Errorf("responding: %w", err)}
	}

	span.SetAttributes(
		attribute.Int("llm.tokens_used", res.TokensUsed),
		attribute.Int("llm.iterations", res.Iterations),
	)
	slog.InfoContext(ctx, "agent run completed",
		"tokens_used", res.TokensUsed,
		"iterations", res.Iterations,
		"response_preview", logger.Truncate(res.Text, 200))

	return Result{Success: true, Response: response, TokensUsed: res.TokensUsed}
}

// loadHistory returns the prior conversation without the triggering comment,
// which buildRequest appends as the latest turn. Failures fall back to initial mode.
func (d *Driver) loadHistory(ctx context.Context, in Input) []domain.ConversationMessage {
	history, err := in.Adapter.GetConversationHistory(ctx, in.Event.Issue.ID)
	if err != nil {
		slog.WarnContext(ctx, "fetching conversation history failed, starting fresh", "error", err)
		return nil
	}
	if in.Event.Comment != nil {
		history = domain.ExcludeMessage(history, in.Event.Comment.ID)
	}
	return history
}

// loadIssue fetches the full issue when the webhook only carried a partial
// snapshot. Failures keep the snapshot from the event.
func (d *Driver) loadIssue(ctx context.Context, in Input) domain.NormalizedIssue {
	issue, err := in.Adapter.GetIssue(ctx, in.Event.Issue.ID)
	if err != nil {
		slog.WarnContext(ctx, "fetching issue failed, using webhook snapshot", "error", err)
		return in.Event.Issue
	}
	if issue == nil {
		return in.Event.Issue
	}
	if issue.ID == "" {
		issue.ID = in.Event.Issue.ID
	}
	return *issue
}

// Callbacks run synchronously inside the loop so activities keep the order
// the model produced them in.
func (d *Driver) callbacks(adapter platform.Adapter, sc domain.SessionContext) llm.Callbacks {
	return llm.Callbacks{
		OnToolUse: func(ctx context.Context, use llm.ToolUse) {
			d.report(ctx, adapter, sc, domain.Activity{
				Type:      domain.ActivityToolUse,
				Message:   fmt.Sprintf("Using %s", use.Name),
				ToolName:  use.Name,
				ToolInput: use.Input,
			})
		},
		OnThinking: func(ctx context.Context, thinking string) {
			d.report(ctx, adapter, sc, domain.Activity{Type: domain.ActivityThinking, Message: thinking})
		},
		OnInterimText: func(ctx context.Context, text string) {
			d.report(ctx, adapter, sc, domain.Activity{Type: domain.ActivityThinking, Message: text})
		},
	}
}

// report is best-effort; a failed activity never aborts the run.
func (d *Driver) report(ctx context.Context, adapter platform.Adapter, sc domain.SessionContext, activity domain.Activity) {
	if err := platform.ReportActivity(ctx, adapter, sc, activity); err != nil {
		slog.WarnContext(ctx, "reporting activity failed",
			"activity_type", activity.Type,
			"error", err)
	}
}

// reportFailure swallows its own errors so the run's error stays the one reported.
func (d *Driver) reportFailure(ctx context.Context, adapter platform.Adapter, sc domain.SessionContext, cause error) {
	defer func() {
		if r := recover(); r != nil {
			slog.WarnContext(ctx, "error activity panicked", "panic", r)
		}
	}()
	d.report(ctx, adapter, sc, domain.Activity{Type: domain.ActivityError, Message: cause.Error()})
}
