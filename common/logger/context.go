package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// A webhook handler sets platform/delivery, the dispatcher adds session and agent,
// so every log line of one agent run can be correlated without passing ids around.
type LogFields struct {
	SessionID  *string // Agent run id minted per accepted event
	DeliveryID *int64  // Snowflake id of the inbound webhook delivery
	Platform   *string // Provider segment, e.g. "linear", "gitlab"
	AgentID    *string
	IssueID    *string // Provider issue id
	EventType  *string // Normalized event type (e.g., "comment_created")
	Component  string  // OTel semantic convention style, e.g. "dispatch.session.driver"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.SessionID != nil {
		result.SessionID = new.SessionID
	}
	if new.DeliveryID != nil {
		result.DeliveryID = new.DeliveryID
	}
	if new.Platform != nil {
		result.Platform = new.Platform
	}
	if new.AgentID != nil {
		result.AgentID = new.AgentID
	}
	if new.IssueID != nil {
		result.IssueID = new.IssueID
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{SessionID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
