package domain

import "encoding/json"

type ActivityType string

const (
	ActivityThinking   ActivityType = "thinking"
	ActivityToolUse    ActivityType = "tool_use"
	ActivityResponding ActivityType = "responding"
	ActivityError      ActivityType = "error"
)

// Activity is a transient progress signal relayed to the originating platform.
type Activity struct {
	Type      ActivityType
	Message   string
	ToolName  string
	ToolInput json.RawMessage
}

// SessionContext identifies the run an Activity or response belongs to.
type SessionContext struct {
	SessionID string
	Event     NormalizedEvent
}
