package domain

import (
	"encoding/json"
	"time"
)

// EventType is the normalized kind of an inbound provider event.
type EventType string

const (
	EventTypeIssueCreated   EventType = "issue_created"
	EventTypeIssueUpdated   EventType = "issue_updated"
	EventTypeCommentCreated EventType = "comment_created"
	EventTypeMention        EventType = "mention"
)

// Comment is the comment (or prompt) that triggered an event.
type Comment struct {
	ID        string
	Body      string
	ParentID  string // set when the comment is a reply inside a thread
	Author    PlatformActor
	CreatedAt time.Time
}

// NormalizedEvent is a provider payload translated into the platform-agnostic model.
// Adapters construct it once; it is not mutated afterwards.
type NormalizedEvent struct {
	Type     EventType
	Platform string
	Issue    NormalizedIssue
	Actor    PlatformActor
	Comment  *Comment

	// AgentSessionID is set when the provider tracks the run as an agent session
	// and accepts structured activities for it.
	AgentSessionID string

	Raw json.RawMessage
}

// IsConversational reports whether the event continues a discussion on the issue.
func (e NormalizedEvent) IsConversational() bool {
	return e.Type == EventTypeCommentCreated || e.Type == EventTypeMention
}
