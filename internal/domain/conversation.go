package domain

import (
	"sort"
	"time"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one entry of an issue's transcript.
type ConversationMessage struct {
	ID        string
	Role      MessageRole
	Content   string
	Timestamp time.Time
}

// SortConversation orders messages by timestamp ascending. Ties keep their source order.
func SortConversation(msgs []ConversationMessage) []ConversationMessage {
	sorted := make([]ConversationMessage, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// ExcludeMessage drops the message with the given id.
func ExcludeMessage(msgs []ConversationMessage, id string) []ConversationMessage {
	if id == "" {
		return msgs
	}
	out := make([]ConversationMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
