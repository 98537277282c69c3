package domain

import (
	"strings"
	"time"
)

// StateType is the canonical workflow category of an issue.
type StateType string

const (
	StateBacklog   StateType = "backlog"
	StateUnstarted StateType = "unstarted"
	StateStarted   StateType = "started"
	StateCompleted StateType = "completed"
	StateCancelled StateType = "cancelled"
)

var stateAliases = map[string]StateType{
	"backlog":     StateBacklog,
	"unstarted":   StateUnstarted,
	"todo":        StateUnstarted,
	"opened":      StateUnstarted,
	"open":        StateUnstarted,
	"reopened":    StateUnstarted,
	"started":     StateStarted,
	"in_progress": StateStarted,
	"completed":   StateCompleted,
	"done":        StateCompleted,
	"closed":      StateCompleted,
	"cancelled":   StateCancelled,
	"canceled":    StateCancelled,
}

// NormalizeStateType maps a provider state vocabulary onto the canonical set.
// Unknown values fall back to StateUnstarted.
func NormalizeStateType(raw string) StateType {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	if st, ok := stateAliases[key]; ok {
		return st
	}
	return StateUnstarted
}

// NormalizedIssue is a canonical snapshot of a ticket.
type NormalizedIssue struct {
	ID          string
	Identifier  string // human readable key, e.g. ENG-42 or group/project#7
	Title       string
	Description string
	State       string
	StateType   StateType
	Labels      []string
	Priority    int // 0 = none
	Assignee    *PlatformActor
	URL         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DisplayKey returns the identifier when present, the raw id otherwise.
func (i NormalizedIssue) DisplayKey() string {
	if i.Identifier != "" {
		return i.Identifier
	}
	return i.ID
}

// PlatformActor is the user or automation behind an event.
type PlatformActor struct {
	ID    string
	Name  string
	Email string
	IsBot bool
}
