package linear

import (
	"encoding/json"
	"time"
)

type webhookPayload struct {
	Action string          `json:"action"`
	Type   string          `json:"type"`
	Actor  *actorData      `json:"actor"`
	Data   json.RawMessage `json:"data"`
	URL    string          `json:"url"`

	// AgentSessionEvent fields
	AgentSession  *agentSessionData  `json:"agentSession"`
	AgentActivity *agentActivityData `json:"agentActivity"`
}

type actorData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

type stateData struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type labelData struct {
	Name string `json:"name"`
}

type userData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type issueData struct {
	ID          string      `json:"id"`
	Identifier  string      `json:"identifier"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    float64     `json:"priority"`
	URL         string      `json:"url"`
	State       *stateData  `json:"state"`
	Labels      []labelData `json:"labels"`
	Assignee    *userData   `json:"assignee"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type commentData struct {
	ID        string     `json:"id"`
	Body      string     `json:"body"`
	IssueID   string     `json:"issueId"`
	ParentID  string     `json:"parentId"`
	Issue     *issueData `json:"issue"`
	User      *userData  `json:"user"`
	BotActor  *userData  `json:"botActor"`
	CreatedAt time.Time  `json:"createdAt"`
}

type agentSessionData struct {
	ID      string       `json:"id"`
	Issue   *issueData   `json:"issue"`
	Comment *commentData `json:"comment"`
	Creator *userData    `json:"creator"`
}

type agentActivityData struct {
	ID        string    `json:"id"`
	User      *userData `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	Content   struct {
		Type string `json:"type"`
		Body string `json:"body"`
	} `json:"content"`
}

// GraphQL response shapes.

type gqlIssue struct {
	ID          string     `json:"id"`
	Identifier  string     `json:"identifier"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    float64    `json:"priority"`
	URL         string     `json:"url"`
	State       *stateData `json:"state"`
	Labels      struct {
		Nodes []labelData `json:"nodes"`
	} `json:"labels"`
	Assignee  *userData `json:"assignee"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Comments  struct {
		Nodes []gqlComment `json:"nodes"`
	} `json:"comments"`
}

type gqlComment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	User      *userData `json:"user"`
	BotActor  *userData `json:"botActor"`
}
