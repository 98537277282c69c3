package gitlab

import (
	"encoding/json"
	"strings"
	"time"
)

// hookTime accepts both timestamp layouts GitLab uses in webhook bodies.
type hookTime struct {
	time.Time
}

var hookTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
}

func (t *hookTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var lastErr error
	for _, layout := range hookTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

type hookUser struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type hookLabel struct {
	Title string `json:"title"`
}

type hookProject struct {
	ID                int64  `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

type hookIssue struct {
	ID          int64       `json:"id"`
	IID         int64       `json:"iid"`
	ProjectID   int64       `json:"project_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	State       string      `json:"state"`
	Action      string      `json:"action"`
	URL         string      `json:"url"`
	Labels      []hookLabel `json:"labels"`
	CreatedAt   hookTime    `json:"created_at"`
	UpdatedAt   hookTime    `json:"updated_at"`
}

type hookNote struct {
	ID           int64    `json:"id"`
	Note         string   `json:"note"`
	NoteableType string   `json:"noteable_type"`
	CreatedAt    hookTime `json:"created_at"`
}

// webhookPayload covers Issue Hook and Note Hook bodies.
type webhookPayload struct {
	ObjectKind       string          `json:"object_kind"`
	User             hookUser        `json:"user"`
	Project          hookProject     `json:"project"`
	ObjectAttributes json.RawMessage `json:"object_attributes"`
	Issue            *hookIssue      `json:"issue"`
	Assignees        []hookUser      `json:"assignees"`
}
