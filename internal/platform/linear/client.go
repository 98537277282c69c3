package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-success response from the Linear API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linear api error (status %d): %s", e.StatusCode, e.Body)
}

const issueQuery = `query Issue($id: String!) {
  issue(id: $id) {
    id identifier title description priority url createdAt updatedAt
    state { name type }
    labels { nodes { name } }
    assignee { id name email }
    comments(first: 100) {
      nodes { id body createdAt user { id name email } botActor { id name } }
    }
  }
}`

const commentCreateMutation = `mutation CommentCreate($input: CommentCreateInput!) {
  commentCreate(input: $input) { success }
}`

const agentActivityCreateMutation = `mutation AgentActivityCreate($input: AgentActivityCreateInput!) {
  agentActivityCreate(input: $input) { success }
}`

type client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

func newClient(apiURL, apiKey string, httpClient *http.Client) *client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &client{apiURL: apiURL, apiKey: apiKey, httpClient: httpClient}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encoding graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authorization())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling linear api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading linear response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var gql gqlResponse
	if err := json.Unmarshal(raw, &gql); err != nil {
		return fmt.Errorf("decoding linear response: %w", err)
	}
	if len(gql.Errors) > 0 {
		msgs := make([]string, 0, len(gql.Errors))
		for _, e := range gql.Errors {
			msgs = append(msgs, e.Message)
		}
		return &APIError{StatusCode: resp.StatusCode, Body: strings.Join(msgs, "; ")}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gql.Data, out); err != nil {
		return fmt.Errorf("decoding linear data: %w", err)
	}
	return nil
}

// Personal API keys are sent verbatim, OAuth tokens as bearer tokens.
func (c *client) authorization() string {
	if strings.HasPrefix(c.apiKey, "lin_api_") {
		return c.apiKey
	}
	return "Bearer " + c.apiKey
}

func (c *client) issue(ctx context.Context, id string) (*gqlIssue, error) {
	var out struct {
		Issue *gqlIssue `json:"issue"`
	}
	if err := c.do(ctx, issueQuery, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Issue == nil {
		return nil, fmt.Errorf("linear issue %s not found", id)
	}
	return out.Issue, nil
}

func (c *client) createComment(ctx context.Context, issueID, parentID, body string) error {
	var out struct {
		CommentCreate struct {
			Success bool `json:"success"`
		} `json:"commentCreate"`
	}
	input := map[string]any{"issueId": issueID, "body": body}
	if parentID != "" {
		input["parentId"] = parentID
	}
	if err := c.do(ctx, commentCreateMutation, map[string]any{"input": input}, &out); err != nil {
		return err
	}
	if !out.CommentCreate.Success {
		return fmt.Errorf("linear commentCreate reported failure")
	}
	return nil
}

func (c *client) createAgentActivity(ctx context.Context, sessionID string, content map[string]any) error {
	var out struct {
		AgentActivityCreate struct {
			Success bool `json:"success"`
		} `json:"agentActivityCreate"`
	}
	input := map[string]any{"agentSessionId": sessionID, "content": content}
	if err := c.do(ctx, agentActivityCreateMutation, map[string]any{"input": input}, &out); err != nil {
		return err
	}
	if !out.AgentActivityCreate.Success {
		return fmt.Errorf("linear agentActivityCreate reported failure")
	}
	return nil
}
