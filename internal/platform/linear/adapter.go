package linear

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"basegraph.app/dispatch/core/config"
	"basegraph.app/dispatch/internal/domain"
	"basegraph.app/dispatch/internal/platform"
)

const (
	Name = "linear"

	signatureHeader = "Linear-Signature"
	deliveryHeader  = "Linear-Delivery"
)

var (
	_ platform.Adapter            = (*Adapter)(nil)
	_ platform.ActivityReporter   = (*Adapter)(nil)
	_ platform.DeliveryIdentifier = (*Adapter)(nil)
)

type Option func(*Adapter)

// WithHTTPClient overrides the client used for Linear API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		a.client.httpClient = c
	}
}

// Adapter is the Linear platform adapter.
type Adapter struct {
	secret    string
	botUserID string
	client    *client
}

func New(cfg config.LinearConfig, opts ...Option) *Adapter {
	a := &Adapter{
		secret:    cfg.WebhookSecret,
		botUserID: cfg.BotUserID,
		client:    newClient(cfg.APIURL, cfg.APIKey, nil),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) SignatureHeader() string { return signatureHeader }

func (a *Adapter) Verify(body []byte, signature string) bool {
	return platform.VerifyHMACSHA256(a.secret, body, signature)
}

func (a *Adapter) DeliveryID(header http.Header) string {
	return header.Get(deliveryHeader)
}

func (a *Adapter) Parse(body []byte) (*domain.NormalizedEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding linear webhook: %w", err)
	}

	switch payload.Type {
	case "Issue":
		return a.parseIssue(payload, body)
	case "Comment":
		return a.parseComment(payload, body)
	case "AgentSessionEvent":
		return a.parseAgentSession(payload, body)
	default:
		return nil, nil
	}
}

func (a *Adapter) parseIssue(p webhookPayload, raw []byte) (*domain.NormalizedEvent, error) {
	var eventType domain.EventType
	switch p.Action {
	case "create":
		eventType = domain.EventTypeIssueCreated
	case "update":
		eventType = domain.EventTypeIssueUpdated
	default:
		return nil, nil
	}

	var data issueData
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding linear issue: %w", err)
	}
	if data.URL == "" {
		data.URL = p.URL
	}

	return &domain.NormalizedEvent{
		Type:     eventType,
		Platform: Name,
		Issue:    toIssue(data),
		Actor:    a.toActor(p.Actor),
		Raw:      raw,
	}, nil
}

func (a *Adapter) parseComment(p webhookPayload, raw []byte) (*domain.NormalizedEvent, error) {
	if p.Action != "create" {
		return nil, nil
	}

	var data commentData
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding linear comment: %w", err)
	}

	issue := domain.NormalizedIssue{ID: data.IssueID, StateType: domain.StateUnstarted}
	if data.Issue != nil {
		issue = toIssue(*data.Issue)
		if issue.ID == "" {
			issue.ID = data.IssueID
		}
	}

	author := a.commentAuthor(data.User, data.BotActor)
	actor := a.toActor(p.Actor)
	if p.Actor == nil {
		actor = author
	}

	return &domain.NormalizedEvent{
		Type:     domain.EventTypeCommentCreated,
		Platform: Name,
		Issue:    issue,
		Actor:    actor,
		Comment: &domain.Comment{
			ID:        data.ID,
			Body:      data.Body,
			ParentID:  data.ParentID,
			Author:    author,
			CreatedAt: data.CreatedAt,
		},
		Raw: raw,
	}, nil
}

func (a *Adapter) parseAgentSession(p webhookPayload, raw []byte) (*domain.NormalizedEvent, error) {
	session := p.AgentSession
	if session == nil || session.Issue == nil {
		return nil, nil
	}

	event := &domain.NormalizedEvent{
		Platform:       Name,
		Issue:          toIssue(*session.Issue),
		AgentSessionID: session.ID,
		Raw:            raw,
	}

	switch p.Action {
	case "created":
		event.Type = domain.EventTypeMention
		event.Actor = a.userActor(session.Creator)
		if c := session.Comment; c != nil {
			event.Comment = &domain.Comment{ID: c.ID, Body: c.Body, Author: event.Actor, CreatedAt: c.CreatedAt}
		}
	case "prompted":
		activity := p.AgentActivity
		if activity == nil || activity.Content.Type != "prompt" {
			return nil, nil
		}
		event.Type = domain.EventTypeCommentCreated
		user := activity.User
		if user == nil {
			user = session.Creator
		}
		event.Actor = a.userActor(user)
		event.Comment = &domain.Comment{
			ID:        activity.ID,
			Body:      activity.Content.Body,
			Author:    event.Actor,
			CreatedAt: activity.CreatedAt,
		}
	default:
		return nil, nil
	}

	return event, nil
}

func (a *Adapter) ShouldProcess(event domain.NormalizedEvent) bool {
	if event.Actor.IsBot {
		return false
	}
	if event.Comment != nil && event.Comment.Author.IsBot {
		return false
	}
	return true
}

// Respond posts the reply as an issue comment. Agent session runs are answered
// by the response activity instead, which Linear renders in the session thread.
func (a *Adapter) Respond(ctx context.Context, sc domain.SessionContext, text string) error {
	if sc.Event.AgentSessionID != "" {
		return nil
	}
	if err := a.client.createComment(ctx, sc.Event.Issue.ID, threadParent(sc.Event.Comment), text); err != nil {
		return fmt.Errorf("posting linear comment: %w", err)
	}
	return nil
}

// threadParent returns the comment a reply should nest under. Linear threads
// are one level deep, so replies to a reply go to the thread root.
func threadParent(c *domain.Comment) string {
	if c == nil {
		return ""
	}
	if c.ParentID != "" {
		return c.ParentID
	}
	return c.ID
}

// ReportActivity maps activities onto Linear agent activities. Events outside an
// agent session have nowhere to show them, so they are dropped.
func (a *Adapter) ReportActivity(ctx context.Context, sc domain.SessionContext, activity domain.Activity) error {
	if sc.Event.AgentSessionID == "" {
		return nil
	}

	var content map[string]any
	switch activity.Type {
	case domain.ActivityThinking:
		content = map[string]any{"type": "thought", "body": activity.Message}
	case domain.ActivityToolUse:
		content = map[string]any{"type": "action", "action": activity.ToolName, "parameter": string(activity.ToolInput)}
	case domain.ActivityResponding:
		content = map[string]any{"type": "response", "body": activity.Message}
	case domain.ActivityError:
		content = map[string]any{"type": "error", "body": activity.Message}
	default:
		slog.WarnContext(ctx, "unsupported activity type for linear", "activity_type", activity.Type)
		return nil
	}

	if err := a.client.createAgentActivity(ctx, sc.Event.AgentSessionID, content); err != nil {
		return fmt.Errorf("creating linear agent activity: %w", err)
	}
	return nil
}

func (a *Adapter) GetIssue(ctx context.Context, issueID string) (*domain.NormalizedIssue, error) {
	issue, err := a.client.issue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("fetching linear issue: %w", err)
	}
	normalized := toIssue(issue.toIssueData())
	return &normalized, nil
}

func (a *Adapter) GetConversationHistory(ctx context.Context, issueID string) ([]domain.ConversationMessage, error) {
	issue, err := a.client.issue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("fetching linear comments: %w", err)
	}

	msgs := make([]domain.ConversationMessage, 0, len(issue.Comments.Nodes))
	for _, c := range issue.Comments.Nodes {
		if strings.TrimSpace(c.Body) == "" {
			continue
		}
		role := domain.RoleUser
		if a.commentAuthor(c.User, c.BotActor).IsBot {
			role = domain.RoleAssistant
		}
		msgs = append(msgs, domain.ConversationMessage{
			ID:        c.ID,
			Role:      role,
			Content:   c.Body,
			Timestamp: c.CreatedAt,
		})
	}
	return domain.SortConversation(msgs), nil
}

// Actors that are not people (OAuth apps, integrations) count as bots.
func (a *Adapter) toActor(actor *actorData) domain.PlatformActor {
	if actor == nil {
		return domain.PlatformActor{}
	}
	isBot := actor.Type != "" && !strings.EqualFold(actor.Type, "user")
	if a.botUserID != "" && actor.ID == a.botUserID {
		isBot = true
	}
	return domain.PlatformActor{ID: actor.ID, Name: actor.Name, Email: actor.Email, IsBot: isBot}
}

func (a *Adapter) userActor(u *userData) domain.PlatformActor {
	if u == nil {
		return domain.PlatformActor{}
	}
	return domain.PlatformActor{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		IsBot: a.botUserID != "" && u.ID == a.botUserID,
	}
}

func (a *Adapter) commentAuthor(user, botActor *userData) domain.PlatformActor {
	if botActor != nil && user == nil {
		return domain.PlatformActor{ID: botActor.ID, Name: botActor.Name, IsBot: true}
	}
	return a.userActor(user)
}

func toIssue(d issueData) domain.NormalizedIssue {
	issue := domain.NormalizedIssue{
		ID:          d.ID,
		Identifier:  d.Identifier,
		Title:       d.Title,
		Description: d.Description,
		Priority:    int(d.Priority),
		URL:         d.URL,
		StateType:   domain.StateUnstarted,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.State != nil {
		issue.State = d.State.Name
		issue.StateType = domain.NormalizeStateType(d.State.Type)
	}
	for _, l := range d.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	if d.Assignee != nil {
		issue.Assignee = &domain.PlatformActor{ID: d.Assignee.ID, Name: d.Assignee.Name, Email: d.Assignee.Email}
	}
	return issue
}

func (g gqlIssue) toIssueData() issueData {
	return issueData{
		ID:          g.ID,
		Identifier:  g.Identifier,
		Title:       g.Title,
		Description: g.Description,
		Priority:    g.Priority,
		URL:         g.URL,
		State:       g.State,
		Labels:      g.Labels.Nodes,
		Assignee:    g.Assignee,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}
