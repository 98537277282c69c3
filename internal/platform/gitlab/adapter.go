package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/dispatch/core/config"
	"basegraph.app/dispatch/internal/domain"
	"basegraph.app/dispatch/internal/platform"
)

const (
	Name = "gitlab"

	tokenHeader    = "X-Gitlab-Token"
	deliveryHeader = "X-Gitlab-Event-UUID"
)

var (
	_ platform.Adapter            = (*Adapter)(nil)
	_ platform.DeliveryIdentifier = (*Adapter)(nil)

	// Project and group access tokens act through generated bot users.
	botUsernamePattern = regexp.MustCompile(`^(project|group)_\d+_bot`)
)

// Adapter is the GitLab platform adapter. GitLab has no activity surface, so
// progress is only visible through the final note.
type Adapter struct {
	secret      string
	botUsername string
	client      *gitlab.Client
}

func New(cfg config.GitLabConfig) (*Adapter, error) {
	client, err := newClient(cfg.BaseURL, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &Adapter{
		secret:      cfg.WebhookSecret,
		botUsername: strings.TrimPrefix(cfg.BotUsername, "@"),
		client:      client,
	}, nil
}

func newClient(baseURL, token string) (*gitlab.Client, error) {
	if baseURL == "" {
		return gitlab.NewClient(token)
	}
	apiURL := strings.TrimSuffix(baseURL, "/") + "/api/v4"
	return gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) SignatureHeader() string { return tokenHeader }

// Verify compares the shared webhook token; GitLab does not sign bodies.
func (a *Adapter) Verify(_ []byte, token string) bool {
	return platform.VerifyToken(a.secret, token)
}

func (a *Adapter) DeliveryID(header http.Header) string {
	return header.Get(deliveryHeader)
}

func (a *Adapter) Parse(body []byte) (*domain.NormalizedEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding gitlab webhook: %w", err)
	}

	switch payload.ObjectKind {
	case "issue":
		return a.parseIssueHook(payload, body)
	case "note":
		return a.parseNoteHook(payload, body)
	default:
		return nil, nil
	}
}

func (a *Adapter) parseIssueHook(p webhookPayload, raw []byte) (*domain.NormalizedEvent, error) {
	var attrs hookIssue
	if err := json.Unmarshal(p.ObjectAttributes, &attrs); err != nil {
		return nil, fmt.Errorf("decoding gitlab issue attributes: %w", err)
	}

	var eventType domain.EventType
	switch attrs.Action {
	case "open":
		eventType = domain.EventTypeIssueCreated
	case "update", "reopen", "close":
		eventType = domain.EventTypeIssueUpdated
	default:
		return nil, nil
	}

	issue := toIssue(attrs, p.Project)
	if len(p.Assignees) > 0 {
		issue.Assignee = a.toActor(p.Assignees[0])
	}

	return &domain.NormalizedEvent{
		Type:     eventType,
		Platform: Name,
		Issue:    issue,
		Actor:    *a.toActor(p.User),
		Raw:      raw,
	}, nil
}

func (a *Adapter) parseNoteHook(p webhookPayload, raw []byte) (*domain.NormalizedEvent, error) {
	var note hookNote
	if err := json.Unmarshal(p.ObjectAttributes, &note); err != nil {
		return nil, fmt.Errorf("decoding gitlab note attributes: %w", err)
	}
	if note.NoteableType != "Issue" || p.Issue == nil {
		return nil, nil
	}

	actor := *a.toActor(p.User)
	eventType := domain.EventTypeCommentCreated
	if a.mentionsBot(note.Note) {
		eventType = domain.EventTypeMention
	}

	return &domain.NormalizedEvent{
		Type:     eventType,
		Platform: Name,
		Issue:    toIssue(*p.Issue, p.Project),
		Actor:    actor,
		Comment: &domain.Comment{
			ID:        strconv.FormatInt(note.ID, 10),
			Body:      note.Note,
			Author:    actor,
			CreatedAt: note.CreatedAt.Time,
		},
		Raw: raw,
	}, nil
}

func (a *Adapter) mentionsBot(body string) bool {
	if a.botUsername == "" {
		return false
	}
	mention := strings.ToLower("@" + a.botUsername)
	return strings.Contains(strings.ToLower(body), mention)
}

func (a *Adapter) ShouldProcess(event domain.NormalizedEvent) bool {
	return !event.Actor.IsBot
}

func (a *Adapter) Respond(ctx context.Context, sc domain.SessionContext, text string) error {
	projectID, iid, err := splitIssueID(sc.Event.Issue.ID)
	if err != nil {
		return err
	}
	_, _, err = a.client.Notes.CreateIssueNote(
		projectID,
		iid,
		&gitlab.CreateIssueNoteOptions{Body: gitlab.Ptr(text)},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("creating gitlab issue note: %w", err)
	}
	return nil
}

func (a *Adapter) GetIssue(ctx context.Context, issueID string) (*domain.NormalizedIssue, error) {
	projectID, iid, err := splitIssueID(issueID)
	if err != nil {
		return nil, err
	}

	gitlabIssue, _, err := a.client.Issues.GetIssue(projectID, iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching issue from gitlab: %w", err)
	}
	return a.mapToIssue(issueID, gitlabIssue), nil
}

func (a *Adapter) GetConversationHistory(ctx context.Context, issueID string) ([]domain.ConversationMessage, error) {
	projectID, iid, err := splitIssueID(issueID)
	if err != nil {
		return nil, err
	}

	discussions, _, err := a.client.Discussions.ListIssueDiscussions(projectID, iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching discussions from gitlab: %w", err)
	}

	var msgs []domain.ConversationMessage
	for _, d := range discussions {
		if d == nil {
			continue
		}
		for _, n := range d.Notes {
			if n == nil || n.System || strings.TrimSpace(n.Body) == "" {
				continue
			}

			createdAt := n.CreatedAt
			if createdAt == nil {
				createdAt = n.UpdatedAt
			}

			role := domain.RoleUser
			if a.isBot(n.Author.Username) {
				role = domain.RoleAssistant
			}

			msg := domain.ConversationMessage{
				ID:      fmt.Sprintf("%d", n.ID),
				Role:    role,
				Content: n.Body,
			}
			if createdAt != nil {
				msg.Timestamp = *createdAt
			}
			msgs = append(msgs, msg)
		}
	}

	return domain.SortConversation(msgs), nil
}

func (a *Adapter) mapToIssue(id string, gitlabIssue *gitlab.Issue) *domain.NormalizedIssue {
	issue := &domain.NormalizedIssue{
		ID:          id,
		Identifier:  fmt.Sprintf("#%d", gitlabIssue.IID),
		Title:       gitlabIssue.Title,
		Description: gitlabIssue.Description,
		State:       gitlabIssue.State,
		StateType:   domain.NormalizeStateType(gitlabIssue.State),
		URL:         gitlabIssue.WebURL,
	}
	for _, l := range gitlabIssue.Labels {
		issue.Labels = append(issue.Labels, l)
	}
	for _, assignee := range gitlabIssue.Assignees {
		if assignee != nil {
			issue.Assignee = &domain.PlatformActor{
				ID:    fmt.Sprintf("%d", assignee.ID),
				Name:  assignee.Name,
				IsBot: a.isBot(assignee.Username),
			}
			break
		}
	}
	if gitlabIssue.CreatedAt != nil {
		issue.CreatedAt = *gitlabIssue.CreatedAt
	}
	if gitlabIssue.UpdatedAt != nil {
		issue.UpdatedAt = *gitlabIssue.UpdatedAt
	}
	return issue
}

func (a *Adapter) isBot(username string) bool {
	if username == "" {
		return false
	}
	if a.botUsername != "" && strings.EqualFold(username, a.botUsername) {
		return true
	}
	return botUsernamePattern.MatchString(username)
}

func (a *Adapter) toActor(u hookUser) *domain.PlatformActor {
	return &domain.PlatformActor{
		ID:    strconv.FormatInt(u.ID, 10),
		Name:  u.Name,
		Email: u.Email,
		IsBot: a.isBot(u.Username),
	}
}

func toIssue(attrs hookIssue, project hookProject) domain.NormalizedIssue {
	projectID := attrs.ProjectID
	if projectID == 0 {
		projectID = project.ID
	}

	issue := domain.NormalizedIssue{
		ID:          IssueID(projectID, attrs.IID),
		Identifier:  fmt.Sprintf("%s#%d", project.PathWithNamespace, attrs.IID),
		Title:       attrs.Title,
		Description: attrs.Description,
		State:       attrs.State,
		StateType:   domain.NormalizeStateType(attrs.State),
		URL:         attrs.URL,
		CreatedAt:   attrs.CreatedAt.Time,
		UpdatedAt:   attrs.UpdatedAt.Time,
	}
	for _, l := range attrs.Labels {
		issue.Labels = append(issue.Labels, l.Title)
	}
	return issue
}

// IssueID encodes the project id and issue iid GitLab needs to address an issue.
func IssueID(projectID, iid int64) string {
	return fmt.Sprintf("%d:%d", projectID, iid)
}

func splitIssueID(id string) (int64, int64, error) {
	project, iid, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid gitlab issue id %q", id)
	}
	projectID, err := strconv.ParseInt(project, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid gitlab project id %q: %w", project, err)
	}
	issueIID, err := strconv.ParseInt(iid, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid gitlab issue iid %q: %w", iid, err)
	}
	return projectID, issueIID, nil
}
