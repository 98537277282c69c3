package gitlab_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/dispatch/core/config"
	"basegraph.app/dispatch/internal/domain"
	"basegraph.app/dispatch/internal/platform/gitlab"
)

const issueHook = `{
  "object_kind": "issue",
  "event_type": "issue",
  "user": {"id": 1, "name": "Ada", "username": "ada", "email": "ada@example.com"},
  "project": {"id": 42, "path_with_namespace": "acme/web", "web_url": "https://gitlab.example.com/acme/web"},
  "object_attributes": {
    "id": 900, "iid": 7, "project_id": 42,
    "title": "Login broken", "description": "500 on /login",
    "state": "opened", "action": "open",
    "url": "https://gitlab.example.com/acme/web/-/issues/7",
    "created_at": "2025-03-01 10:00:00 UTC",
    "updated_at": "2025-03-01T10:05:00Z",
    "labels": [{"title": "bug"}]
  },
  "assignees": [{"id": 2, "name": "Grace", "username": "grace"}]
}`

func noteHook(username, body string) string {
	return `{
  "object_kind": "note",
  "user": {"id": 5, "name": "Someone", "username": "` + username + `"},
  "project": {"id": 42, "path_with_namespace": "acme/web"},
  "object_attributes": {"id": 3001, "note": "` + body + `", "noteable_type": "Issue", "created_at": "2025-03-02T08:00:00Z"},
  "issue": {"id": 900, "iid": 7, "project_id": 42, "title": "Login broken", "state": "opened"}
}`
}

type recordedCall struct {
	Method string
	Path   string
	Body   map[string]any
}

type fakeGitLabAPI struct {
	mu     sync.Mutex
	calls  []recordedCall
	routes map[string]string
}

func (f *fakeGitLabAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	f.calls = append(f.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Body: body})

	resp, ok := f.routes[r.Method+" "+r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"404 Not Found"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

var _ = Describe("GitLab adapter", func() {
	var (
		api     *fakeGitLabAPI
		server  *httptest.Server
		adapter *gitlab.Adapter
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		api = &fakeGitLabAPI{routes: map[string]string{}}
		server = httptest.NewServer(api)
		DeferCleanup(server.Close)

		var err error
		adapter, err = gitlab.New(config.GitLabConfig{
			WebhookSecret: "hook-token",
			Token:         "glpat-test",
			BaseURL:       server.URL,
			BotUsername:   "dispatch-bot",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("verifies the shared token", func() {
		Expect(adapter.SignatureHeader()).To(Equal("X-Gitlab-Token"))
		Expect(adapter.Verify(nil, "hook-token")).To(BeTrue())
		Expect(adapter.Verify(nil, "nope")).To(BeFalse())
	})

	It("reads the event uuid as delivery id", func() {
		h := http.Header{}
		h.Set("X-Gitlab-Event-UUID", "uuid-1")
		Expect(adapter.DeliveryID(h)).To(Equal("uuid-1"))
	})

	Describe("Parse", func() {
		It("normalizes an opened issue", func() {
			event, err := adapter.Parse([]byte(issueHook))
			Expect(err).NotTo(HaveOccurred())

			Expect(event.Type).To(Equal(domain.EventTypeIssueCreated))
			Expect(event.Platform).To(Equal("gitlab"))
			Expect(event.Issue.ID).To(Equal("42:7"))
			Expect(event.Issue.Identifier).To(Equal("acme/web#7"))
			Expect(event.Issue.Title).To(Equal("Login broken"))
			Expect(event.Issue.StateType).To(Equal(domain.StateUnstarted))
			Expect(event.Issue.Labels).To(Equal([]string{"bug"}))
			Expect(event.Issue.CreatedAt).To(Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
			Expect(event.Issue.UpdatedAt).To(Equal(time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC)))
			Expect(event.Issue.Assignee.Name).To(Equal("Grace"))
			Expect(event.Actor.Name).To(Equal("Ada"))
			Expect(adapter.ShouldProcess(*event)).To(BeTrue())
		})

		It("normalizes issue notes and detects mentions", func() {
			event, err := adapter.Parse([]byte(noteHook("ada", "thanks")))
			Expect(err).NotTo(HaveOccurred())
			Expect(event.Type).To(Equal(domain.EventTypeCommentCreated))
			Expect(event.Comment.ID).To(Equal("3001"))

			event, err = adapter.Parse([]byte(noteHook("ada", "@Dispatch-Bot can you look?")))
			Expect(err).NotTo(HaveOccurred())
			Expect(event.Type).To(Equal(domain.EventTypeMention))
		})

		DescribeTable("flags bot authors",
			func(username string) {
				event, err := adapter.Parse([]byte(noteHook(username, "automated")))
				Expect(err).NotTo(HaveOccurred())
				Expect(adapter.ShouldProcess(*event)).To(BeFalse())
			},
			Entry("configured bot", "dispatch-bot"),
			Entry("project access token", "project_42_bot_1a2b3c"),
			Entry("group access token", "group_9_bot"),
		)

		DescribeTable("ignores unmodelled hooks",
			func(payload string) {
				event, err := adapter.Parse([]byte(payload))
				Expect(err).NotTo(HaveOccurred())
				Expect(event).To(BeNil())
			},
			Entry("merge request", `{"object_kind":"merge_request","object_attributes":{}}`),
			Entry("wiki page", `{"object_kind":"wiki_page","object_attributes":{}}`),
			Entry("note on a commit", `{"object_kind":"note","object_attributes":{"noteable_type":"Commit"}}`),
			Entry("issue without action", `{"object_kind":"issue","object_attributes":{"iid":1}}`),
		)
	})

	Describe("API calls", func() {
		It("posts a note on the issue", func() {
			api.routes["POST /api/v4/projects/42/issues/7/notes"] = `{"id": 1, "body": "ok"}`
			sc := domain.SessionContext{Event: domain.NormalizedEvent{Issue: domain.NormalizedIssue{ID: "42:7"}}}

			Expect(adapter.Respond(ctx, sc, "**Helper**\n\nFixed")).To(Succeed())
			Expect(api.calls).To(HaveLen(1))
			Expect(api.calls[0].Body).To(HaveKeyWithValue("body", "**Helper**\n\nFixed"))
		})

		It("rejects malformed issue ids", func() {
			sc := domain.SessionContext{Event: domain.NormalizedEvent{Issue: domain.NormalizedIssue{ID: "7"}}}
			Expect(adapter.Respond(ctx, sc, "x")).To(MatchError(ContainSubstring("invalid gitlab issue id")))
		})

		It("fetches an issue", func() {
			api.routes["GET /api/v4/projects/42/issues/7"] = `{"id": 900, "iid": 7, "project_id": 42,
				"title": "Login broken", "state": "closed", "labels": ["bug"],
				"web_url": "https://gitlab.example.com/acme/web/-/issues/7",
				"created_at": "2025-03-01T10:00:00Z"}`

			issue, err := adapter.GetIssue(ctx, "42:7")
			Expect(err).NotTo(HaveOccurred())
			Expect(issue.ID).To(Equal("42:7"))
			Expect(issue.StateType).To(Equal(domain.StateCompleted))
			Expect(issue.Labels).To(Equal([]string{"bug"}))
		})

		It("returns history sorted ascending without system notes", func() {
			api.routes["GET /api/v4/projects/42/issues/7/discussions"] = `[
				{"id": "d2", "notes": [{"id": 12, "body": "later", "created_at": "2025-03-01T12:00:00Z", "author": {"username": "dispatch-bot"}}]},
				{"id": "d1", "notes": [
					{"id": 10, "body": "first", "created_at": "2025-03-01T10:00:00Z", "author": {"username": "ada"}},
					{"id": 11, "body": "changed the description", "system": true, "created_at": "2025-03-01T11:00:00Z", "author": {"username": "ada"}}
				]}
			]`

			history, err := adapter.GetConversationHistory(ctx, "42:7")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))
			Expect(history[0].Content).To(Equal("first"))
			Expect(history[0].Role).To(Equal(domain.RoleUser))
			Expect(history[1].Role).To(Equal(domain.RoleAssistant))
		})
	})
})
