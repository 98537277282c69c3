package session

import (
	"fmt"
	"strings"

	"basegraph.app/dispatch/common/llm"
	"basegraph.app/dispatch/internal/domain"
)

// buildRequest chooses continuation mode when history is present and
// initial mode otherwise.
func buildRequest(agent domain.AgentDefinition, event domain.NormalizedEvent, history []domain.ConversationMessage) (llm.Request, bool) {
	req := llm.Request{
		System: agent.SystemPrompt,
		Params: agent.Params,
	}

	if len(history) > 0 {
		msgs := make([]llm.Message, 0, len(history)+1)
		for _, m := range history {
			msgs = append(msgs, llm.Message{Role: toRole(m.Role), Content: m.Content})
		}
		if event.Comment != nil && strings.TrimSpace(event.Comment.Body) != "" {
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: event.Comment.Body})
		}
		req.History = msgs
		return req, true
	}

	req.Message = issuePrompt(event)
	return req, false
}

func toRole(r domain.MessageRole) llm.Role {
	if r == domain.RoleAssistant {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

func issuePrompt(event domain.NormalizedEvent) string {
	issue := event.Issue

	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n\n", event.Type)
	fmt.Fprintf(&b, "Issue: %s\n", issue.DisplayKey())
	fmt.Fprintf(&b, "Title: %s\n", issue.Title)
	if issue.State != "" {
		fmt.Fprintf(&b, "State: %s (%s)\n", issue.State, issue.StateType)
	} else {
		fmt.Fprintf(&b, "State: %s\n", issue.StateType)
	}
	if len(issue.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(issue.Labels, ", "))
	}
	fmt.Fprintf(&b, "Priority: %d\n", issue.Priority)
	if issue.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", issue.URL)
	}

	description := strings.TrimSpace(issue.Description)
	if description == "" {
		description = "(no description)"
	}
	fmt.Fprintf(&b, "\nDescription:\n%s\n", description)

	if c := event.Comment; c != nil && strings.TrimSpace(c.Body) != "" {
		author := c.Author.Name
		if author == "" {
			author = "unknown"
		}
		fmt.Fprintf(&b, "\nComment from %s:\n%s\n", author, c.Body)
	}

	return b.String()
}

func responseHeader(agent domain.AgentDefinition, text string) string {
	return fmt.Sprintf("**%s**\n\n%s", agent.Name, text)
}
