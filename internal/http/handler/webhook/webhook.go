package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/dispatch/common/id"
	"basegraph.app/dispatch/common/logger"
	"basegraph.app/dispatch/internal/http/dto"
	"basegraph.app/dispatch/internal/metrics"
	"basegraph.app/dispatch/internal/platform"
	"basegraph.app/dispatch/internal/session"
	"basegraph.app/dispatch/internal/store"
)

// Dispatcher starts an agent run without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, in session.Input) error
}

type Handler struct {
	registry   *platform.Registry
	selector   session.AgentSelector
	dispatcher Dispatcher
	deliveries store.DeliveryStore
	metrics    *metrics.Metrics
}

type Config struct {
	Registry   *platform.Registry
	Selector   session.AgentSelector
	Dispatcher Dispatcher
	// Deliveries is optional; without it replays are not detected.
	Deliveries store.DeliveryStore
	Metrics    *metrics.Metrics
}

func NewHandler(cfg Config) *Handler {
	return &Handler{
		registry:   cfg.Registry,
		selector:   cfg.Selector,
		dispatcher: cfg.Dispatcher,
		deliveries: cfg.Deliveries,
		metrics:    cfg.Metrics,
	}
}

// HandleEvent runs verify, parse, filter and agent selection, then acknowledges
// and hands the run to the dispatcher.
func (h *Handler) HandleEvent(c *gin.Context) {
	provider := c.Param("provider")

	adapter, err := h.registry.Get(provider)
	if err != nil {
		h.metrics.RecordWebhook("unknown", "unknown_platform")
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Unknown platform: " + provider})
		return
	}

	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		Platform:   logger.Ptr(provider),
		DeliveryID: logger.Ptr(id.New()),
		Component:  "dispatch.http.webhook",
	})
	c.Request = c.Request.WithContext(ctx)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read webhook body", "error", err)
		h.fail(c, provider)
		return
	}

	if !adapter.Verify(body, c.GetHeader(adapter.SignatureHeader())) {
		slog.WarnContext(ctx, "webhook signature rejected")
		h.metrics.RecordWebhook(provider, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: dto.ErrInvalidSignature})
		return
	}

	event, err := adapter.Parse(body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse webhook", "error", err, "body_preview", logger.Truncate(string(body), 500))
		h.fail(c, provider)
		return
	}
	if event == nil {
		h.respond(c, provider, dto.StatusIgnored)
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		IssueID:   logger.Ptr(event.Issue.ID),
		EventType: logger.Ptr(string(event.Type)),
	})

	if !adapter.ShouldProcess(*event) {
		slog.DebugContext(ctx, "event filtered", "actor_id", event.Actor.ID, "actor_is_bot", event.Actor.IsBot)
		h.respond(c, provider, dto.StatusSkipped)
		return
	}

	agent, ok := h.selector.Select(*event)
	if !ok {
		slog.WarnContext(ctx, "no agent matched event")
		h.respond(c, provider, dto.StatusNoMatchingAgent)
		return
	}

	deliveryID, duplicate := h.claim(ctx, adapter, c.Request.Header)
	if duplicate {
		h.respond(c, provider, dto.StatusDuplicate)
		return
	}

	sessionID := id.NewSessionID()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SessionID: logger.Ptr(sessionID),
		AgentID:   logger.Ptr(agent.ID),
	})

	err = h.dispatcher.Dispatch(ctx, session.Input{
		SessionID:   sessionID,
		Event:       *event,
		Agent:       agent,
		Adapter:     adapter,
		LoadHistory: event.IsConversational(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to dispatch agent run", "error", err)
		h.release(ctx, adapter, deliveryID)
		h.fail(c, provider)
		return
	}

	slog.InfoContext(ctx, "agent run dispatched", "issue_title", event.Issue.Title)
	h.respond(c, provider, dto.StatusProcessing)
}

// claim records the provider delivery id and reports whether it was already seen.
// It returns the id it claimed, or "" when nothing was claimed. Store errors let the event through.
func (h *Handler) claim(ctx context.Context, adapter platform.Adapter, header http.Header) (string, bool) {
	if h.deliveries == nil {
		return "", false
	}
	deliveryID := platform.DeliveryID(adapter, header)
	if deliveryID == "" {
		return "", false
	}

	claimed, err := h.deliveries.Claim(ctx, adapter.Name(), deliveryID)
	if err != nil {
		slog.WarnContext(ctx, "delivery claim failed, processing anyway", "error", err, "provider_delivery_id", deliveryID)
		return "", false
	}
	if !claimed {
		slog.InfoContext(ctx, "duplicate webhook delivery", "provider_delivery_id", deliveryID)
		return "", true
	}
	return deliveryID, false
}

// release gives back a claim for a delivery that was not dispatched, so the provider retry is accepted.
func (h *Handler) release(ctx context.Context, adapter platform.Adapter, deliveryID string) {
	if h.deliveries == nil || deliveryID == "" {
		return
	}
	if err := h.deliveries.Release(ctx, adapter.Name(), deliveryID); err != nil {
		slog.WarnContext(ctx, "failed to release delivery claim", "error", err, "provider_delivery_id", deliveryID)
	}
}

func (h *Handler) respond(c *gin.Context, provider, status string) {
	h.metrics.RecordWebhook(provider, status)
	c.JSON(http.StatusOK, dto.WebhookResponse{Status: status})
}

func (h *Handler) fail(c *gin.Context, provider string) {
	h.metrics.RecordWebhook(provider, "error")
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: dto.ErrInternal})
}
