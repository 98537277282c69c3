package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/dispatch/internal/http/dto"
	"basegraph.app/dispatch/internal/http/handler/webhook"
	"basegraph.app/dispatch/internal/metrics"
)

type RouterConfig struct {
	Webhook *webhook.Handler
	Metrics *metrics.Metrics
}

func SetupRoutes(router *gin.Engine, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
	})

	WebhookRouter(router.Group("/webhook"), cfg.Webhook)

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
}

func WebhookRouter(group *gin.RouterGroup, h *webhook.Handler) {
	group.POST("/:provider", h.HandleEvent)
}
