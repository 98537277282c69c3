package dto

// Webhook outcome statuses returned with HTTP 200.
const (
	StatusIgnored         = "ignored"
	StatusSkipped         = "skipped"
	StatusNoMatchingAgent = "no_matching_agent"
	StatusDuplicate       = "duplicate"
	StatusProcessing      = "processing"
)

type WebhookResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// Error bodies. Internal details are logged, never returned.
const (
	ErrInvalidSignature = "Invalid webhook signature"
	ErrInternal         = "Internal server error"
)
