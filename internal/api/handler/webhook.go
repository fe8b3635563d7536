package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/railagent/railagent/internal/webhook"
)

// WebhookHandler manages webhook target registration for operators.
type WebhookHandler struct {
	dispatcher *webhook.Dispatcher
}

func NewWebhookHandler(dispatcher *webhook.Dispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// Register handles POST /v1/webhooks/targets. Registering the same URL
// twice returns the existing target.
func (h *WebhookHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "webhook/invalid-body", "Invalid request body")
		return
	}

	target := strings.TrimSpace(req.URL)
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		RespondError(w, r, http.StatusBadRequest, "webhook/invalid-url", "url must be an absolute http(s) URL")
		return
	}

	registered := h.dispatcher.RegisterTarget(target)
	RespondJSON(w, http.StatusCreated, registered)
}

// List handles GET /v1/webhooks/targets.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"targets":    h.dispatcher.Targets(),
		"queueDepth": h.dispatcher.QueueDepth(),
	})
}
