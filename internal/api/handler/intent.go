package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/railagent/railagent/internal/intent"
)

// IntentHandler parses free-form transfer requests into structured intents.
type IntentHandler struct{}

func NewIntentHandler() *IntentHandler {
	return &IntentHandler{}
}

// Parse handles POST /v1/intent/parse.
func (h *IntentHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "intent/invalid-body", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		RespondError(w, r, http.StatusBadRequest, "intent/text-required", "text is required")
		return
	}

	result := intent.Parse(req.Text)

	RespondJSON(w, http.StatusOK, struct {
		intent.Result
		SuggestedIdempotencyKey string `json:"suggestedIdempotencyKey"`
	}{
		Result:                  result,
		SuggestedIdempotencyKey: intent.IdempotencyKey(req.Text),
	})
}
