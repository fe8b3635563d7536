package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/railagent/railagent/internal/provider"
	"github.com/railagent/railagent/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuoteHandler serves indicative corridor quotes.
type QuoteHandler struct {
	svc *service.TransferService
}

func NewQuoteHandler(svc *service.TransferService) *QuoteHandler {
	return &QuoteHandler{svc: svc}
}

// Quote handles POST /v1/quote.
func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromToken string `json:"fromToken"`
		ToToken   string `json:"toToken"`
		Amount    string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "quote/invalid-body", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.FromToken) == "" || strings.TrimSpace(req.ToToken) == "" {
		RespondError(w, r, http.StatusBadRequest, "quote/corridor-required", "fromToken and toToken are required")
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		RespondError(w, r, http.StatusBadRequest, "quote/invalid-amount", "amount must be a positive decimal string")
		return
	}

	result, err := h.svc.Quote(r.Context(), req.FromToken, req.ToToken, amount)
	if err != nil {
		if errors.Is(err, provider.ErrUnsupportedCorridor) {
			RespondError(w, r, http.StatusUnprocessableEntity, "quote/unsupported-corridor", err.Error())
			return
		}
		zap.L().Error("quote failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "quote/failed", "unable to produce quote")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}
