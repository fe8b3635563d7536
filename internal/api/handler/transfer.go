package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/railagent/railagent/internal/domain"
	"github.com/railagent/railagent/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultAuditLimit = 50

// TransferHandler serves transfer submission, lookup, and audit routes.
type TransferHandler struct {
	svc *service.TransferService
}

func NewTransferHandler(svc *service.TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

type submitTransferRequest struct {
	QuoteID         string `json:"quoteId"`
	Recipient       string `json:"recipient"`
	Amount          string `json:"amount"`
	FromToken       string `json:"fromToken"`
	ToToken         string `json:"toToken"`
	IdempotencyKey  string `json:"idempotencyKey"`
	DestinationHint string `json:"destinationHint"`
}

// Submit handles POST /v1/transfers. The idempotency key may arrive as the
// Idempotency-Key header or in the body; the header wins.
func (h *TransferHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "transfer/invalid-body", "Invalid request body")
		return
	}

	if headerKey := strings.TrimSpace(r.Header.Get("Idempotency-Key")); headerKey != "" {
		req.IdempotencyKey = headerKey
	}

	var amount *decimal.Decimal
	if strings.TrimSpace(req.Amount) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "transfer/invalid-amount", "amount must be a decimal string")
			return
		}
		amount = &parsed
	}

	result, err := h.svc.Submit(r.Context(), service.SubmitRequest{
		QuoteID:         req.QuoteID,
		Recipient:       req.Recipient,
		Amount:          amount,
		FromToken:       req.FromToken,
		ToToken:         req.ToToken,
		IdempotencyKey:  req.IdempotencyKey,
		DestinationHint: req.DestinationHint,
	})
	if err != nil {
		var policyErr *service.PolicyError
		if errors.As(err, &policyErr) {
			RespondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":          "POLICY_VIOLATION",
				"policyDecision": policyErr.Decision,
			})
			return
		}
		zap.L().Error("transfer submission failed", zap.Error(err))
		RespondError(w, r, http.StatusBadGateway, "transfer/submission-failed", "transfer could not be executed")
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	w.Header().Set("Idempotency-Replayed", strconv.FormatBool(result.Replayed))
	RespondJSON(w, status, result.Transfer)
}

// Get handles GET /v1/transfers/{id}.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.svc.GetTransfer(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTransferNotFound) {
			RespondError(w, r, http.StatusNotFound, "transfer/not-found", "transfer not found")
			return
		}
		zap.L().Error("transfer lookup failed", zap.String("transfer_id", id), zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "transfer/lookup-failed", "unable to load transfer")
		return
	}

	RespondJSON(w, http.StatusOK, t)
}

// ListAudit handles GET /v1/transfers for operators. Newest first, bounded
// by the limit query parameter.
func (h *TransferHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := int32(defaultAuditLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed <= 0 {
			RespondError(w, r, http.StatusBadRequest, "transfer/invalid-limit", "limit must be a positive integer")
			return
		}
		limit = int32(parsed)
	}

	records, err := h.svc.ListAudit(r.Context(), limit)
	if err != nil {
		zap.L().Error("audit listing failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "transfer/audit-failed", "unable to list transfers")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{"transfers": records})
}
