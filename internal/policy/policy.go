package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/railagent/railagent/internal/domain"
	"github.com/shopspring/decimal"
)

// Violation codes, in evaluation order.
const (
	CodeAmountRequired        = "POLICY_AMOUNT_REQUIRED"
	CodeMaxAmountExceeded     = "POLICY_MAX_AMOUNT_EXCEEDED"
	CodeCurrencyMaxExceeded   = "POLICY_CURRENCY_MAX_EXCEEDED"
	CodeCorridorNotAllowed    = "POLICY_CORRIDOR_NOT_ALLOWED"
	CodeRiskDestination       = "POLICY_RISK_DESTINATION"
	CodeRecipientRequired     = "POLICY_RECIPIENT_REQUIRED"
	CodeIdempotencyKeyMissing = "POLICY_IDEMPOTENCY_KEY_REQUIRED"
)

// Config holds the transfer policy limits. Loaded once, immutable after load,
// safe to share across concurrent evaluations.
type Config struct {
	MaxAmount             decimal.Decimal
	MaxAmountPerCurrency  map[string]decimal.Decimal
	AllowedCorridors      map[string]struct{}
	RequireRecipient      bool
	RequireIdempotencyKey bool
	RiskDestinations      map[string]struct{}
}

// Input is the transfer intent evaluated against the policy. A nil Amount
// means the caller supplied none; malformed input becomes violations, never
// an error.
type Input struct {
	Amount          *decimal.Decimal
	FromToken       string
	ToToken         string
	Recipient       string
	IdempotencyKey  string
	DestinationHint string
}

// Violation is one failed policy rule.
type Violation struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Context echoes the evaluated facts back to the caller.
type Context struct {
	Corridor        string           `json:"corridor,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	MaxAmount       decimal.Decimal  `json:"max_amount"`
	DestinationHint string           `json:"destination_hint,omitempty"`
}

// Decision is the outcome of one evaluation. It enumerates every violated
// rule so a caller can fix all issues before resubmitting.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations"`
	Context    Context     `json:"context"`
}

// Evaluate checks a transfer intent against the configured limits. It is
// pure and total: identical input yields an identical decision, and no input
// makes it panic or error. All rules run; violations append in rule order.
func Evaluate(in Input, cfg Config) Decision {
	violations := []Violation{}

	corridor := ""
	if strings.TrimSpace(in.FromToken) != "" && strings.TrimSpace(in.ToToken) != "" {
		corridor = domain.Corridor(in.FromToken, in.ToToken)
	}

	amountPresent := in.Amount != nil && in.Amount.IsPositive()
	if !amountPresent {
		violations = append(violations, Violation{
			Code:    CodeAmountRequired,
			Field:   "amount",
			Message: "amount is required and must be greater than zero",
		})
	} else {
		if in.Amount.GreaterThan(cfg.MaxAmount) {
			violations = append(violations, Violation{
				Code:    CodeMaxAmountExceeded,
				Field:   "amount",
				Message: fmt.Sprintf("amount exceeds max transfer policy (%s)", cfg.MaxAmount),
				Meta: map[string]any{
					"max_amount":      cfg.MaxAmount.String(),
					"received_amount": in.Amount.String(),
				},
			})
		}
		currency := strings.ToUpper(strings.TrimSpace(in.FromToken))
		if ceiling, ok := cfg.MaxAmountPerCurrency[currency]; ok && in.Amount.GreaterThan(ceiling) {
			violations = append(violations, Violation{
				Code:    CodeCurrencyMaxExceeded,
				Field:   "amount",
				Message: fmt.Sprintf("amount exceeds per-currency ceiling for %s (%s)", currency, ceiling),
				Meta: map[string]any{
					"currency":        currency,
					"currency_max":    ceiling.String(),
					"received_amount": in.Amount.String(),
				},
			})
		}
	}

	if _, ok := cfg.AllowedCorridors[corridor]; corridor == "" || !ok {
		violations = append(violations, Violation{
			Code:    CodeCorridorNotAllowed,
			Field:   "from_token,to_token",
			Message: "transfer corridor is not allowed",
			Meta: map[string]any{
				"allowed_corridors":  sortedKeys(cfg.AllowedCorridors),
				"requested_corridor": corridor,
			},
		})
	}

	if hint := strings.ToLower(strings.TrimSpace(in.DestinationHint)); hint != "" {
		if _, flagged := cfg.RiskDestinations[hint]; flagged {
			violations = append(violations, Violation{
				Code:    CodeRiskDestination,
				Field:   "destination_hint",
				Message: "destination is flagged for manual risk review",
				Meta:    map[string]any{"destination_hint": hint},
			})
		}
	}

	if cfg.RequireRecipient && strings.TrimSpace(in.Recipient) == "" {
		violations = append(violations, Violation{
			Code:    CodeRecipientRequired,
			Field:   "recipient",
			Message: "recipient is required",
		})
	}

	if cfg.RequireIdempotencyKey && strings.TrimSpace(in.IdempotencyKey) == "" {
		violations = append(violations, Violation{
			Code:    CodeIdempotencyKeyMissing,
			Field:   "idempotency_key",
			Message: "idempotency key is required",
		})
	}

	return Decision{
		Allowed:    len(violations) == 0,
		Violations: violations,
		Context: Context{
			Corridor:        corridor,
			Amount:          in.Amount,
			MaxAmount:       cfg.MaxAmount,
			DestinationHint: in.DestinationHint,
		},
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
