package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxAmount: decimal.NewFromInt(1000),
		MaxAmountPerCurrency: map[string]decimal.Decimal{
			"EUR": decimal.NewFromInt(500),
		},
		AllowedCorridors: map[string]struct{}{
			"USD->PHP": {},
			"EUR->NGN": {},
			"GBP->KES": {},
		},
		RequireRecipient:      true,
		RequireIdempotencyKey: true,
		RiskDestinations: map[string]struct{}{
			"sanctionedland": {},
		},
	}
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestEvaluateValidTransferPassesCleanly(t *testing.T) {
	in := Input{
		Amount:         amount(100),
		FromToken:      "USD",
		ToToken:        "PHP",
		Recipient:      "maria",
		IdempotencyKey: "idem_123",
	}

	decision := Evaluate(in, testConfig())
	require.True(t, decision.Allowed)
	require.Empty(t, decision.Violations)
	require.Equal(t, "USD->PHP", decision.Context.Corridor)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	in := Input{
		Amount:          amount(5000),
		FromToken:       "usd",
		ToToken:         "chf",
		DestinationHint: "SanctionedLand",
	}
	cfg := testConfig()

	first := Evaluate(in, cfg)
	second := Evaluate(in, cfg)
	require.Equal(t, first, second)
}

func TestEvaluateReportsAllViolations(t *testing.T) {
	in := Input{
		Amount:         amount(5000),
		FromToken:      "USD",
		ToToken:        "CHF",
		Recipient:      "maria",
		IdempotencyKey: "idem_123",
	}

	decision := Evaluate(in, testConfig())
	require.False(t, decision.Allowed)
	require.Equal(t, []string{CodeMaxAmountExceeded, CodeCorridorNotAllowed}, codes(decision))
}

func TestEvaluateGlobalAndCurrencyCeilingsBothFire(t *testing.T) {
	in := Input{
		Amount:         amount(2000),
		FromToken:      "eur",
		ToToken:        "ngn",
		Recipient:      "ade",
		IdempotencyKey: "idem_456",
	}

	decision := Evaluate(in, testConfig())
	require.False(t, decision.Allowed)
	require.Equal(t, []string{CodeMaxAmountExceeded, CodeCurrencyMaxExceeded}, codes(decision))
}

func TestEvaluateMissingAmountSkipsCeilingChecks(t *testing.T) {
	cases := []struct {
		name   string
		amount *decimal.Decimal
	}{
		{name: "nil", amount: nil},
		{name: "zero", amount: amount(0)},
		{name: "negative", amount: amount(-5)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			decision := Evaluate(Input{
				Amount:         tc.amount,
				FromToken:      "EUR",
				ToToken:        "NGN",
				Recipient:      "ade",
				IdempotencyKey: "idem_789",
			}, testConfig())

			require.False(t, decision.Allowed)
			require.Equal(t, []string{CodeAmountRequired}, codes(decision))
		})
	}
}

func TestEvaluateMissingCurrenciesFailCorridorCheck(t *testing.T) {
	decision := Evaluate(Input{
		Amount:         amount(10),
		FromToken:      "USD",
		Recipient:      "maria",
		IdempotencyKey: "idem_a",
	}, testConfig())

	require.False(t, decision.Allowed)
	require.Equal(t, []string{CodeCorridorNotAllowed}, codes(decision))
	require.Empty(t, decision.Context.Corridor)
}

func TestEvaluateRiskDestination(t *testing.T) {
	decision := Evaluate(Input{
		Amount:          amount(10),
		FromToken:       "USD",
		ToToken:         "PHP",
		Recipient:       "maria",
		IdempotencyKey:  "idem_b",
		DestinationHint: "SanctionedLand",
	}, testConfig())

	require.False(t, decision.Allowed)
	require.Equal(t, []string{CodeRiskDestination}, codes(decision))
}

func TestEvaluateRequiredFields(t *testing.T) {
	decision := Evaluate(Input{
		Amount:         amount(10),
		FromToken:      "USD",
		ToToken:        "PHP",
		Recipient:      "   ",
		IdempotencyKey: "",
	}, testConfig())

	require.False(t, decision.Allowed)
	require.Equal(t, []string{CodeRecipientRequired, CodeIdempotencyKeyMissing}, codes(decision))
}

func TestEvaluateOptionalRequirementsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RequireRecipient = false
	cfg.RequireIdempotencyKey = false

	decision := Evaluate(Input{
		Amount:    amount(10),
		FromToken: "USD",
		ToToken:   "PHP",
	}, cfg)

	require.True(t, decision.Allowed)
}

func codes(decision Decision) []string {
	out := make([]string, 0, len(decision.Violations))
	for _, v := range decision.Violations {
		out = append(out, v.Code)
	}
	return out
}
