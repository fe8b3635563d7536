package routes

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestScoreRanksRoutesByWeightedScore(t *testing.T) {
	quote := Score("USD", "PHP", decimal.NewFromInt(100))

	require.Len(t, quote.Alternatives, 3)
	require.Equal(t, 3, quote.Explanation.ConsideredRoutes)
	require.Equal(t, "USD->PHP", quote.Explanation.Corridor)
	require.Equal(t, quote.Alternatives[0], quote.BestRoute)

	for i := 1; i < len(quote.Alternatives); i++ {
		require.GreaterOrEqual(t, quote.Alternatives[i-1].Score, quote.Alternatives[i].Score)
	}
}

func TestScoreWeightsSumToOne(t *testing.T) {
	w := weights()
	sum := w.Rate + w.SlippageBps + w.GasUSD + w.ETASeconds + w.LiquidityDepth
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestEstimateReceiveDeductsSlippageAndGas(t *testing.T) {
	candidate := Candidate{Rate: 56.15, SlippageBps: 20, GasUSD: 0.11}

	got := estimateReceive(decimal.NewFromInt(100), candidate)

	// 100 * 56.15 = 5615; slippage 20bps = 11.23; minus gas 0.11.
	want := decimal.RequireFromString("5603.66")
	require.True(t, want.Equal(got), "want %s got %s", want, got)
}

func TestEstimateReceiveNeverNegative(t *testing.T) {
	candidate := Candidate{Rate: 1, SlippageBps: 0, GasUSD: 5}

	got := estimateReceive(decimal.NewFromInt(1), candidate)

	require.True(t, got.Equal(decimal.Zero), "got %s", got)
}

func TestScoreUnknownCorridorUsesFallbackRoute(t *testing.T) {
	quote := Score("CHF", "JPY", decimal.NewFromInt(50))

	require.Len(t, quote.Alternatives, 1)
	require.Equal(t, "fallback-1", quote.BestRoute.Candidate.ID)
	require.Equal(t, "celo->mento->destination", quote.BestRoute.Candidate.Route)
	// A single candidate normalizes every factor to 1, so the score is the weight sum.
	require.InDelta(t, 1.0, quote.BestRoute.Score, 1e-9)
}

func TestScoreCorridorKeyIsCaseInsensitive(t *testing.T) {
	upper := Score("GBP", "KES", decimal.NewFromInt(100))
	lower := Score("gbp", "kes", decimal.NewFromInt(100))

	require.Equal(t, upper.BestRoute.Candidate.ID, lower.BestRoute.Candidate.ID)
	require.Equal(t, "GBP->KES", lower.Explanation.Corridor)
}

func TestScoreFeeMatchesGasCost(t *testing.T) {
	quote := Score("EUR", "NGN", decimal.NewFromInt(200))

	for _, alt := range quote.Alternatives {
		require.True(t, decimal.NewFromFloat(alt.Candidate.GasUSD).Round(2).Equal(alt.Fee))
	}
}
