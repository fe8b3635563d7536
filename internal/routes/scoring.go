package routes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Weights applied to each normalized route factor. They sum to 1.
const (
	weightRate      = 0.40
	weightSlippage  = 0.20
	weightGas       = 0.15
	weightETA       = 0.10
	weightLiquidity = 0.15
)

const strategyName = "weighted-score(rate, slippage, gas, eta, liquidity)"

// Candidate describes one settlement path through a corridor.
type Candidate struct {
	ID             string  `json:"id"`
	Route          string  `json:"route"`
	Rate           float64 `json:"rate"`
	SlippageBps    float64 `json:"slippageBps"`
	GasUSD         float64 `json:"gasUsd"`
	ETASeconds     int     `json:"etaSeconds"`
	LiquidityDepth float64 `json:"liquidityDepth"`
}

// FactorSet carries one value per scoring factor.
type FactorSet struct {
	Rate           float64 `json:"rate"`
	SlippageBps    float64 `json:"slippageBps"`
	GasUSD         float64 `json:"gasUsd"`
	ETASeconds     float64 `json:"etaSeconds"`
	LiquidityDepth float64 `json:"liquidityDepth"`
}

// ScoreBreakdown explains how a route's score was produced.
type ScoreBreakdown struct {
	Weights    FactorSet `json:"weights"`
	Normalized FactorSet `json:"normalized"`
	Weighted   FactorSet `json:"weighted"`
}

// ScoredRoute is a candidate annotated with its weighted score and
// the amounts a sender would see.
type ScoredRoute struct {
	Candidate        Candidate       `json:"candidate"`
	Score            float64         `json:"score"`
	EstimatedReceive decimal.Decimal `json:"estimatedReceive"`
	Fee              decimal.Decimal `json:"fee"`
	ETASeconds       int             `json:"etaSeconds"`
	Breakdown        ScoreBreakdown  `json:"breakdown"`
}

// Quote is the result of scoring every candidate for a corridor.
type Quote struct {
	BestRoute    ScoredRoute   `json:"bestRoute"`
	Alternatives []ScoredRoute `json:"alternatives"`
	Explanation  Explanation   `json:"explanation"`
}

type Explanation struct {
	Corridor         string    `json:"corridor"`
	Strategy         string    `json:"strategy"`
	ConsideredRoutes int       `json:"consideredRoutes"`
	Weights          FactorSet `json:"weights"`
}

var corridorCandidates = map[string][]Candidate{
	"USD->PHP": {
		{ID: "r1", Route: "celo->mento->gcash", Rate: 56.15, SlippageBps: 20, GasUSD: 0.11, ETASeconds: 42, LiquidityDepth: 680000},
		{ID: "r2", Route: "celo->bridge-x->gcash", Rate: 56.0, SlippageBps: 15, GasUSD: 0.2, ETASeconds: 55, LiquidityDepth: 720000},
		{ID: "r3", Route: "celo->partner-liquidity->bank", Rate: 55.9, SlippageBps: 12, GasUSD: 0.17, ETASeconds: 60, LiquidityDepth: 750000},
	},
	"EUR->NGN": {
		{ID: "r4", Route: "celo->mento->local-ramp", Rate: 1684, SlippageBps: 25, GasUSD: 0.12, ETASeconds: 48, LiquidityDepth: 980000},
		{ID: "r5", Route: "celo->bridge-x->local-ramp", Rate: 1688, SlippageBps: 38, GasUSD: 0.22, ETASeconds: 70, LiquidityDepth: 1300000},
		{ID: "r6", Route: "celo->otc-partner->local-ramp", Rate: 1679, SlippageBps: 10, GasUSD: 0.26, ETASeconds: 90, LiquidityDepth: 1700000},
	},
	"GBP->KES": {
		{ID: "r7", Route: "celo->mento->mpesa", Rate: 163.8, SlippageBps: 16, GasUSD: 0.1, ETASeconds: 40, LiquidityDepth: 760000},
		{ID: "r8", Route: "celo->bridge-x->mpesa", Rate: 164.0, SlippageBps: 30, GasUSD: 0.18, ETASeconds: 58, LiquidityDepth: 980000},
		{ID: "r9", Route: "celo->liquidity-hub->bank", Rate: 163.2, SlippageBps: 8, GasUSD: 0.2, ETASeconds: 75, LiquidityDepth: 1100000},
	},
}

var fallbackCandidates = []Candidate{
	{ID: "fallback-1", Route: "celo->mento->destination", Rate: 1, SlippageBps: 20, GasUSD: 0.12, ETASeconds: 45, LiquidityDepth: 100000},
}

func corridorKey(fromToken, toToken string) string {
	return strings.ToUpper(fromToken) + "->" + strings.ToUpper(toToken)
}

// CandidatesFor returns the candidate routes for a corridor. Corridors
// without curated candidates get a single generic fallback route.
func CandidatesFor(fromToken, toToken string) []Candidate {
	if candidates, ok := corridorCandidates[corridorKey(fromToken, toToken)]; ok {
		return candidates
	}
	return fallbackCandidates
}

// normalize maps value onto [0,1] within [min,max]. When every candidate
// shares the same value the factor carries no signal and scores as 1.
func normalize(value, min, max float64, higherIsBetter bool) float64 {
	if max == min {
		return 1
	}
	if higherIsBetter {
		return (value - min) / (max - min)
	}
	return (max - value) / (max - min)
}

func weights() FactorSet {
	return FactorSet{
		Rate:           weightRate,
		SlippageBps:    weightSlippage,
		GasUSD:         weightGas,
		ETASeconds:     weightETA,
		LiquidityDepth: weightLiquidity,
	}
}

func estimateReceive(amount decimal.Decimal, candidate Candidate) decimal.Decimal {
	gross := amount.Mul(decimal.NewFromFloat(candidate.Rate))
	slippageLoss := gross.Mul(decimal.NewFromFloat(candidate.SlippageBps)).Div(decimal.NewFromInt(10000))
	net := gross.Sub(slippageLoss).Sub(decimal.NewFromFloat(candidate.GasUSD))
	if net.IsNegative() {
		return decimal.Zero
	}
	return net.Round(6)
}

// Score evaluates every candidate route for the corridor and ranks them
// by a weighted sum of min-max normalized factors. Rate and liquidity
// score higher when larger; slippage, gas, and ETA when smaller.
func Score(fromToken, toToken string, amount decimal.Decimal) Quote {
	candidates := CandidatesFor(fromToken, toToken)

	var minRate, maxRate = bounds(candidates, func(c Candidate) float64 { return c.Rate })
	var minSlip, maxSlip = bounds(candidates, func(c Candidate) float64 { return c.SlippageBps })
	var minGas, maxGas = bounds(candidates, func(c Candidate) float64 { return c.GasUSD })
	var minETA, maxETA = bounds(candidates, func(c Candidate) float64 { return float64(c.ETASeconds) })
	var minLiq, maxLiq = bounds(candidates, func(c Candidate) float64 { return c.LiquidityDepth })

	scored := make([]ScoredRoute, 0, len(candidates))
	for _, candidate := range candidates {
		normalized := FactorSet{
			Rate:           normalize(candidate.Rate, minRate, maxRate, true),
			SlippageBps:    normalize(candidate.SlippageBps, minSlip, maxSlip, false),
			GasUSD:         normalize(candidate.GasUSD, minGas, maxGas, false),
			ETASeconds:     normalize(float64(candidate.ETASeconds), minETA, maxETA, false),
			LiquidityDepth: normalize(candidate.LiquidityDepth, minLiq, maxLiq, true),
		}
		weighted := FactorSet{
			Rate:           normalized.Rate * weightRate,
			SlippageBps:    normalized.SlippageBps * weightSlippage,
			GasUSD:         normalized.GasUSD * weightGas,
			ETASeconds:     normalized.ETASeconds * weightETA,
			LiquidityDepth: normalized.LiquidityDepth * weightLiquidity,
		}
		score := weighted.Rate + weighted.SlippageBps + weighted.GasUSD + weighted.ETASeconds + weighted.LiquidityDepth

		scored = append(scored, ScoredRoute{
			Candidate:        candidate,
			Score:            score,
			EstimatedReceive: estimateReceive(amount, candidate),
			Fee:              decimal.NewFromFloat(candidate.GasUSD).Round(2),
			ETASeconds:       candidate.ETASeconds,
			Breakdown: ScoreBreakdown{
				Weights:    weights(),
				Normalized: normalized,
				Weighted:   weighted,
			},
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	return Quote{
		BestRoute:    scored[0],
		Alternatives: scored,
		Explanation: Explanation{
			Corridor:         corridorKey(fromToken, toToken),
			Strategy:         strategyName,
			ConsideredRoutes: len(candidates),
			Weights:          weights(),
		},
	}
}

// QuoteID derives a stable identifier from the quote's semantic
// content, so re-quoting the same request yields the same id.
func QuoteID(fromToken, toToken string, amount decimal.Decimal, route string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s-%s", fromToken, toToken, amount.String(), route)))
	return "qt_" + hex.EncodeToString(sum[:])[:10]
}

func bounds(candidates []Candidate, pick func(Candidate) float64) (min, max float64) {
	min, max = pick(candidates[0]), pick(candidates[0])
	for _, c := range candidates[1:] {
		v := pick(c)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
