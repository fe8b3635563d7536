package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnglishTransfer(t *testing.T) {
	result := Parse("Send 150 USD to @maria in the Philippines")

	require.Equal(t, TypeTransfer, result.Intent)
	require.Equal(t, LanguageEnglish, result.Parsed.Language)
	require.NotNil(t, result.Parsed.Amount)
	require.Equal(t, 150.0, *result.Parsed.Amount)
	require.Equal(t, "USD", result.Parsed.SourceCurrency)
	require.Equal(t, "@maria", result.Parsed.Recipient)
	require.Equal(t, "Philippines", result.Parsed.DestinationHint)
}

func TestParseSpanishTransferDetectsLanguage(t *testing.T) {
	result := Parse("Quiero enviar 200 euros a @pedro en Nigeria")

	require.Equal(t, TypeTransfer, result.Intent)
	require.Equal(t, LanguageSpanish, result.Parsed.Language)
	require.Equal(t, "EUR", result.Parsed.SourceCurrency)
	require.Equal(t, "@pedro", result.Parsed.Recipient)
	require.Equal(t, "Nigeria", result.Parsed.DestinationHint)
}

func TestParseQuoteIntent(t *testing.T) {
	result := Parse("What is the rate for usd to php today?")

	require.Equal(t, TypeQuote, result.Intent)
	require.Equal(t, "USD", result.Parsed.SourceCurrency)
	require.Equal(t, "PHP", result.Parsed.TargetCurrency)
}

func TestParseCurrencyPairWithArrow(t *testing.T) {
	result := Parse("transfer 75 gbp -> kes for rent")

	require.Equal(t, "GBP", result.Parsed.SourceCurrency)
	require.Equal(t, "KES", result.Parsed.TargetCurrency)
	require.NotNil(t, result.Parsed.Amount)
	require.Equal(t, 75.0, *result.Parsed.Amount)
}

func TestParseAmountWithThousandsSeparator(t *testing.T) {
	result := Parse("send 1,250.50 dollars to @sam")

	require.NotNil(t, result.Parsed.Amount)
	require.Equal(t, 1250.50, *result.Parsed.Amount)
}

func TestParseUnknownIntentAsksForClarification(t *testing.T) {
	result := Parse("hello there")

	require.Equal(t, TypeUnknown, result.Intent)
	require.True(t, result.NeedsClarification)
	require.NotEmpty(t, result.ClarificationQuestions)
	require.Equal(t, "Do you want to transfer funds or request a quote?", result.ClarificationQuestions[0])
	require.Less(t, result.Confidence, 0.5)
}

func TestParseMissingFieldsCollectQuestions(t *testing.T) {
	result := Parse("send money")

	require.Equal(t, TypeTransfer, result.Intent)
	require.True(t, result.NeedsClarification)
	require.Contains(t, result.ClarificationQuestions, "What amount do you want to transfer?")
	require.Contains(t, result.ClarificationQuestions, "Which source currency should I use?")
	require.Contains(t, result.ClarificationQuestions, "Which target currency should the recipient get?")
	require.Contains(t, result.ClarificationQuestions, "Who is the recipient?")
}

func TestParseSameCurrencyPairLowersConfidence(t *testing.T) {
	same := Parse("send 100 usd to usd account @sam")
	distinct := Parse("send 100 usd to php account @sam")

	require.Contains(t, same.ClarificationQuestions,
		"Source and target currencies look the same. Should I convert or keep the same currency?")
	require.Less(t, same.Confidence, distinct.Confidence)
}

func TestParseCompleteTransferNeedsNoClarification(t *testing.T) {
	result := Parse("send 150 usd to php recipient @maria in manila")

	require.Equal(t, TypeTransfer, result.Intent)
	require.False(t, result.NeedsClarification)
	require.Empty(t, result.ClarificationQuestions)
	require.GreaterOrEqual(t, result.Confidence, 0.9)
}

func TestParseConfidenceIsCapped(t *testing.T) {
	result := Parse("send 150 usd to php recipient @maria in manila")

	require.LessOrEqual(t, result.Confidence, 0.99)
}

func TestIdempotencyKeyIsStable(t *testing.T) {
	first := IdempotencyKey("send 150 usd to @maria")
	second := IdempotencyKey("send 150 usd to @maria")
	other := IdempotencyKey("send 151 usd to @maria")

	require.Equal(t, first, second)
	require.NotEqual(t, first, other)
	require.Len(t, first, len("idem_")+16)
	require.True(t, len(first) > 5 && first[:5] == "idem_")
}
