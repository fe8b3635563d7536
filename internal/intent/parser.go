package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// Language is a best-effort detection over the supported input languages.
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageSpanish    Language = "es"
	LanguagePortuguese Language = "pt"
	LanguageFrench     Language = "fr"
)

// Type classifies what the message is asking for.
type Type string

const (
	TypeTransfer Type = "transfer"
	TypeQuote    Type = "quote"
	TypeUnknown  Type = "unknown"
)

// Fields are the structured values extracted from free-form text.
type Fields struct {
	Amount          *float64 `json:"amount,omitempty"`
	SourceCurrency  string   `json:"sourceCurrency,omitempty"`
	TargetCurrency  string   `json:"targetCurrency,omitempty"`
	Recipient       string   `json:"recipient,omitempty"`
	DestinationHint string   `json:"destinationHint,omitempty"`
	Language        Language `json:"language"`
	RawText         string   `json:"rawText"`
}

// Result is a parsed message plus a confidence estimate and the
// questions needed to fill the gaps.
type Result struct {
	Intent                 Type     `json:"intent"`
	Confidence             float64  `json:"confidence"`
	Parsed                 Fields   `json:"parsed"`
	NeedsClarification     bool     `json:"needsClarification"`
	ClarificationQuestions []string `json:"clarificationQuestions"`
}

type languageHints struct {
	stopwords       []string
	keywords        []string
	transferPhrases []string
	quotePhrases    []string
}

var languageHintTable = map[Language]languageHints{
	LanguageEnglish: {
		stopwords:       []string{"the", "to", "for", "please", "with", "my"},
		keywords:        []string{"send", "transfer", "quote", "rate", "recipient"},
		transferPhrases: []string{"send", "transfer", "pay", "remit"},
		quotePhrases:    []string{"quote", "rate", "how much", "exchange"},
	},
	LanguageSpanish: {
		stopwords:       []string{"el", "la", "para", "por", "con", "mi", "quiero", "necesito"},
		keywords:        []string{"enviar", "transferir", "cotizar", "tasa", "destinatario", "quiero", "hacia"},
		transferPhrases: []string{"enviar", "transferir", "mandar", "pagar", "quiero enviar"},
		quotePhrases:    []string{"cotizar", "cotización", "tasa", "cambio", "quiero una cotización"},
	},
	LanguagePortuguese: {
		stopwords:       []string{"o", "a", "para", "por", "com", "meu", "preciso", "no"},
		keywords:        []string{"enviar", "transferir", "cotação", "taxa", "destinatário", "preciso", "câmbio"},
		transferPhrases: []string{"enviar", "transferir", "mandar", "pagar", "preciso transferir"},
		quotePhrases:    []string{"cotação", "cotar", "taxa", "câmbio", "qual a cotação"},
	},
	LanguageFrench: {
		stopwords:       []string{"le", "la", "pour", "avec", "mon", "vers"},
		keywords:        []string{"envoyer", "transférer", "devis", "taux", "destinataire"},
		transferPhrases: []string{"envoyer", "transférer", "payer", "remettre"},
		quotePhrases:    []string{"devis", "taux", "combien", "change"},
	},
}

// Detection order breaks ties deterministically when two languages
// score the same.
var languageOrder = []Language{LanguageEnglish, LanguageSpanish, LanguagePortuguese, LanguageFrench}

var currencyAliases = map[string]string{
	"usd":       "USD",
	"$":         "USD",
	"eur":       "EUR",
	"€":         "EUR",
	"gbp":       "GBP",
	"£":         "GBP",
	"php":       "PHP",
	"ngn":       "NGN",
	"kes":       "KES",
	"dollars":   "USD",
	"euro":      "EUR",
	"euros":     "EUR",
	"pounds":    "GBP",
	"shillings": "KES",
	"naira":     "NGN",
	"pesos":     "PHP",
}

var destinationHints = map[string]string{
	"philippines": "Philippines",
	"manila":      "Philippines",
	"nigeria":     "Nigeria",
	"lagos":       "Nigeria",
	"kenya":       "Kenya",
	"nairobi":     "Kenya",
}

// Hint lookup order keeps destination detection deterministic.
var destinationHintOrder = []string{"philippines", "manila", "nigeria", "lagos", "kenya", "nairobi"}

var (
	tokenSplitRe   = regexp.MustCompile(`[^\p{L}\p{N}€$£]+`)
	amountRe       = regexp.MustCompile(`(?:^|\s)(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d+)?|\d+(?:[.,]\d+)?)(?:\s|$)`)
	currencyPairRe = regexp.MustCompile(`(?i)([a-z€$£]{1,6})\s*(?:to|->|a|para|vers|em)\s*([a-z€$£]{1,6})`)
	recipientRe    = regexp.MustCompile(`(?i)(?:to|a|para|vers)\s+([@\w.-]{2,}|0x[a-fA-F0-9]{6,})`)
)

func tokenize(text string) []string {
	var tokens []string
	for _, token := range tokenSplitRe.Split(strings.ToLower(text), -1) {
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func detectLanguage(text string) Language {
	normalized := strings.ToLower(text)
	tokens := tokenize(text)

	best := LanguageEnglish
	bestScore := -1.0

	for _, language := range languageOrder {
		hints := languageHintTable[language]
		score := 0.0

		for _, token := range tokens {
			if contains(hints.stopwords, token) {
				score += 1.1
			}
			if contains(hints.keywords, token) {
				score += 2
			}
		}
		for _, phrase := range hints.transferPhrases {
			if strings.Contains(normalized, phrase) {
				score += 1.5
			}
		}
		for _, phrase := range hints.quotePhrases {
			if strings.Contains(normalized, phrase) {
				score += 1.5
			}
		}

		if score > bestScore {
			best = language
			bestScore = score
		}
	}

	return best
}

func parseAmount(text string) *float64 {
	match := amountRe.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	raw := match[1]
	var normalized string
	if strings.Contains(raw, ",") && strings.Contains(raw, ".") {
		normalized = strings.ReplaceAll(raw, ",", "")
	} else {
		normalized = strings.Replace(raw, ",", ".", 1)
	}

	parsed, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseCurrencies(text string) (source, target string) {
	tokens := tokenize(text)

	var detected []string
	seen := map[string]bool{}
	for _, token := range tokens {
		if code, ok := currencyAliases[token]; ok && !seen[code] {
			detected = append(detected, code)
			seen[code] = true
		}
	}

	if match := currencyPairRe.FindStringSubmatch(strings.ToLower(text)); match != nil {
		pairSource := currencyAliases[match[1]]
		pairTarget := currencyAliases[match[2]]
		if pairSource != "" || pairTarget != "" {
			if pairSource == "" && len(detected) > 0 {
				pairSource = detected[0]
			}
			if pairTarget == "" && len(detected) > 1 {
				pairTarget = detected[1]
			}
			return pairSource, pairTarget
		}
	}

	if len(detected) > 0 {
		source = detected[0]
	}
	if len(detected) > 1 {
		target = detected[1]
	}
	return source, target
}

func parseRecipient(text string) string {
	match := recipientRe.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return match[1]
}

func parseDestinationHint(text string) string {
	normalized := strings.ToLower(text)
	for _, key := range destinationHintOrder {
		if strings.Contains(normalized, key) {
			return destinationHints[key]
		}
	}
	return ""
}

func detectType(text string, language Language) Type {
	normalized := strings.ToLower(text)
	hints := languageHintTable[language]

	hasTransfer := false
	for _, phrase := range hints.transferPhrases {
		if strings.Contains(normalized, phrase) {
			hasTransfer = true
			break
		}
	}
	hasQuote := false
	for _, phrase := range hints.quotePhrases {
		if strings.Contains(normalized, phrase) {
			hasQuote = true
			break
		}
	}

	switch {
	case hasTransfer:
		return TypeTransfer
	case hasQuote:
		return TypeQuote
	default:
		return TypeUnknown
	}
}

// Parse extracts a structured transfer or quote request from free-form
// text. Confidence starts from the intent classification and grows with
// every field the parser manages to fill.
func Parse(input string) Result {
	language := detectLanguage(input)
	amount := parseAmount(input)
	source, target := parseCurrencies(input)
	recipient := parseRecipient(input)
	destinationHint := parseDestinationHint(input)
	intentType := detectType(input, language)

	var questions []string

	confidence := 0.62
	if intentType == TypeUnknown {
		confidence = 0.3
	}

	if amount != nil {
		confidence += 0.12
	} else {
		questions = append(questions, "What amount do you want to transfer?")
	}

	if source != "" {
		confidence += 0.08
	} else {
		questions = append(questions, "Which source currency should I use?")
	}

	if target != "" {
		confidence += 0.08
	} else {
		questions = append(questions, "Which target currency should the recipient get?")
	}

	if recipient != "" {
		confidence += 0.06
	} else if intentType == TypeTransfer {
		questions = append(questions, "Who is the recipient?")
	}

	if destinationHint != "" {
		confidence += 0.04
	}

	if source != "" && source == target {
		confidence -= 0.2
		questions = append(questions, "Source and target currencies look the same. Should I convert or keep the same currency?")
	}

	if intentType == TypeUnknown {
		questions = append([]string{"Do you want to transfer funds or request a quote?"}, questions...)
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 0.99 {
		confidence = 0.99
	}

	return Result{
		Intent:     intentType,
		Confidence: confidence,
		Parsed: Fields{
			Amount:          amount,
			SourceCurrency:  source,
			TargetCurrency:  target,
			Recipient:       recipient,
			DestinationHint: destinationHint,
			Language:        language,
			RawText:         input,
		},
		NeedsClarification:     len(questions) > 0,
		ClarificationQuestions: questions,
	}
}

// IdempotencyKey derives a stable key from the semantic content of a
// request, so retries of the same message map to the same transfer.
func IdempotencyKey(input string) string {
	sum := sha256.Sum256([]byte(input))
	return "idem_" + hex.EncodeToString(sum[:])[:16]
}
