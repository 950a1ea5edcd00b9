// Package extract provides structured-entity extraction from call transcripts.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kavach-labs/kavach/pkg/models"
)

// upiProviders is the provider-token whitelist for payment handles.
var upiProviders = []string{
	"paytm", "okaxis", "okhdfcbank", "okicici", "oksbi",
	"ybl", "apl", "okbizaxis", "payzapp", "ibl", "axl",
}

// recognizer pairs an entity type with its structural pattern.
type recognizer struct {
	entityType models.EntityType
	pattern    *regexp.Regexp
	// group selects the capture group holding the value (0 = whole match).
	group int
}

var recognizers = []recognizer{
	{models.EntityPaymentHandle, regexp.MustCompile(`(?i)\b[a-z0-9._-]+@(?:` + strings.Join(upiProviders, "|") + `)\b`), 0},
	{models.EntityEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), 0},
	{models.EntityBankRoutingCode, regexp.MustCompile(`(?i)\b[A-Z]{4}0[A-Z0-9]{6}\b`), 0},
	{models.EntityTaxID, regexp.MustCompile(`(?i)\b[A-Z]{5}[0-9]{4}[A-Z]\b`), 0},
	{models.EntityCardNumber, regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`), 0},
	{models.EntityNationalID, regexp.MustCompile(`\b\d{4}[\s-]\d{4}[\s-]\d{4}\b`), 0},
	{models.EntityPhoneNumber, regexp.MustCompile(`\b(?:\+91[\s-]?)?[6-9]\d{9}\b`), 0},
	{models.EntityBankAccount, regexp.MustCompile(`\b\d{9,18}\b`), 0},
	{models.EntityOneTimeCode, regexp.MustCompile(`\b\d{4,6}\b`), 0},
	{models.EntityMonetaryAmount, regexp.MustCompile(`(?i)\b\d{1,3}(?:,\d{2,3})*(?:\.\d+)?\s?(?:lakh|crore|thousand|rupees|rs\.?)\b`), 0},
	{models.EntityPersonName, regexp.MustCompile(`(?i)\b(?:my name is|this is|i am|myself)\s+([A-Za-z]+(?:\s[A-Za-z]+)?)`), 1},
	{models.EntityLocation, regexp.MustCompile(`(?i)\b(?:calling from|speaking from|based in|branch in)\s+([A-Za-z]+)`), 1},
}

// contextKeywords increase confidence when found near a candidate.
var contextKeywords = map[models.EntityType][]string{
	models.EntityPaymentHandle:   {"upi", "pay", "google pay", "phonepe", "paytm", "send money", "transfer"},
	models.EntityPhoneNumber:     {"call", "phone", "mobile", "number", "contact", "whatsapp"},
	models.EntityEmail:           {"email", "mail", "send", "id"},
	models.EntityBankAccount:     {"account", "bank", "transfer", "deposit", "ifsc"},
	models.EntityBankRoutingCode: {"ifsc", "branch", "bank code"},
	models.EntityNationalID:      {"aadhaar", "uid", "identity", "verification"},
	models.EntityTaxID:           {"pan", "permanent account number", "tax"},
	models.EntityOneTimeCode:     {"otp", "password", "code", "verification code", "pin"},
	models.EntityCardNumber:      {"card", "credit", "debit", "atm", "cvv"},
	models.EntityMonetaryAmount:  {"rupees", "rs", "amount", "money", "payment", "fee", "charge"},
	models.EntityPersonName:      {"officer", "speaking", "name"},
	models.EntityLocation:        {"city", "branch", "office", "station"},
}

const (
	baseConfidence   = 0.5
	contextBonusCap  = 0.3
	formatBonus      = 0.2
	falsePositiveHit = 0.3
	minConfidence    = 0.3
	contextWindow    = 50
)

// Extract runs every recognizer over the fragment and returns candidates
// ordered by position. Pure function: no internal state mutates across calls,
// so re-running extraction on the same fragment yields identical output.
func Extract(text string, sequence int64) []models.ExtractedEntity {
	if text == "" {
		return nil
	}

	var candidates []models.ExtractedEntity
	for _, rec := range recognizers {
		idxs := rec.pattern.FindAllStringSubmatchIndex(text, -1)
		for _, m := range idxs {
			start, end := m[2*rec.group], m[2*rec.group+1]
			if start < 0 || end <= start {
				continue
			}
			value := text[start:end]

			conf, ok := confidence(rec.entityType, value, context(text, start, end))
			if !ok || conf < minConfidence {
				// Unparseable or low-confidence candidates are dropped, never fatal.
				continue
			}

			candidates = append(candidates, models.ExtractedEntity{
				Type:       rec.entityType,
				Value:      value,
				Masked:     Mask(rec.entityType, value),
				Confidence: conf,
				Position:   start,
				Sequence:   sequence,
			})
		}
	}

	candidates = resolveOverlaps(candidates)
	candidates = deduplicate(candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Position < candidates[j].Position
	})
	return candidates
}

// context returns up to contextWindow characters either side of a match.
func context(text string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

// confidence combines pattern strength with surrounding-context keyword
// support. The bool result is false for candidates that match a pattern but
// fail structural parsing entirely.
func confidence(t models.EntityType, value, ctx string) (float64, bool) {
	conf := baseConfidence
	ctxLower := strings.ToLower(ctx)

	matches := 0
	for _, kw := range contextKeywords[t] {
		if strings.Contains(ctxLower, kw) {
			matches++
		}
	}
	bonus := float64(matches) * 0.1
	if bonus > contextBonusCap {
		bonus = contextBonusCap
	}
	conf += bonus

	switch t {
	case models.EntityPaymentHandle:
		if !validPaymentHandle(value) {
			return 0, false
		}
		conf += formatBonus
	case models.EntityPhoneNumber:
		if !validPhone(value) {
			return 0, false
		}
		conf += formatBonus
	case models.EntityEmail:
		if strings.Count(value, "@") == 1 {
			conf += formatBonus
		}
	case models.EntityPersonName, models.EntityLocation:
		// Capitalized captures read as genuine proper nouns.
		if value != "" && value[0] >= 'A' && value[0] <= 'Z' {
			conf += formatBonus
		}
	}

	if likelyFalsePositive(t, value, ctxLower) {
		conf -= falsePositiveHit
	}

	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf, true
}

func validPaymentHandle(v string) bool {
	parts := strings.Split(v, "@")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	provider := strings.ToLower(parts[1])
	for _, p := range upiProviders {
		if provider == p {
			return true
		}
	}
	return false
}

var nonDigit = regexp.MustCompile(`\D`)

func validPhone(v string) bool {
	digits := nonDigit.ReplaceAllString(v, "")
	if len(digits) == 10 {
		return digits[0] >= '6' && digits[0] <= '9'
	}
	return len(digits) == 12 && strings.HasPrefix(digits, "91")
}

// likelyFalsePositive suppresses candidates whose context indicates a
// different interpretation (years read as one-time codes, truncated numbers
// read as phones).
func likelyFalsePositive(t models.EntityType, value, ctxLower string) bool {
	switch t {
	case models.EntityOneTimeCode:
		for _, w := range []string{"date", "year", "jan", "feb", "mar", "apr"} {
			if strings.Contains(ctxLower, w) {
				return true
			}
		}
		if len(value) == 4 && (strings.HasPrefix(value, "19") || strings.HasPrefix(value, "20")) {
			return true
		}
	case models.EntityPhoneNumber:
		return len(nonDigit.ReplaceAllString(value, "")) < 10
	}
	return false
}

// resolveOverlaps keeps the higher-confidence candidate of any overlapping
// pair; equal confidence falls back to type specificity.
func resolveOverlaps(in []models.ExtractedEntity) []models.ExtractedEntity {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Confidence != in[j].Confidence {
			return in[i].Confidence > in[j].Confidence
		}
		return in[i].Type.Specificity() > in[j].Type.Specificity()
	})

	type span struct{ start, end int }
	var kept []models.ExtractedEntity
	var taken []span
	for _, c := range in {
		s := span{c.Position, c.Position + len(c.Value)}
		overlaps := false
		for _, t := range taken {
			if s.start < t.end && t.start < s.end {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		taken = append(taken, s)
		kept = append(kept, c)
	}
	return kept
}

// deduplicate drops repeated (type, value) pairs, keeping the first seen.
func deduplicate(in []models.ExtractedEntity) []models.ExtractedEntity {
	type key struct {
		t models.EntityType
		v string
	}
	seen := make(map[key]bool, len(in))
	out := in[:0]
	for _, e := range in {
		k := key{e.Type, strings.ToLower(e.Value)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}
