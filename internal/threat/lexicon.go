// Package threat provides the incremental threat-scoring engine for call sessions.
package threat

import (
	"regexp"
	"sort"
	"strings"
)

// Keyword categories tuned for phone-fraud patterns. Category weights are
// applied per match and saturate at 1.0.
var scamKeywords = map[string][]string{
	"urgent": {
		"immediate action required", "act now", "limited time", "urgent",
		"emergency", "last chance", "today only", "right now",
	},
	"financial": {
		"bank account", "credit card", "debit card", "upi", "paytm",
		"google pay", "phonepe", "otp", "pin", "password", "cvv",
		"expiry date", "account number", "ifsc code",
	},
	"impersonation": {
		"reserve bank of india", "rbi", "income tax department", "cyber crime",
		"police department", "cbi", "enforcement directorate",
		"customs department", "narcotics bureau", "your bank",
		"your insurance company", "this is the bank",
	},
	"threats": {
		"arrest warrant", "legal action", "court case", "fir",
		"police complaint", "account frozen", "account blocked",
		"account is blocked", "account is frozen",
		"sim card blocked", "pan card blocked",
	},
	"remote_access": {
		"anydesk", "teamviewer", "quick support", "screen sharing",
		"remote access", "install app", "download software",
	},
	"verification": {
		"kyc verification", "kyc update", "aadhaar verification",
		"pan verification", "document verification", "verify your identity",
	},
	"prize": {
		"you have won", "lottery", "lucky draw", "prize money",
		"cash prize", "free gift", "congratulations",
	},
}

var categoryWeights = map[string]float64{
	"urgent":        0.15,
	"financial":     0.20,
	"impersonation": 0.25,
	"threats":       0.25,
	"remote_access": 0.20,
	"verification":  0.15,
	"prize":         0.20,
}

var behavioralFlags = map[string][]string{
	"high_pressure": {"must", "immediately", "now", "urgent", "hurry"},
	"secrecy":       {"don't tell anyone", "keep it secret", "confidential", "don't discuss"},
	"isolation":     {"don't contact bank", "don't call police", "don't tell family"},
}

var (
	categoryPatterns = compileCategories()

	// categoryOrder and flagOrder fix iteration order so indicators and
	// behavioral flags on score events are reproducible for identical
	// fragments.
	categoryOrder = sortedKeys(scamKeywords)
	flagOrder     = sortedKeys(behavioralFlags)
)

func compileCategories() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(scamKeywords))
	for category, words := range scamKeywords {
		escaped := make([]string, len(words))
		for i, w := range words {
			escaped[i] = regexp.QuoteMeta(w)
		}
		// Word boundaries keep short tokens like "fir", "pin", and "rbi"
		// from firing inside unrelated words.
		out[category] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(escaped, "|") + `)\b`)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// lexicalResult is the outcome of keyword spotting over one fragment.
type lexicalResult struct {
	score      float64
	categories []string
	keywords   []string
	indicators []string
}

// spotKeywords scores a fragment by category-weighted keyword counts with a
// multi-category bonus, saturating at 1.0.
func spotKeywords(text string) lexicalResult {
	var res lexicalResult
	for _, category := range categoryOrder {
		matches := categoryPatterns[category].FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		res.keywords = append(res.keywords, matches...)
		res.categories = append(res.categories, category)
		res.indicators = append(res.indicators, category+"_keywords_detected")
		res.score += categoryWeights[category] * float64(len(matches))
	}

	if len(res.categories) >= 2 {
		res.score += 0.1 * float64(len(res.categories))
		res.indicators = append(res.indicators, "multiple_threat_categories")
	}

	if res.score > 1 {
		res.score = 1
	}
	return res
}

// analyzeBehavior scores pressure, secrecy, and isolation flags plus
// repetitive-speech patterns.
func analyzeBehavior(text string) (float64, []string) {
	lower := strings.ToLower(text)
	var flags []string
	score := 0.0

	for _, flag := range flagOrder {
		for _, p := range behavioralFlags[flag] {
			if strings.Contains(lower, p) {
				flags = append(flags, flag)
				score += 0.15
				break
			}
		}
	}

	words := strings.Fields(lower)
	if len(words) > 10 {
		unique := make(map[string]bool, len(words))
		for _, w := range words {
			unique[w] = true
		}
		if float64(len(unique))/float64(len(words)) < 0.4 {
			flags = append(flags, "repetitive_speech")
			score += 0.1
		}
	}

	if score > 1 {
		score = 1
	}
	return score, flags
}
