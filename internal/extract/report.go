package extract

import (
	"strings"
	"time"

	"github.com/kavach-labs/kavach/pkg/models"
)

// Report summarizes the intelligence gathered during one session for
// downstream reviewers. Only masked values appear here.
type Report struct {
	SessionID   string                                 `json:"session_id"`
	GeneratedAt time.Time                              `json:"generated_at"`
	Total       int                                    `json:"total_entities"`
	HighConf    int                                    `json:"high_confidence_entities"`
	ByType      map[models.EntityType][]ReportedEntity `json:"entities_by_type"`
	Indicators  []string                               `json:"fraud_indicators"`
	RiskScore   float64                                `json:"risk_score"`
	RiskLevel   models.ThreatLevel                     `json:"risk_level"`
	Actions     []string                               `json:"recommended_actions"`
}

// ReportedEntity is the reviewer-facing projection of an extracted entity.
type ReportedEntity struct {
	Masked     string  `json:"masked"`
	Confidence float64 `json:"confidence"`
	Sequence   int64   `json:"sequence"`
}

var indicatorPatterns = map[string][]string{
	"request_otp":          {"otp bataiye", "otp do", "code batao", "share the otp", "tell me the otp"},
	"request_upi_pin":      {"upi pin", "pin batao", "pin do", "share your pin"},
	"request_card_details": {"card number", "cvv", "expiry date", "atm card"},
	"urgency_pressure":     {"jaldi", "abhi", "immediately", "urgent", "right now"},
	"secrecy":              {"kisi ko mat batana", "secret", "confidential", "don't tell"},
	"remote_access":        {"anydesk", "teamviewer", "screen share", "remote", "download app"},
	"threats":              {"arrest", "jail", "police", "case", "court", "legal action"},
	"advance_fee":          {"processing fee", "security deposit", "advance payment"},
}

// BuildReport correlates a session's entities and transcript into a report.
func BuildReport(sessionID string, entities []models.ExtractedEntity, transcript []models.TranscriptEntry) Report {
	byType := make(map[models.EntityType][]ReportedEntity)
	highConf := 0
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], ReportedEntity{
			Masked:     e.Masked,
			Confidence: e.Confidence,
			Sequence:   e.Sequence,
		})
		if e.Confidence > 0.7 {
			highConf++
		}
	}

	var full strings.Builder
	for _, t := range transcript {
		full.WriteString(strings.ToLower(t.Text))
		full.WriteByte('\n')
	}
	indicators := fraudIndicators(full.String())

	risk := riskScore(entities, indicators)

	return Report{
		SessionID:   sessionID,
		GeneratedAt: time.Now().UTC(),
		Total:       len(entities),
		HighConf:    highConf,
		ByType:      byType,
		Indicators:  indicators,
		RiskScore:   risk,
		RiskLevel:   riskLevel(risk),
		Actions:     recommendActions(risk, byType),
	}
}

func fraudIndicators(lower string) []string {
	var out []string
	for indicator, patterns := range indicatorPatterns {
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				out = append(out, indicator)
				break
			}
		}
	}
	// Map iteration order is unstable; reports should be reproducible.
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func riskScore(entities []models.ExtractedEntity, indicators []string) float64 {
	score := 0.0
	for _, e := range entities {
		switch e.Type {
		case models.EntityPaymentHandle, models.EntityPhoneNumber,
			models.EntityBankAccount, models.EntityBankRoutingCode:
			if e.Confidence > 0.5 {
				score += 0.15
			}
		}
	}
	score += float64(len(indicators)) * 0.1
	if score > 1 {
		score = 1
	}
	return score
}

func riskLevel(score float64) models.ThreatLevel {
	switch {
	case score >= 0.8:
		return models.ThreatLevelCritical
	case score >= 0.6:
		return models.ThreatLevelHigh
	case score >= 0.4:
		return models.ThreatLevelMedium
	case score > 0:
		return models.ThreatLevelLow
	default:
		return models.ThreatLevelSafe
	}
}

func recommendActions(risk float64, byType map[models.EntityType][]ReportedEntity) []string {
	var actions []string
	if risk >= 0.8 {
		actions = append(actions, "immediate_report_to_authorities")
	}
	if len(byType[models.EntityPaymentHandle]) > 0 {
		actions = append(actions, "flag_payment_handles")
	}
	if len(byType[models.EntityPhoneNumber]) > 0 {
		actions = append(actions, "trace_phone_numbers")
	}
	if len(byType[models.EntityBankAccount]) > 0 || len(byType[models.EntityBankRoutingCode]) > 0 {
		actions = append(actions, "notify_banks")
	}
	if len(actions) == 0 {
		actions = append(actions, "continue_monitoring")
	}
	return actions
}
