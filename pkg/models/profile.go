package models

import "time"

// ScammerProfile aggregates identifiers seen across sessions. Correlated
// post-hoc from the identifier sets exposed by assembled evidence packages.
type ScammerProfile struct {
	ProfileID      string      `json:"profile_id"`
	PhoneNumbers   []string    `json:"phone_numbers"`
	PaymentHandles []string    `json:"payment_handles"`
	BankAccounts   []string    `json:"bank_accounts"`
	FirstSeen      time.Time   `json:"first_seen"`
	LastSeen       time.Time   `json:"last_seen"`
	CallCount      int64       `json:"call_count"`
	ReportCount    int64       `json:"report_count"`
	RiskScore      float64     `json:"risk_score"`
	RiskLevel      ThreatLevel `json:"risk_level"`
}
