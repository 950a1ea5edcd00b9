package models

// EntityType is the closed set of recognizable entity kinds. New types require
// a deliberate recognizer and masking-policy decision, so this stays a fixed
// enumeration rather than an open hierarchy.
type EntityType string

const (
	EntityPaymentHandle   EntityType = "payment_handle"
	EntityPhoneNumber     EntityType = "phone_number"
	EntityBankAccount     EntityType = "bank_account"
	EntityNationalID      EntityType = "national_id"
	EntityTaxID           EntityType = "tax_id"
	EntityCardNumber      EntityType = "card_number"
	EntityOneTimeCode     EntityType = "one_time_code"
	EntityBankRoutingCode EntityType = "bank_routing_code"
	EntityPersonName      EntityType = "person_name"
	EntityLocation        EntityType = "location"
	EntityMonetaryAmount  EntityType = "monetary_amount"
	EntityEmail           EntityType = "email"
)

// HighSensitivity reports whether the unmasked value must never leave the
// signed evidence package.
func (t EntityType) HighSensitivity() bool {
	switch t {
	case EntityNationalID, EntityCardNumber, EntityOneTimeCode:
		return true
	}
	return false
}

// Specificity ranks types for overlap resolution: among equal-confidence
// overlapping candidates the more specific type wins.
func (t EntityType) Specificity() int {
	switch t {
	case EntityNationalID, EntityTaxID, EntityCardNumber, EntityBankRoutingCode:
		return 4
	case EntityPaymentHandle, EntityOneTimeCode, EntityEmail:
		return 3
	case EntityPhoneNumber, EntityBankAccount:
		return 2
	case EntityMonetaryAmount:
		return 1
	default:
		return 0
	}
}

// ExtractedEntity is a typed candidate found in a transcript fragment.
// Value carries the original text and is retained only inside the signed
// evidence package; Masked is the only form allowed in logs, events, and UI
// facing structures.
type ExtractedEntity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"-"`
	Masked     string     `json:"masked"`
	Confidence float64    `json:"confidence"`
	// Position is the rune offset of the match within its source fragment.
	Position int   `json:"position"`
	Sequence int64 `json:"sequence"`
	// Verified is set only by an external reviewer, never by the pipeline.
	Verified bool `json:"verified"`
}
