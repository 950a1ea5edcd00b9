package models

import "time"

// SubmissionStatus is the review lifecycle of an evidence package. Transitions
// are monotonic and forward-only; non-adjacent jumps are rejected.
type SubmissionStatus string

const (
	StatusPending      SubmissionStatus = "pending"
	StatusSubmitted    SubmissionStatus = "submitted"
	StatusUnderReview  SubmissionStatus = "under_review"
	StatusAcknowledged SubmissionStatus = "acknowledged"
	StatusResolved     SubmissionStatus = "resolved"
	StatusRejected     SubmissionStatus = "rejected"
)

// CanTransition reports whether moving to next is a valid adjacent step.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusSubmitted
	case StatusSubmitted:
		return next == StatusUnderReview
	case StatusUnderReview:
		return next == StatusAcknowledged || next == StatusResolved || next == StatusRejected
	}
	return false
}

// CustodyEntry is one append-only record in a package's chain of custody.
type CustodyEntry struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Signature is the key-management collaborator's attestation over a package hash.
type Signature struct {
	Algorithm string    `json:"algorithm"`
	Value     string    `json:"value"`
	SignedBy  string    `json:"signed_by"`
	SignedAt  time.Time `json:"signed_at"`
}

// EvidencePackage is the tamper-evident artifact produced exactly once per
// session at the terminal transition. Immutable after signing except for
// appended custody entries and status transitions.
type EvidencePackage struct {
	PackageID string `json:"package_id"`
	SessionID string `json:"session_id"`

	PhoneID     string        `json:"phone_id"`
	Direction   CallDirection `json:"direction"`
	ThreatLevel ThreatLevel   `json:"threat_level"`
	PeakScore   float64       `json:"peak_score"`
	DurationSec int64         `json:"duration_seconds"`

	AudioHash      string `json:"audio_hash"`
	TranscriptHash string `json:"transcript_hash"`
	EntityHash     string `json:"entity_hash"`
	PackageHash    string `json:"package_hash"`

	Transcript []TranscriptEntry `json:"transcript"`
	Entities   []ExtractedEntity `json:"entities"`

	Signature Signature      `json:"signature"`
	Custody   []CustodyEntry `json:"chain_of_custody"`

	Status    SubmissionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// Identifiers returns the correlatable identifier set (payment handles, phone
// numbers, bank accounts) for post-hoc scammer-profile matching. Masked forms
// are used for high-sensitivity types so the set is safe to index.
func (p *EvidencePackage) Identifiers() []ExtractedEntity {
	out := make([]ExtractedEntity, 0, len(p.Entities))
	for _, e := range p.Entities {
		switch e.Type {
		case EntityPaymentHandle, EntityPhoneNumber, EntityBankAccount:
			out = append(out, e)
		}
	}
	return out
}
