package store

import (
	"time"

	"github.com/kavach-labs/kavach/pkg/models"
)

// EvidenceRecord is the persisted form of a signed evidence package. Content
// hashes and the signature are stored verbatim so integrity can be re-verified
// after a round trip.
type EvidenceRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	PackageID string `gorm:"uniqueIndex;not null"`
	SessionID string `gorm:"index;not null"`
	PhoneID   string `gorm:"index"`
	Direction string `gorm:"type:text"`

	ThreatLevel string  `gorm:"type:text;index"`
	PeakScore   float64 `gorm:"type:real"`
	DurationSec int64

	AudioHash      string `gorm:"not null"`
	TranscriptHash string `gorm:"not null"`
	EntityHash     string `gorm:"not null"`
	PackageHash    string `gorm:"uniqueIndex;not null"`

	Transcript models.JSONTranscript `gorm:"type:text"`
	Entities   models.JSONEntities   `gorm:"type:text"`
	Custody    models.JSONCustody    `gorm:"type:text"`

	SignatureAlgorithm string
	SignatureValue     string
	SignedBy           string
	SignedAt           time.Time

	Status    string `gorm:"type:text;check:status IN ('pending', 'submitted', 'under_review', 'acknowledged', 'resolved', 'rejected');index;default:'pending'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EvidenceRecord) TableName() string { return "evidence_packages" }

// SessionRecord archives a concluded call session for audit.
type SessionRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"uniqueIndex;not null"`
	PhoneID   string `gorm:"index"`
	Direction string `gorm:"type:text"`
	State     string `gorm:"type:text;index"`

	Score float64 `gorm:"type:real"`
	Level string  `gorm:"type:text;index"`

	Transcript models.JSONTranscript `gorm:"type:text"`
	Entities   models.JSONEntities   `gorm:"type:text"`

	PersonaID string
	EndReason string

	StartedAt time.Time `gorm:"index"`
	EndedAt   *time.Time
	CreatedAt time.Time
}

func (SessionRecord) TableName() string { return "call_sessions" }

// ProfileRecord aggregates identifiers seen across sessions for one suspected
// scammer.
type ProfileRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ProfileID string `gorm:"uniqueIndex;not null"`

	PhoneNumbers   models.JSONStringArray `gorm:"type:text"`
	PaymentHandles models.JSONStringArray `gorm:"type:text"`
	BankAccounts   models.JSONStringArray `gorm:"type:text"`

	RiskScore   float64 `gorm:"type:real;index"`
	RiskLevel   string  `gorm:"type:text"`
	CallCount   int64   `gorm:"default:0"`
	ReportCount int64   `gorm:"default:0"`

	FirstSeen time.Time
	LastSeen  time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (ProfileRecord) TableName() string { return "scammer_profiles" }
