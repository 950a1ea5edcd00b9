package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kavach-labs/kavach/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// SaveEvidence persists a signed evidence package. The package hash has a
// unique index, so re-saving identical content is rejected by the database.
func (s *Store) SaveEvidence(ctx context.Context, pkg *models.EvidencePackage) error {
	record := EvidenceRecord{
		PackageID:          pkg.PackageID,
		SessionID:          pkg.SessionID,
		PhoneID:            pkg.PhoneID,
		Direction:          string(pkg.Direction),
		ThreatLevel:        string(pkg.ThreatLevel),
		PeakScore:          pkg.PeakScore,
		DurationSec:        pkg.DurationSec,
		AudioHash:          pkg.AudioHash,
		TranscriptHash:     pkg.TranscriptHash,
		EntityHash:         pkg.EntityHash,
		PackageHash:        pkg.PackageHash,
		Transcript:         models.JSONTranscript(pkg.Transcript),
		Entities:           models.JSONEntities(pkg.Entities),
		Custody:            models.JSONCustody(pkg.Custody),
		SignatureAlgorithm: pkg.Signature.Algorithm,
		SignatureValue:     pkg.Signature.Value,
		SignedBy:           pkg.Signature.SignedBy,
		SignedAt:           pkg.Signature.SignedAt,
		Status:             string(pkg.Status),
		CreatedAt:          pkg.CreatedAt,
	}

	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("save evidence package: %w", err)
	}
	return nil
}

// GetEvidence loads a persisted evidence package by package id.
func (s *Store) GetEvidence(ctx context.Context, packageID string) (*models.EvidencePackage, error) {
	var record EvidenceRecord
	err := s.DB.WithContext(ctx).Where("package_id = ?", packageID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: package %s", ErrNotFound, packageID)
	}
	if err != nil {
		return nil, fmt.Errorf("load evidence package: %w", err)
	}

	return &models.EvidencePackage{
		PackageID:      record.PackageID,
		SessionID:      record.SessionID,
		PhoneID:        record.PhoneID,
		Direction:      models.CallDirection(record.Direction),
		ThreatLevel:    models.ThreatLevel(record.ThreatLevel),
		PeakScore:      record.PeakScore,
		DurationSec:    record.DurationSec,
		AudioHash:      record.AudioHash,
		TranscriptHash: record.TranscriptHash,
		EntityHash:     record.EntityHash,
		PackageHash:    record.PackageHash,
		Transcript:     record.Transcript,
		Entities:       record.Entities,
		Custody:        record.Custody,
		Signature: models.Signature{
			Algorithm: record.SignatureAlgorithm,
			Value:     record.SignatureValue,
			SignedBy:  record.SignedBy,
			SignedAt:  record.SignedAt,
		},
		Status:    models.SubmissionStatus(record.Status),
		CreatedAt: record.CreatedAt,
	}, nil
}

// AppendCustody appends one custody entry to the package's stored log. The
// log is append-only: existing entries are never rewritten or reordered.
func (s *Store) AppendCustody(ctx context.Context, packageID string, entry models.CustodyEntry) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record EvidenceRecord
		err := tx.Where("package_id = ?", packageID).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: package %s", ErrNotFound, packageID)
		}
		if err != nil {
			return fmt.Errorf("load custody log: %w", err)
		}

		record.Custody = append(record.Custody, entry)
		return tx.Model(&record).Update("custody", record.Custody).Error
	})
}

// UpdateStatus records a package's new review status.
func (s *Store) UpdateStatus(ctx context.Context, packageID string, status models.SubmissionStatus) error {
	result := s.DB.WithContext(ctx).
		Model(&EvidenceRecord{}).
		Where("package_id = ?", packageID).
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("update package status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: package %s", ErrNotFound, packageID)
	}
	return nil
}

// ArchiveSession stores the concluded call session for audit. Re-archiving
// the same session id updates the existing record.
func (s *Store) ArchiveSession(ctx context.Context, call *models.CallSession) error {
	record := SessionRecord{
		SessionID:  call.ID,
		PhoneID:    call.PhoneID,
		Direction:  string(call.Direction),
		State:      string(call.State),
		Score:      call.Score,
		Level:      string(call.Level),
		Transcript: models.JSONTranscript(call.Transcript),
		Entities:   models.JSONEntities(call.Entities),
		PersonaID:  call.PersonaID,
		EndReason:  call.EndReason,
		StartedAt:  call.StartedAt,
		EndedAt:    call.EndedAt,
	}

	var existing SessionRecord
	err := s.DB.WithContext(ctx).Where("session_id = ?", call.ID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
			return fmt.Errorf("archive session: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load archived session: %w", err)
	default:
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		if err := s.DB.WithContext(ctx).Save(&record).Error; err != nil {
			return fmt.Errorf("update archived session: %w", err)
		}
	}
	return nil
}

// GetSession loads an archived session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.CallSession, error) {
	var record SessionRecord
	err := s.DB.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load archived session: %w", err)
	}

	return &models.CallSession{
		ID:         record.SessionID,
		PhoneID:    record.PhoneID,
		Direction:  models.CallDirection(record.Direction),
		State:      models.CallState(record.State),
		Score:      record.Score,
		Level:      models.ThreatLevel(record.Level),
		Transcript: record.Transcript,
		Entities:   record.Entities,
		PersonaID:  record.PersonaID,
		EndReason:  record.EndReason,
		StartedAt:  record.StartedAt,
		EndedAt:    record.EndedAt,
	}, nil
}

// UpsertProfile stores or refreshes a scammer profile by profile id.
func (s *Store) UpsertProfile(ctx context.Context, profile *models.ScammerProfile) error {
	record := ProfileRecord{
		ProfileID:      profile.ProfileID,
		PhoneNumbers:   models.JSONStringArray(profile.PhoneNumbers),
		PaymentHandles: models.JSONStringArray(profile.PaymentHandles),
		BankAccounts:   models.JSONStringArray(profile.BankAccounts),
		RiskScore:      profile.RiskScore,
		RiskLevel:      string(profile.RiskLevel),
		CallCount:      profile.CallCount,
		ReportCount:    profile.ReportCount,
		FirstSeen:      profile.FirstSeen,
		LastSeen:       profile.LastSeen,
		UpdatedAt:      time.Now().UTC(),
	}

	var existing ProfileRecord
	err := s.DB.WithContext(ctx).Where("profile_id = ?", profile.ProfileID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.DB.WithContext(ctx).Create(&record).Error
	case err != nil:
		return fmt.Errorf("load profile: %w", err)
	default:
		record.ID = existing.ID
		return s.DB.WithContext(ctx).Save(&record).Error
	}
}

// ListProfiles returns profiles ordered by most recently seen.
func (s *Store) ListProfiles(ctx context.Context, limit int) ([]models.ScammerProfile, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []ProfileRecord
	err := s.DB.WithContext(ctx).Order("last_seen DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	out := make([]models.ScammerProfile, 0, len(records))
	for _, r := range records {
		out = append(out, models.ScammerProfile{
			ProfileID:      r.ProfileID,
			PhoneNumbers:   r.PhoneNumbers,
			PaymentHandles: r.PaymentHandles,
			BankAccounts:   r.BankAccounts,
			RiskScore:      r.RiskScore,
			RiskLevel:      models.ThreatLevel(r.RiskLevel),
			CallCount:      r.CallCount,
			ReportCount:    r.ReportCount,
			FirstSeen:      r.FirstSeen,
			LastSeen:       r.LastSeen,
		})
	}
	return out, nil
}
