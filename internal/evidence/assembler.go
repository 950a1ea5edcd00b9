package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kavach-labs/kavach/pkg/models"
)

var (
	// ErrInvalidStatusTransition is returned for non-adjacent review-status jumps.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrNotEnded is returned when assembly is requested before the session ended.
	ErrNotEnded = errors.New("session has not ended")
)

// packageIDPrefix marks identifiers minted by this service.
const packageIDPrefix = "KVC"

// Assembler produces signed evidence packages from concluded sessions.
type Assembler struct {
	signer Signer
}

// NewAssembler creates an assembler backed by the given signer.
func NewAssembler(signer Signer) *Assembler {
	return &Assembler{signer: signer}
}

// hashedContent is the canonical form the package hash is computed over.
// Field order is fixed, so marshaling is deterministic; volatile fields
// (package id, creation time, signature) are deliberately excluded so
// re-hashing identical inputs reproduces the identical hash.
type hashedContent struct {
	SessionID      string               `json:"session_id"`
	PhoneID        string               `json:"phone_id"`
	Direction      models.CallDirection `json:"direction"`
	ThreatLevel    models.ThreatLevel   `json:"threat_level"`
	PeakScore      float64              `json:"peak_score"`
	DurationSec    int64                `json:"duration_seconds"`
	AudioHash      string               `json:"audio_hash"`
	TranscriptHash string               `json:"transcript_hash"`
	EntityHash     string               `json:"entity_hash"`
}

// Assemble builds, hashes, and signs the evidence package for an ended
// session. The custody log starts with a single creation entry. Duplicate
// assembly is the caller's concern; the assembler itself is stateless.
func (a *Assembler) Assemble(session *models.CallSession) (*models.EvidencePackage, error) {
	if session.EndedAt == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotEnded, session.ID)
	}

	transcriptHash, err := hashJSON(session.Transcript)
	if err != nil {
		return nil, fmt.Errorf("failed to hash transcript: %w", err)
	}

	entities := canonicalEntities(session.Entities)
	entityHash, err := hashJSON(entities)
	if err != nil {
		return nil, fmt.Errorf("failed to hash entity list: %w", err)
	}

	audioHash := hashBytes([]byte(session.AudioRef))

	content := hashedContent{
		SessionID:      session.ID,
		PhoneID:        session.PhoneID,
		Direction:      session.Direction,
		ThreatLevel:    session.PeakLevel,
		PeakScore:      session.PeakScore,
		DurationSec:    int64(session.EndedAt.Sub(session.StartedAt).Seconds()),
		AudioHash:      audioHash,
		TranscriptHash: transcriptHash,
		EntityHash:     entityHash,
	}
	packageHash, err := hashJSON(content)
	if err != nil {
		return nil, fmt.Errorf("failed to compute package hash: %w", err)
	}

	sig, err := a.signer.Sign(packageHash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign package: %w", err)
	}

	now := time.Now().UTC()
	pkg := &models.EvidencePackage{
		PackageID:      newPackageID(now, packageHash),
		SessionID:      session.ID,
		PhoneID:        session.PhoneID,
		Direction:      session.Direction,
		ThreatLevel:    session.PeakLevel,
		PeakScore:      session.PeakScore,
		DurationSec:    content.DurationSec,
		AudioHash:      audioHash,
		TranscriptHash: transcriptHash,
		EntityHash:     entityHash,
		PackageHash:    packageHash,
		Transcript:     session.Transcript,
		Entities:       entities,
		Signature:      sig,
		Custody: []models.CustodyEntry{{
			Action:    "package_created",
			Actor:     "system",
			Timestamp: now,
		}},
		Status:    models.StatusPending,
		CreatedAt: now,
	}

	log.Info().
		Str("packageId", pkg.PackageID).
		Str("sessionId", session.ID).
		Str("threatLevel", string(pkg.ThreatLevel)).
		Int("entities", len(pkg.Entities)).
		Msg("Evidence package assembled")

	return pkg, nil
}

// UpdateStatus advances the package's review status by one adjacent step and
// appends the matching custody entry. Non-adjacent jumps are rejected.
func UpdateStatus(pkg *models.EvidencePackage, next models.SubmissionStatus, actor, notes string) error {
	if !pkg.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, pkg.Status, next)
	}

	pkg.Status = next
	pkg.Custody = append(pkg.Custody, models.CustodyEntry{
		Action:    "status_" + string(next),
		Actor:     actor,
		Notes:     notes,
		Timestamp: time.Now().UTC(),
	})

	log.Info().
		Str("packageId", pkg.PackageID).
		Str("status", string(next)).
		Str("actor", actor).
		Msg("Evidence package status updated")

	return nil
}

// Verify recomputes content hashes and checks them, plus the signature,
// against the package. A false result means the package was altered after
// signing.
func (a *Assembler) Verify(pkg *models.EvidencePackage) bool {
	transcriptHash, err := hashJSON(pkg.Transcript)
	if err != nil || transcriptHash != pkg.TranscriptHash {
		return false
	}

	entityHash, err := hashJSON(canonicalEntities(pkg.Entities))
	if err != nil || entityHash != pkg.EntityHash {
		return false
	}

	content := hashedContent{
		SessionID:      pkg.SessionID,
		PhoneID:        pkg.PhoneID,
		Direction:      pkg.Direction,
		ThreatLevel:    pkg.ThreatLevel,
		PeakScore:      pkg.PeakScore,
		DurationSec:    pkg.DurationSec,
		AudioHash:      pkg.AudioHash,
		TranscriptHash: pkg.TranscriptHash,
		EntityHash:     pkg.EntityHash,
	}
	packageHash, err := hashJSON(content)
	if err != nil || packageHash != pkg.PackageHash {
		return false
	}

	return a.signer.Verify(packageHash, pkg.Signature)
}

// canonicalEntities returns the entity list in canonical order for hashing:
// by sequence, then position, then type. The input is not mutated.
func canonicalEntities(entities []models.ExtractedEntity) []models.ExtractedEntity {
	out := make([]models.ExtractedEntity, len(entities))
	copy(out, entities)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func hashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newPackageID(t time.Time, packageHash string) string {
	suffix := packageHash
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s-%s-%s-%s",
		packageIDPrefix, t.Format("20060102150405"), suffix, uuid.NewString()[:8])
}
