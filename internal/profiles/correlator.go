// Package profiles correlates identifiers harvested across call sessions into
// scammer profiles. Correlation is post-hoc: it consumes finalized evidence
// packages and never feeds back into live scoring.
package profiles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kavach-labs/kavach/pkg/models"
)

// ProfileStore persists correlated profiles. May be nil for in-memory use.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, profile *models.ScammerProfile) error
}

// Correlator aggregates identifier sets from evidence packages. Two packages
// sharing any identifier are attributed to the same profile.
type Correlator struct {
	mu       sync.Mutex
	profiles map[string]*models.ScammerProfile
	index    map[string]string // identifier -> profile id

	store     ProfileStore
	sightings *SightingCounter
}

// NewCorrelator creates a correlator. store and sightings may be nil.
func NewCorrelator(store ProfileStore, sightings *SightingCounter) *Correlator {
	if sightings == nil {
		sightings = NewSightingCounter(nil)
	}
	return &Correlator{
		profiles:  make(map[string]*models.ScammerProfile),
		index:     make(map[string]string),
		store:     store,
		sightings: sightings,
	}
}

// Record folds one finalized package's identifiers into the profile arena.
func (c *Correlator) Record(pkg *models.EvidencePackage) {
	identifiers := pkg.Identifiers()
	if len(identifiers) == 0 {
		return
	}

	c.mu.Lock()
	profile := c.match(identifiers)
	if profile == nil {
		profile = &models.ScammerProfile{
			ProfileID: newProfileID(identifiers),
			FirstSeen: pkg.CreatedAt,
		}
		c.profiles[profile.ProfileID] = profile
	}

	maxSightings := int64(0)
	for _, e := range identifiers {
		c.index[indexKey(e)] = profile.ProfileID
		c.attach(profile, e)
		if n := c.sightings.Increment(indexKey(e)); n > maxSightings {
			maxSightings = n
		}
	}

	profile.CallCount++
	profile.ReportCount++
	profile.LastSeen = pkg.CreatedAt
	if profile.FirstSeen.IsZero() {
		profile.FirstSeen = pkg.CreatedAt
	}
	profile.RiskScore = riskScore(pkg, profile, maxSightings)
	profile.RiskLevel = riskLevel(profile.RiskScore)

	snapshot := *profile
	c.mu.Unlock()

	log.Info().
		Str("profileId", snapshot.ProfileID).
		Int64("reports", snapshot.ReportCount).
		Float64("riskScore", snapshot.RiskScore).
		Msg("Scammer profile updated")

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.store.UpsertProfile(ctx, &snapshot); err != nil {
			log.Warn().Str("profileId", snapshot.ProfileID).Err(err).Msg("Failed to persist profile")
		}
	}
}

// Get returns a copy of the profile by id.
func (c *Correlator) Get(profileID string) (models.ScammerProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[profileID]
	if !ok {
		return models.ScammerProfile{}, false
	}
	return *p, true
}

// Lookup returns the profile currently associated with an identifier value.
func (c *Correlator) Lookup(identifier string) (models.ScammerProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.index[identifier]
	if !ok {
		return models.ScammerProfile{}, false
	}
	p, ok := c.profiles[id]
	if !ok {
		return models.ScammerProfile{}, false
	}
	return *p, true
}

// match finds an existing profile sharing any of the identifiers. Caller
// holds c.mu.
func (c *Correlator) match(identifiers []models.ExtractedEntity) *models.ScammerProfile {
	for _, e := range identifiers {
		if id, ok := c.index[indexKey(e)]; ok {
			return c.profiles[id]
		}
	}
	return nil
}

func (c *Correlator) attach(p *models.ScammerProfile, e models.ExtractedEntity) {
	value := indexKey(e)
	switch e.Type {
	case models.EntityPhoneNumber:
		p.PhoneNumbers = appendUnique(p.PhoneNumbers, value)
	case models.EntityPaymentHandle:
		p.PaymentHandles = appendUnique(p.PaymentHandles, value)
	case models.EntityBankAccount:
		p.BankAccounts = appendUnique(p.BankAccounts, value)
	}
}

// indexKey returns the correlatable form of an identifier. Masked forms are
// used so the index never holds unmasked high-sensitivity values.
func indexKey(e models.ExtractedEntity) string {
	if e.Masked != "" {
		return e.Masked
	}
	return e.Value
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func newProfileID(identifiers []models.ExtractedEntity) string {
	sum := sha256.Sum256([]byte(indexKey(identifiers[0])))
	return "SCM-" + hex.EncodeToString(sum[:6])
}

// riskScore combines the triggering package's severity with repeat-sighting
// evidence across sessions.
func riskScore(pkg *models.EvidencePackage, p *models.ScammerProfile, sightings int64) float64 {
	score := 0.3 * float64(pkg.ThreatLevel.Severity()) / float64(models.ThreatLevelCritical.Severity())
	score += 0.4 * pkg.PeakScore
	if p.ReportCount > 1 {
		score += 0.1 * float64(p.ReportCount-1)
	}
	if sightings > 1 {
		score += 0.05 * float64(sightings-1)
	}
	if score > 1 {
		score = 1
	}
	return score
}

func riskLevel(score float64) models.ThreatLevel {
	switch {
	case score >= 0.85:
		return models.ThreatLevelCritical
	case score >= 0.6:
		return models.ThreatLevelHigh
	case score >= 0.3:
		return models.ThreatLevelMedium
	case score >= 0.1:
		return models.ThreatLevelLow
	}
	return models.ThreatLevelSafe
}
