package profiles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavach-labs/kavach/pkg/models"
)

func packageWith(created time.Time, level models.ThreatLevel, peak float64, entities ...models.ExtractedEntity) *models.EvidencePackage {
	return &models.EvidencePackage{
		PackageID:   "pkg-" + created.Format("150405"),
		SessionID:   "session-" + created.Format("150405"),
		ThreatLevel: level,
		PeakScore:   peak,
		Entities:    entities,
		CreatedAt:   created,
	}
}

func phoneEntity(value string) models.ExtractedEntity {
	return models.ExtractedEntity{Type: models.EntityPhoneNumber, Value: value, Masked: value, Confidence: 0.8}
}

func handleEntity(value string) models.ExtractedEntity {
	return models.ExtractedEntity{Type: models.EntityPaymentHandle, Value: value, Masked: value, Confidence: 0.8}
}

// TestRecordCreatesProfile tests first-contact profile creation.
func TestRecordCreatesProfile(t *testing.T) {
	c := NewCorrelator(nil, nil)
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	c.Record(packageWith(created, models.ThreatLevelHigh, 0.7, phoneEntity("9876543210")))

	profile, ok := c.Lookup("9876543210")
	require.True(t, ok)
	assert.Equal(t, []string{"9876543210"}, profile.PhoneNumbers)
	assert.Equal(t, int64(1), profile.ReportCount)
	assert.Equal(t, created, profile.FirstSeen)
	assert.Greater(t, profile.RiskScore, 0.0)
}

// TestRecordCorrelatesByAnySharedIdentifier tests that packages sharing one
// identifier merge into one profile even when others differ.
func TestRecordCorrelatesByAnySharedIdentifier(t *testing.T) {
	c := NewCorrelator(nil, nil)
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	c.Record(packageWith(base, models.ThreatLevelHigh, 0.7,
		phoneEntity("9876543210"), handleEntity("fraudster@paytm")))
	c.Record(packageWith(base.Add(time.Hour), models.ThreatLevelCritical, 0.9,
		handleEntity("fraudster@paytm"), phoneEntity("8765432109")))

	first, ok := c.Lookup("9876543210")
	require.True(t, ok)
	second, ok := c.Lookup("8765432109")
	require.True(t, ok)

	assert.Equal(t, first.ProfileID, second.ProfileID)
	assert.Equal(t, int64(2), first.ReportCount)
	assert.ElementsMatch(t, []string{"9876543210", "8765432109"}, first.PhoneNumbers)
	assert.Equal(t, base.Add(time.Hour), first.LastSeen)
}

// TestRecordDistinctIdentifiersDistinctProfiles tests non-overlapping packages
// stay separate.
func TestRecordDistinctIdentifiersDistinctProfiles(t *testing.T) {
	c := NewCorrelator(nil, nil)
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	c.Record(packageWith(base, models.ThreatLevelHigh, 0.7, phoneEntity("9876543210")))
	c.Record(packageWith(base.Add(time.Hour), models.ThreatLevelMedium, 0.4, phoneEntity("7654321098")))

	first, ok := c.Lookup("9876543210")
	require.True(t, ok)
	second, ok := c.Lookup("7654321098")
	require.True(t, ok)
	assert.NotEqual(t, first.ProfileID, second.ProfileID)
}

// TestRepeatReportsRaiseRisk tests the risk score grows with repeat sightings.
func TestRepeatReportsRaiseRisk(t *testing.T) {
	c := NewCorrelator(nil, nil)
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	c.Record(packageWith(base, models.ThreatLevelHigh, 0.7, phoneEntity("9876543210")))
	first, _ := c.Lookup("9876543210")

	c.Record(packageWith(base.Add(time.Hour), models.ThreatLevelHigh, 0.7, phoneEntity("9876543210")))
	second, _ := c.Lookup("9876543210")

	assert.Greater(t, second.RiskScore, first.RiskScore)
	assert.GreaterOrEqual(t, second.RiskLevel.Severity(), first.RiskLevel.Severity())
}

// TestRecordIgnoresPackagesWithoutIdentifiers tests the no-op path.
func TestRecordIgnoresPackagesWithoutIdentifiers(t *testing.T) {
	c := NewCorrelator(nil, nil)
	c.Record(packageWith(time.Now(), models.ThreatLevelSafe, 0.0))

	_, ok := c.Get("SCM-000000000000")
	assert.False(t, ok)
}

// TestSightingCounterLocalFallback tests process-local counting without Redis.
func TestSightingCounterLocalFallback(t *testing.T) {
	counter := NewSightingCounter(nil)

	assert.Equal(t, int64(1), counter.Increment("9876543210"))
	assert.Equal(t, int64(2), counter.Increment("9876543210"))
	assert.Equal(t, int64(2), counter.Count("9876543210"))
	assert.Equal(t, int64(0), counter.Count("unseen"))
	assert.NoError(t, counter.Close())
}
