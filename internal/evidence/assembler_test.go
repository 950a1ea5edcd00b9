package evidence

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/kavach-labs/kavach/pkg/models"
)

func endedSession() *models.CallSession {
	started := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	ended := started.Add(95 * time.Second)
	return &models.CallSession{
		ID:        "session-1",
		PhoneID:   "phone-1",
		Direction: models.DirectionInbound,
		State:     models.CallStateEnded,
		Score:     0.24,
		Level:     models.ThreatLevelLow,
		PeakScore: 0.71,
		PeakLevel: models.ThreatLevelHigh,
		Transcript: []models.TranscriptEntry{
			{Sequence: 1, Speaker: models.SpeakerCaller, Text: "this is the bank, your account is blocked", Timestamp: started},
			{Sequence: 2, Speaker: models.SpeakerCaller, Text: "share the otp sent to your phone", Timestamp: started.Add(30 * time.Second)},
		},
		Entities: []models.ExtractedEntity{
			{Type: models.EntityOneTimeCode, Value: "445566", Masked: "XXXX66", Confidence: 0.8, Position: 10, Sequence: 2},
			{Type: models.EntityPhoneNumber, Value: "9876543210", Masked: "9876543210", Confidence: 0.7, Position: 0, Sequence: 1},
		},
		StartedAt: started,
		EndedAt:   &ended,
		AudioRef:  "audio://session-1",
	}
}

type AssemblerSuite struct {
	suite.Suite
	assembler *Assembler
}

func (s *AssemblerSuite) SetupTest() {
	signer, err := NewHMACSigner("test-secret", "kavach-test")
	s.Require().NoError(err)
	s.assembler = NewAssembler(signer)
}

func TestAssemblerSuite(t *testing.T) {
	suite.Run(t, new(AssemblerSuite))
}

// TestAssembleBuildsSignedPackage tests the basic assembly contract.
func (s *AssemblerSuite) TestAssembleBuildsSignedPackage() {
	pkg, err := s.assembler.Assemble(endedSession())
	s.Require().NoError(err)

	s.True(strings.HasPrefix(pkg.PackageID, "KVC-"))
	s.Equal("session-1", pkg.SessionID)
	s.Equal(int64(95), pkg.DurationSec)
	s.Len(pkg.AudioHash, 64)
	s.Len(pkg.TranscriptHash, 64)
	s.Len(pkg.EntityHash, 64)
	s.Len(pkg.PackageHash, 64)
	s.Equal("HMAC-SHA256", pkg.Signature.Algorithm)
	s.Equal(models.StatusPending, pkg.Status)

	s.Require().Len(pkg.Custody, 1)
	s.Equal("package_created", pkg.Custody[0].Action)
	s.Equal("system", pkg.Custody[0].Actor)
}

// TestAssembleRecordsPeakSeverity tests that a call which spiked and then
// decayed is packaged at its peak, not its final running score.
func (s *AssemblerSuite) TestAssembleRecordsPeakSeverity() {
	session := endedSession()
	session.Score = 0.08
	session.Level = models.ThreatLevelSafe

	pkg, err := s.assembler.Assemble(session)
	s.Require().NoError(err)

	s.InDelta(0.71, pkg.PeakScore, 1e-9)
	s.Equal(models.ThreatLevelHigh, pkg.ThreatLevel)
}

// TestAssembleDeterministicHash tests that identical inputs reproduce the
// identical package hash even across assembler instances.
func (s *AssemblerSuite) TestAssembleDeterministicHash() {
	a, err := s.assembler.Assemble(endedSession())
	s.Require().NoError(err)
	b, err := s.assembler.Assemble(endedSession())
	s.Require().NoError(err)

	s.Equal(a.PackageHash, b.PackageHash)
	s.Equal(a.TranscriptHash, b.TranscriptHash)
	s.Equal(a.EntityHash, b.EntityHash)
	s.NotEqual(a.PackageID, b.PackageID)
}

// TestAssembleCanonicalEntityOrder tests entity ordering does not change the hash.
func (s *AssemblerSuite) TestAssembleCanonicalEntityOrder() {
	normal := endedSession()
	shuffled := endedSession()
	shuffled.Entities[0], shuffled.Entities[1] = shuffled.Entities[1], shuffled.Entities[0]

	a, err := s.assembler.Assemble(normal)
	s.Require().NoError(err)
	b, err := s.assembler.Assemble(shuffled)
	s.Require().NoError(err)

	s.Equal(a.EntityHash, b.EntityHash)
	s.Equal(a.PackageHash, b.PackageHash)
}

// TestAssembleContentChangesHash tests tamper sensitivity.
func (s *AssemblerSuite) TestAssembleContentChangesHash() {
	a, err := s.assembler.Assemble(endedSession())
	s.Require().NoError(err)

	altered := endedSession()
	altered.Transcript[1].Text = "share the otp sent to your phone please"
	b, err := s.assembler.Assemble(altered)
	s.Require().NoError(err)

	s.NotEqual(a.TranscriptHash, b.TranscriptHash)
	s.NotEqual(a.PackageHash, b.PackageHash)
}

// TestAssembleRequiresEndedSession tests that live sessions cannot be packaged.
func (s *AssemblerSuite) TestAssembleRequiresEndedSession() {
	session := endedSession()
	session.EndedAt = nil

	_, err := s.assembler.Assemble(session)
	s.ErrorIs(err, ErrNotEnded)
}

// TestVerifyDetectsTampering tests signature and hash verification.
func (s *AssemblerSuite) TestVerifyDetectsTampering() {
	pkg, err := s.assembler.Assemble(endedSession())
	s.Require().NoError(err)

	s.True(s.assembler.Verify(pkg))

	pkg.Transcript[0].Text = "hello, how are you"
	s.False(s.assembler.Verify(pkg))
}

// TestVerifyRejectsForeignSignature tests that another key's signature fails.
func (s *AssemblerSuite) TestVerifyRejectsForeignSignature() {
	pkg, err := s.assembler.Assemble(endedSession())
	s.Require().NoError(err)

	other, err := NewHMACSigner("other-secret", "kavach-test")
	s.Require().NoError(err)
	s.False(NewAssembler(other).Verify(pkg))
}

// TestOriginalValuesNeverSerialized tests that raw entity values stay out of
// every serialized artifact.
func (s *AssemblerSuite) TestOriginalValuesNeverSerialized() {
	pkg, err := s.assembler.Assemble(endedSession())
	s.Require().NoError(err)

	serialized, err := json.Marshal(pkg)
	s.Require().NoError(err)
	s.NotContains(string(serialized), "445566")
	s.Contains(string(serialized), "XXXX66")

	doc, err := Export(pkg)
	s.Require().NoError(err)
	s.NotContains(string(doc), "445566")
}

func TestUpdateStatusAdjacentSteps(t *testing.T) {
	signer, err := NewHMACSigner("test-secret", "kavach-test")
	require.NoError(t, err)
	pkg, err := NewAssembler(signer).Assemble(endedSession())
	require.NoError(t, err)

	require.NoError(t, UpdateStatus(pkg, models.StatusSubmitted, "operator", ""))
	require.NoError(t, UpdateStatus(pkg, models.StatusUnderReview, "authority", ""))
	require.NoError(t, UpdateStatus(pkg, models.StatusResolved, "authority", "case closed"))

	assert.Equal(t, models.StatusResolved, pkg.Status)
	require.Len(t, pkg.Custody, 4)
	assert.Equal(t, "status_resolved", pkg.Custody[3].Action)
	assert.Equal(t, "case closed", pkg.Custody[3].Notes)
}

func TestUpdateStatusRejectsNonAdjacentJump(t *testing.T) {
	signer, err := NewHMACSigner("test-secret", "kavach-test")
	require.NoError(t, err)
	pkg, err := NewAssembler(signer).Assemble(endedSession())
	require.NoError(t, err)

	err = UpdateStatus(pkg, models.StatusResolved, "authority", "")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, models.StatusPending, pkg.Status)
	assert.Len(t, pkg.Custody, 1)
}

func TestUpdateStatusTerminalStatesAreFinal(t *testing.T) {
	signer, err := NewHMACSigner("test-secret", "kavach-test")
	require.NoError(t, err)
	pkg, err := NewAssembler(signer).Assemble(endedSession())
	require.NoError(t, err)

	require.NoError(t, UpdateStatus(pkg, models.StatusSubmitted, "operator", ""))
	require.NoError(t, UpdateStatus(pkg, models.StatusUnderReview, "authority", ""))
	require.NoError(t, UpdateStatus(pkg, models.StatusRejected, "authority", ""))

	err = UpdateStatus(pkg, models.StatusSubmitted, "operator", "")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestExportDocument(t *testing.T) {
	signer, err := NewHMACSigner("test-secret", "kavach-test")
	require.NoError(t, err)
	pkg, err := NewAssembler(signer).Assemble(endedSession())
	require.NoError(t, err)

	data, err := Export(pkg)
	require.NoError(t, err)

	var doc SubmissionDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, submissionFormat, doc.Format)
	assert.Equal(t, pkg.PackageID, doc.Package.PackageID)
	assert.Equal(t, "session-1", doc.Intelligence.SessionID)
}

func TestSignerRequiresSecret(t *testing.T) {
	_, err := NewHMACSigner("", "kavach-test")
	assert.Error(t, err)
}
