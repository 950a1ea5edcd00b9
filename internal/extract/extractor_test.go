// Package extract provides structured-entity extraction from call transcripts.
package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavach-labs/kavach/pkg/models"
)

func entitiesOfType(entities []models.ExtractedEntity, t models.EntityType) []models.ExtractedEntity {
	var out []models.ExtractedEntity
	for _, e := range entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// TestExtractPaymentHandle tests UPI handle recognition with provider validation.
func TestExtractPaymentHandle(t *testing.T) {
	entities := Extract("please transfer to ramesh.kr@paytm for the upi payment", 1)

	handles := entitiesOfType(entities, models.EntityPaymentHandle)
	require.Len(t, handles, 1)
	assert.Equal(t, "ramesh.kr@paytm", handles[0].Value)
	assert.Greater(t, handles[0].Confidence, 0.5)
	// Payment handles are not high sensitivity; displayed unmasked.
	assert.Equal(t, handles[0].Value, handles[0].Masked)
}

// TestExtractUnknownProviderRejected tests that non-whitelisted providers fail
// structural validation and fall through to email when the TLD-like form fits.
func TestExtractUnknownProviderRejected(t *testing.T) {
	entities := Extract("send it to someone@randomprovider", 1)
	assert.Empty(t, entitiesOfType(entities, models.EntityPaymentHandle))
}

// TestExtractOneTimeCode tests OTP recognition with context support.
func TestExtractOneTimeCode(t *testing.T) {
	entities := Extract("the otp is 456789, tell me the verification code now", 3)

	codes := entitiesOfType(entities, models.EntityOneTimeCode)
	require.Len(t, codes, 1)
	assert.Equal(t, "456789", codes[0].Value)
	assert.Equal(t, "XXXX89", codes[0].Masked)
	assert.Equal(t, int64(3), codes[0].Sequence)
}

// TestExtractYearNotOTP tests false-positive suppression for year-like numbers.
func TestExtractYearNotOTP(t *testing.T) {
	entities := Extract("the year 2024 was mentioned with a date", 1)
	assert.Empty(t, entitiesOfType(entities, models.EntityOneTimeCode))
}

// TestExtractRoutingCode tests IFSC recognition.
func TestExtractRoutingCode(t *testing.T) {
	entities := Extract("use ifsc HDFC0001234 for the bank transfer", 1)

	codes := entitiesOfType(entities, models.EntityBankRoutingCode)
	require.Len(t, codes, 1)
	assert.Equal(t, "HDFC0001234", codes[0].Value)
}

// TestExtractCardOverlapsAccount tests that overlapping spans resolve to the
// higher-confidence, more specific type.
func TestExtractCardOverlapsAccount(t *testing.T) {
	entities := Extract("my card number is 4111 1111 1111 1111 with cvv", 1)

	cards := entitiesOfType(entities, models.EntityCardNumber)
	require.Len(t, cards, 1)
	assert.Equal(t, "XXXX-XXXX-XXXX-1111", cards[0].Masked)

	// The digit run must not additionally surface as account or phone.
	assert.Empty(t, entitiesOfType(entities, models.EntityBankAccount))
	assert.Empty(t, entitiesOfType(entities, models.EntityPhoneNumber))
}

// TestExtractPhoneNumber tests Indian mobile recognition.
func TestExtractPhoneNumber(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"plain_ten_digit", "call me on mobile 9876543210", 1},
		{"with_country_code", "whatsapp number +91 9876543210 please", 1},
		{"starts_below_six", "number 1234567890 is invalid", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entities := Extract(tt.text, 1)
			assert.Len(t, entitiesOfType(entities, models.EntityPhoneNumber), tt.want)
		})
	}
}

// TestExtractNationalID tests Aadhaar recognition and masking.
func TestExtractNationalID(t *testing.T) {
	entities := Extract("aadhaar verification needs 1234 5678 9012 right now", 2)

	ids := entitiesOfType(entities, models.EntityNationalID)
	require.Len(t, ids, 1)
	assert.Equal(t, "XXXX-XXXX-9012", ids[0].Masked)
	assert.NotEqual(t, ids[0].Value, ids[0].Masked)
}

// TestExtractTaxID tests PAN recognition and partial masking.
func TestExtractTaxID(t *testing.T) {
	entities := Extract("pan number ABCDE1234F for tax records", 1)

	ids := entitiesOfType(entities, models.EntityTaxID)
	require.Len(t, ids, 1)
	assert.Equal(t, "ABXXXX4F", ids[0].Masked)
}

// TestExtractMonetaryAmount tests amount recognition with Indian units.
func TestExtractMonetaryAmount(t *testing.T) {
	entities := Extract("pay a processing fee of 25 lakh rupees", 1)
	assert.NotEmpty(t, entitiesOfType(entities, models.EntityMonetaryAmount))
}

// TestExtractPersonAndLocation tests context-cue recognizers.
func TestExtractPersonAndLocation(t *testing.T) {
	entities := Extract("this is Vikram Singh calling from Mumbai about your account", 1)

	assert.NotEmpty(t, entitiesOfType(entities, models.EntityPersonName))
	assert.NotEmpty(t, entitiesOfType(entities, models.EntityLocation))
}

// TestExtractIdempotent tests that re-running extraction yields identical output.
func TestExtractIdempotent(t *testing.T) {
	text := "otp is 456789, upi ramesh@ybl, card 4111 1111 1111 1111"

	first := Extract(text, 7)
	second := Extract(text, 7)

	assert.Equal(t, first, second)
}

// TestExtractEmptyFragment tests the empty-input edge case.
func TestExtractEmptyFragment(t *testing.T) {
	assert.Nil(t, Extract("", 1))
}

// TestVerifiedNeverSetByPipeline tests that extraction never marks entities verified.
func TestVerifiedNeverSetByPipeline(t *testing.T) {
	entities := Extract("otp is 456789 and upi is x@paytm for payment", 1)
	require.NotEmpty(t, entities)
	for _, e := range entities {
		assert.False(t, e.Verified)
	}
}
