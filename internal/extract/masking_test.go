package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kavach-labs/kavach/pkg/models"
)

// TestMaskDeterministic tests that masking the same original twice yields the
// identical masked string.
func TestMaskDeterministic(t *testing.T) {
	tests := []struct {
		name  string
		typ   models.EntityType
		value string
		want  string
	}{
		{"national_id", models.EntityNationalID, "1234 5678 9012", "XXXX-XXXX-9012"},
		{"card_number", models.EntityCardNumber, "4111-1111-1111-1111", "XXXX-XXXX-XXXX-1111"},
		{"one_time_code_six", models.EntityOneTimeCode, "456789", "XXXX89"},
		{"one_time_code_four", models.EntityOneTimeCode, "4567", "XX67"},
		{"bank_account", models.EntityBankAccount, "123456789012", "XXXXXX9012"},
		{"tax_id", models.EntityTaxID, "ABCDE1234F", "ABXXXX4F"},
		{"payment_handle_untouched", models.EntityPaymentHandle, "x@paytm", "x@paytm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Mask(tt.typ, tt.value)
			second := Mask(tt.typ, tt.value)

			assert.Equal(t, tt.want, first)
			assert.Equal(t, first, second)
		})
	}
}

// TestMaskNeverEqualsOriginalForHighSensitivity tests the reconstruction invariant.
func TestMaskNeverEqualsOriginalForHighSensitivity(t *testing.T) {
	values := map[models.EntityType]string{
		models.EntityNationalID:  "1234 5678 9012",
		models.EntityCardNumber:  "4111 1111 1111 1111",
		models.EntityOneTimeCode: "4567",
	}

	for typ, value := range values {
		assert.True(t, typ.HighSensitivity())
		assert.NotEqual(t, value, Mask(typ, value), "type %s must not reveal original", typ)
	}
}

// TestMaskShortValues tests degenerate inputs fall back to fully-masked forms.
func TestMaskShortValues(t *testing.T) {
	assert.Equal(t, "XXXX", Mask(models.EntityOneTimeCode, "12"))
	assert.Equal(t, "XXXX-XXXX-XXXX", Mask(models.EntityNationalID, "99"))
	assert.Equal(t, "XXXXXXXX", Mask(models.EntityBankAccount, "123"))
}
