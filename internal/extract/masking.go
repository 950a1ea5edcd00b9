package extract

import (
	"strings"

	"github.com/kavach-labs/kavach/pkg/models"
)

// Mask renders the display form of an entity value. Deterministic: the same
// original always masks identically, which lets callers deduplicate without
// holding the original in display-facing structures. High-sensitivity types
// never reveal enough characters to reconstruct the original.
func Mask(t models.EntityType, value string) string {
	switch t {
	case models.EntityNationalID:
		d := digitsOf(value)
		if len(d) < 4 {
			return "XXXX-XXXX-XXXX"
		}
		return "XXXX-XXXX-" + d[len(d)-4:]
	case models.EntityCardNumber:
		d := digitsOf(value)
		if len(d) < 4 {
			return "XXXX-XXXX-XXXX-XXXX"
		}
		return "XXXX-XXXX-XXXX-" + d[len(d)-4:]
	case models.EntityOneTimeCode:
		// Last two only: a four-digit code still hides half its digits.
		d := digitsOf(value)
		if len(d) < 3 {
			return "XXXX"
		}
		return strings.Repeat("X", len(d)-2) + d[len(d)-2:]
	case models.EntityBankAccount:
		if len(value) < 4 {
			return "XXXXXXXX"
		}
		return "XXXXXX" + value[len(value)-4:]
	case models.EntityTaxID:
		if len(value) < 4 {
			return "XXXXX0000X"
		}
		return value[:2] + "XXXX" + value[len(value)-2:]
	default:
		return value
	}
}

func digitsOf(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
