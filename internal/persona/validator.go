package persona

import (
	"regexp"

	"github.com/kavach-labs/kavach/internal/extract"
)

// The persona must never acknowledge its synthetic nature under any input, and
// selective compliance must never disclose real sensitive data. Validation is
// a hard gate on every candidate reply, not a property of the template pools.

var synthetic = regexp.MustCompile(`(?i)\b(?:ai|a\.i\.|artificial intelligence|bot|robot|robotic|synthetic|automated|computer program|language model|chatbot|virtual assistant|recording)\b`)

// sensitiveDisclosure matches digit runs long enough to read as a code, card,
// or account number. Template replies never contain these; the gate exists so
// no future template or rewrite path can leak one.
var sensitiveDisclosure = regexp.MustCompile(`\d{4,}`)

// fallbackStall is emitted when a candidate reply fails validation.
const fallbackStall = "Hello? I cannot hear you properly... please say that again?"

// Validate returns the reply if it passes the synthetic-acknowledgement and
// disclosure gates, otherwise a safe persona-neutral stall line.
func Validate(reply string, profile *Profile) string {
	if synthetic.MatchString(reply) {
		return fallbackStall
	}
	if sensitiveDisclosure.MatchString(reply) {
		return fallbackStall
	}
	// A reply must also never carry an extractable sensitive entity.
	for _, e := range extract.Extract(reply, 0) {
		if e.Type.HighSensitivity() {
			return fallbackStall
		}
	}
	return reply
}
