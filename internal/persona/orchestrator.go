package persona

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kavach-labs/kavach/internal/extract"
	"github.com/kavach-labs/kavach/pkg/models"
)

// ErrUnknownPersona is returned for a hand-off naming a persona outside the catalogue.
var ErrUnknownPersona = fmt.Errorf("unknown persona")

// Stage tracks how far an engagement has progressed.
type Stage string

const (
	StageInitial       Stage = "initial"
	StageBuildingTrust Stage = "building_trust"
	StageExtracting    Stage = "extracting"
	StageTerminating   Stage = "terminating"
)

// Engagement holds the per-call conversational state for one hand-off.
// Turn-taking is strictly alternating and externally driven: Respond is only
// invoked with a caller utterance, never initiates. All conversational memory
// is discarded on Terminate; only entities already forwarded survive.
type Engagement struct {
	SessionID string
	Profile   *Profile

	turns     int
	stage     Stage
	startedAt time.Time
	history   []models.TranscriptEntry
}

// Engage starts a new engagement with the named persona. An empty personaID
// selects the default archetype.
func Engage(sessionID, personaID string) (*Engagement, error) {
	if personaID == "" {
		personaID = DefaultPersonaID
	}
	profile := Lookup(personaID)
	if profile == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, personaID)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("persona", personaID).
		Str("name", profile.Name).
		Msg("Persona engagement started")

	return &Engagement{
		SessionID: sessionID,
		Profile:   profile,
		stage:     StageInitial,
		startedAt: time.Now(),
	}, nil
}

// Stage returns the current engagement stage.
func (e *Engagement) Stage() Stage { return e.stage }

// Turns returns the number of caller utterances handled so far.
func (e *Engagement) Turns() int { return e.turns }

// Greeting returns the opening line for the engagement's persona.
// Deterministic: the first greeting in the pool is always used so replay of a
// session reproduces the same conversation.
func (e *Engagement) Greeting() string {
	return Validate(e.Profile.Greetings[0], e.Profile)
}

// Respond consumes the latest caller utterance and produces the persona reply.
// The utterance is passed through the entity extractor before replying, so
// intelligence gathering happens every turn regardless of the reply content.
func (e *Engagement) Respond(text string, sequence int64) (string, []models.ExtractedEntity) {
	e.turns++
	e.advanceStage()

	entities := extract.Extract(text, sequence)

	e.history = append(e.history, models.TranscriptEntry{
		Sequence:  sequence,
		Speaker:   models.SpeakerCaller,
		Text:      text,
		Timestamp: time.Now(),
	})

	intent := classifyIntent(text)
	pool := e.Profile.Replies[intent]
	if len(pool) == 0 {
		pool = e.Profile.Replies[IntentGeneral]
	}
	// Rotate deterministically through the pool by turn counter.
	reply := pool[(e.turns-1)%len(pool)]
	reply = Validate(reply, e.Profile)

	e.history = append(e.history, models.TranscriptEntry{
		Sequence:  sequence,
		Speaker:   models.SpeakerAgent,
		Text:      reply,
		Timestamp: time.Now(),
	})

	log.Debug().
		Str("sessionId", e.SessionID).
		Str("intent", string(intent)).
		Str("stage", string(e.stage)).
		Int("entities", len(entities)).
		Msg("Persona turn completed")

	return reply, entities
}

// Terminate discards the engagement's conversational memory and returns a
// short summary for the session record.
func (e *Engagement) Terminate() string {
	duration := time.Since(e.startedAt)
	summary := fmt.Sprintf("persona %s engaged for %d turns over %s",
		e.Profile.ID, e.turns, duration.Round(time.Second))

	e.history = nil

	log.Info().
		Str("sessionId", e.SessionID).
		Str("persona", e.Profile.ID).
		Int("turns", e.turns).
		Msg("Persona engagement terminated")

	return summary
}

func (e *Engagement) advanceStage() {
	switch {
	case e.turns < 3:
		e.stage = StageInitial
	case e.turns < 8:
		e.stage = StageBuildingTrust
	case e.turns < 15:
		e.stage = StageExtracting
	default:
		e.stage = StageTerminating
	}
}

func classifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, cue := range intentCues {
		for _, w := range cue.words {
			if strings.Contains(lower, w) {
				return cue.intent
			}
		}
	}
	return IntentGeneral
}
