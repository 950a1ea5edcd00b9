package threat

import (
	"github.com/kavach-labs/kavach/pkg/models"
)

// Level thresholds are half-open and evaluated on the post-fusion running score.
const (
	ThresholdLow      = 0.1
	ThresholdMedium   = 0.3
	ThresholdHigh     = 0.6
	ThresholdCritical = 0.85
)

// Weights controls signal fusion and the exponential running combination.
type Weights struct {
	Lexical    float64 `yaml:"lexical"`
	Behavioral float64 `yaml:"behavioral"`
	Classifier float64 `yaml:"classifier"`
	// EntityBoost is the fixed increment applied when a high-sensitivity
	// entity appears in the fragment.
	EntityBoost float64 `yaml:"entity_boost"`
	// RiseAlpha and DecayAlpha weight the new fused value against the prior
	// running score. Decay is slower than rise so a single calm fragment
	// cannot erase an earlier spike.
	RiseAlpha  float64 `yaml:"rise_alpha"`
	DecayAlpha float64 `yaml:"decay_alpha"`
}

// DefaultWeights mirrors the tuning of the production keyword model. The
// family weights intentionally sum past 1.0: fusion saturates, so independent
// corroborating families push the fused value harder than any one alone.
func DefaultWeights() Weights {
	return Weights{
		Lexical:     0.8,
		Behavioral:  0.8,
		Classifier:  0.5,
		EntityBoost: 0.15,
		RiseAlpha:   0.7,
		DecayAlpha:  0.25,
	}
}

// bigramWindow is the turn distance within which an impersonation claim
// followed by a financial request escalates beyond either signal alone.
const bigramWindow = 3

const bigramBoost = 0.75

// Scorer accumulates per-session scoring state. Not safe for concurrent use;
// the owning session serializes all calls.
type Scorer struct {
	weights Weights

	running float64
	peak    float64
	level   models.ThreatLevel
	turn    int

	// lastCategoryTurn tracks the most recent turn each keyword category hit,
	// for bigram-style escalation across turns.
	lastCategoryTurn map[string]int
}

// NewScorer creates a per-session scorer.
func NewScorer(w Weights) *Scorer {
	return &Scorer{
		weights:          w,
		level:            models.ThreatLevelSafe,
		lastCategoryTurn: make(map[string]int),
	}
}

// Running returns the current running score.
func (s *Scorer) Running() float64 { return s.running }

// Peak returns the highest running score observed this session.
func (s *Scorer) Peak() float64 { return s.peak }

// Level returns the discrete level for the current running score.
func (s *Scorer) Level() models.ThreatLevel { return s.level }

// Observe folds one fragment into the running session score. classifier is
// the external semantic-classifier probability for this fragment;
// classifierPresent is false when the external call timed out or was skipped,
// in which case the classifier term contributes nothing to fusion.
func (s *Scorer) Observe(text string, classifier float64, classifierPresent bool, entities []models.ExtractedEntity) models.ScoreSignal {
	s.turn++

	lex := spotKeywords(text)
	behavioral, flags := analyzeBehavior(text)

	for _, c := range lex.categories {
		s.lastCategoryTurn[c] = s.turn
	}

	// Bigram escalation: a financial request shortly after an authority claim
	// scores higher than either alone.
	if impTurn, ok := s.lastCategoryTurn["impersonation"]; ok {
		if hasCategory(lex.categories, "financial") && s.turn-impTurn <= bigramWindow {
			behavioral += bigramBoost
			if behavioral > 1 {
				behavioral = 1
			}
			flags = append(flags, "authority_then_financial_request")
		}
	}

	signal := models.ScoreSignal{
		Lexical:           lex.score,
		Behavioral:        behavioral,
		Classifier:        classifier,
		ClassifierPresent: classifierPresent,
		Indicators:        append(lex.indicators, flags...),
	}

	fused := s.fuse(signal, entities)
	signal.EntityBoost = entityBoost(s.weights.EntityBoost, entities)
	signal.Fused = fused

	// Exponential running combination with asymmetric response.
	alpha := s.weights.RiseAlpha
	if fused < s.running {
		alpha = s.weights.DecayAlpha
	}
	s.running = alpha*fused + (1-alpha)*s.running
	if s.running > s.peak {
		s.peak = s.running
	}
	s.level = LevelFor(s.running)

	return signal
}

// fuse computes the saturating weighted sum, normalized into [0,1] by
// clamping. An absent classifier verdict simply contributes nothing, so its
// loss is graceful degradation rather than a zero vote.
func (s *Scorer) fuse(sig models.ScoreSignal, entities []models.ExtractedEntity) float64 {
	fused := sig.Lexical*s.weights.Lexical + sig.Behavioral*s.weights.Behavioral
	if sig.ClassifierPresent {
		fused += sig.Classifier * s.weights.Classifier
	}

	fused += entityBoost(s.weights.EntityBoost, entities)
	if fused > 1 {
		fused = 1
	}
	if fused < 0 {
		fused = 0
	}
	return fused
}

// entityBoost applies the fixed high-sensitivity increment at most once per
// fragment regardless of how many sensitive entities it carries.
func entityBoost(boost float64, entities []models.ExtractedEntity) float64 {
	for _, e := range entities {
		if e.Type == models.EntityOneTimeCode || e.Type == models.EntityCardNumber {
			return boost
		}
	}
	return 0
}

func hasCategory(categories []string, want string) bool {
	for _, c := range categories {
		if c == want {
			return true
		}
	}
	return false
}

// LevelFor converts a running score to its discrete level. Boundaries are
// half-open: safe <0.1, low 0.1-0.3, medium 0.3-0.6, high 0.6-0.85,
// critical >=0.85.
func LevelFor(score float64) models.ThreatLevel {
	switch {
	case score >= ThresholdCritical:
		return models.ThreatLevelCritical
	case score >= ThresholdHigh:
		return models.ThreatLevelHigh
	case score >= ThresholdMedium:
		return models.ThreatLevelMedium
	case score >= ThresholdLow:
		return models.ThreatLevelLow
	default:
		return models.ThreatLevelSafe
	}
}

// RecommendedAction maps a level to the client-facing action hint.
func RecommendedAction(level models.ThreatLevel) string {
	switch level {
	case models.ThreatLevelCritical:
		return "handoff_to_ai"
	case models.ThreatLevelHigh:
		return "alert_user"
	case models.ThreatLevelMedium:
		return "increase_monitoring"
	default:
		return "continue_monitoring"
	}
}
