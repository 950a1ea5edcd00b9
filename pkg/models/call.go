// Package models contains domain models for kavach.
package models

import "time"

// CallState represents the lifecycle state of a monitored call.
type CallState string

const (
	CallStateIdle           CallState = "idle"
	CallStateConnecting     CallState = "connecting"
	CallStateMonitoring     CallState = "monitoring"
	CallStateThreatDetected CallState = "threat_detected"
	CallStateAiHandoff      CallState = "ai_handoff"
	CallStateEnded          CallState = "ended"
	CallStateReported       CallState = "reported"
)

// Terminal reports whether no further lifecycle transitions are possible
// except the Ended -> Reported record-keeping step.
func (s CallState) Terminal() bool {
	return s == CallStateEnded || s == CallStateReported
}

// CallDirection indicates who initiated the call.
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// ThreatLevel is the discrete level derived from the running threat score.
type ThreatLevel string

const (
	ThreatLevelSafe     ThreatLevel = "safe"
	ThreatLevelLow      ThreatLevel = "low"
	ThreatLevelMedium   ThreatLevel = "medium"
	ThreatLevelHigh     ThreatLevel = "high"
	ThreatLevelCritical ThreatLevel = "critical"
)

// Severity orders threat levels for comparison (safe=0 .. critical=4).
func (l ThreatLevel) Severity() int {
	switch l {
	case ThreatLevelLow:
		return 1
	case ThreatLevelMedium:
		return 2
	case ThreatLevelHigh:
		return 3
	case ThreatLevelCritical:
		return 4
	default:
		return 0
	}
}

// Speaker tags a transcript entry with its source.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerCallee Speaker = "callee"
	SpeakerAgent  Speaker = "agent"
)

// TranscriptEntry is one incremental unit of transcribed speech.
type TranscriptEntry struct {
	Sequence  int64     `json:"sequence"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// ScoreSignal is the per-fragment sub-score vector together with the fused
// scalar. It is never persisted independently; the fused value is folded into
// the session's running score.
type ScoreSignal struct {
	Lexical    float64 `json:"lexical"`
	Behavioral float64 `json:"behavioral"`
	Classifier float64 `json:"classifier"`
	// ClassifierPresent distinguishes a genuine 0.0 verdict from an absent
	// or timed-out external signal.
	ClassifierPresent bool     `json:"classifier_present"`
	EntityBoost       float64  `json:"entity_boost"`
	Fused             float64  `json:"fused"`
	Indicators        []string `json:"indicators,omitempty"`
}

// CallSession is the per-call aggregate owned by the state machine.
type CallSession struct {
	ID         string            `json:"id"`
	PhoneID    string            `json:"phone_id"`
	Direction  CallDirection     `json:"direction"`
	State      CallState         `json:"state"`
	Score      float64           `json:"score"`
	Level      ThreatLevel       `json:"level"`
	PeakScore  float64           `json:"peak_score"`
	PeakLevel  ThreatLevel       `json:"peak_level"`
	Transcript []TranscriptEntry `json:"transcript"`
	Entities   []ExtractedEntity `json:"entities"`

	PersonaActive bool   `json:"persona_active"`
	PersonaID     string `json:"persona_id,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	EndReason string     `json:"end_reason,omitempty"`

	// AudioRef is an opaque reference to the retained audio held by the
	// capture collaborator; only its content hash enters the evidence package.
	AudioRef string `json:"audio_ref,omitempty"`
}
