package models

import "time"

// EventType discriminates outbound pipeline events.
type EventType string

const (
	EventStateChanged      EventType = "state_changed"
	EventScoreUpdated      EventType = "score_updated"
	EventPersonaReply      EventType = "persona_reply"
	EventEntitiesExtracted EventType = "entities_extracted"
	EventEvidenceReady     EventType = "evidence_ready"
)

// Event is a discrete notification pushed to downstream consumers. Exactly one
// payload field is populated, matching Type.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	StateChange  *StateChange      `json:"state_change,omitempty"`
	ScoreUpdate  *ScoreUpdate      `json:"score_update,omitempty"`
	PersonaReply *PersonaReply     `json:"persona_reply,omitempty"`
	Entities     []ExtractedEntity `json:"entities,omitempty"`
	Evidence     *EvidenceReady    `json:"evidence,omitempty"`
}

// StateChange reports a lifecycle transition.
type StateChange struct {
	OldState CallState `json:"old_state"`
	NewState CallState `json:"new_state"`
}

// ScoreUpdate reports a running-score update after a fragment was folded in.
// Signal carries the sub-score vector for reviewer explainability.
type ScoreUpdate struct {
	Score             float64     `json:"score"`
	Level             ThreatLevel `json:"level"`
	RecommendedAction string      `json:"recommended_action"`
	Signal            ScoreSignal `json:"signal"`
}

// PersonaReply is a synthetic utterance emitted during AiHandoff.
type PersonaReply struct {
	PersonaID string `json:"persona_id"`
	Text      string `json:"text"`
}

// EvidenceReady announces a signed evidence package awaiting submission.
type EvidenceReady struct {
	PackageID string `json:"package_id"`
}
