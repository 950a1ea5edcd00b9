package session

import (
	"fmt"

	"github.com/kavach-labs/kavach/pkg/models"
)

// transitions is the closed adjacency set of the call lifecycle. ThreatDetected
// re-enters Monitoring when the score decays, but artifacts produced while
// detected are never reset. Ended is reachable from every live state.
var transitions = map[models.CallState][]models.CallState{
	models.CallStateIdle:           {models.CallStateConnecting, models.CallStateEnded},
	models.CallStateConnecting:     {models.CallStateMonitoring, models.CallStateEnded},
	models.CallStateMonitoring:     {models.CallStateThreatDetected, models.CallStateEnded},
	models.CallStateThreatDetected: {models.CallStateAiHandoff, models.CallStateMonitoring, models.CallStateEnded},
	models.CallStateAiHandoff:      {models.CallStateMonitoring, models.CallStateEnded},
	models.CallStateEnded:          {models.CallStateReported},
	models.CallStateReported:       {},
}

// canTransition reports whether from -> to is a legal lifecycle step.
func canTransition(from, to models.CallState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns a typed rejection when from -> to is not legal.
func checkTransition(from, to models.CallState) error {
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
