// Package session owns the per-call state machine and the arena of live call
// sessions. All mutating operations on one session are serialized behind a
// per-session boundary that is never held across an external-collaborator call.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kavach-labs/kavach/internal/persona"
	"github.com/kavach-labs/kavach/internal/threat"
	"github.com/kavach-labs/kavach/pkg/models"
)

// Fragment is one incremental unit of transcribed speech awaiting processing.
type Fragment struct {
	Speaker  models.Speaker
	Text     string
	Sequence int64
}

// ActiveSession is one live call. Call state and scoring state are guarded by
// mu; the fragment queue has its own lock so ingestion never contends with an
// in-progress scoring step.
type ActiveSession struct {
	mu         sync.Mutex
	Call       *models.CallSession
	scorer     *threat.Scorer
	engagement *persona.Engagement
	pkg        *models.EvidencePackage

	// armed gates the edge-triggered ThreatDetected transition: it starts
	// true, clears on firing, and re-arms only when the level drops below
	// high again.
	armed bool

	queueMu sync.Mutex
	queue   []Fragment
	held    map[int64]Fragment
	nextSeq int64
	notify  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func newActiveSession(parent context.Context, id, phoneID string, direction models.CallDirection, weights threat.Weights) *ActiveSession {
	ctx, cancel := context.WithCancel(parent)
	return &ActiveSession{
		Call: &models.CallSession{
			ID:        id,
			PhoneID:   phoneID,
			Direction: direction,
			State:     models.CallStateIdle,
			Level:     models.ThreatLevelSafe,
			PeakLevel: models.ThreatLevelSafe,
			StartedAt: time.Now().UTC(),
			AudioRef:  fmt.Sprintf("audio://%s", id),
		},
		scorer:  threat.NewScorer(weights),
		armed:   true,
		held:    make(map[int64]Fragment),
		nextSeq: 1,
		notify:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// enqueue accepts a fragment in submission order. Gaps are held back and
// released once the missing sequence numbers arrive; sequence numbers at or
// below the high-water mark are rejected as duplicates.
func (s *ActiveSession) enqueue(frag Fragment) error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	switch {
	case frag.Sequence < s.nextSeq:
		return fmt.Errorf("%w: sequence %d already processed", ErrDuplicateFragment, frag.Sequence)
	case frag.Sequence > s.nextSeq:
		if _, ok := s.held[frag.Sequence]; ok {
			return fmt.Errorf("%w: sequence %d already buffered", ErrDuplicateFragment, frag.Sequence)
		}
		s.held[frag.Sequence] = frag
		return nil
	}

	s.queue = append(s.queue, frag)
	s.nextSeq++

	// Release any previously held fragments that are now consecutive.
	for {
		next, ok := s.held[s.nextSeq]
		if !ok {
			break
		}
		delete(s.held, s.nextSeq)
		s.queue = append(s.queue, next)
		s.nextSeq++
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// drain removes and returns all queued fragments in order.
func (s *ActiveSession) drain() []Fragment {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if len(s.queue) == 0 {
		return nil
	}
	out := s.queue
	s.queue = nil
	return out
}

// queueDepth reports queued plus held-back fragments.
func (s *ActiveSession) queueDepth() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue) + len(s.held)
}

// snapshot returns a copy of the call record for read-only consumers.
func (s *ActiveSession) snapshot() models.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.Call
}
