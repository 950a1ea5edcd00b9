package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kavach-labs/kavach/internal/classifier"
	"github.com/kavach-labs/kavach/internal/evidence"
	"github.com/kavach-labs/kavach/internal/extract"
	"github.com/kavach-labs/kavach/internal/metrics"
	"github.com/kavach-labs/kavach/internal/persona"
	"github.com/kavach-labs/kavach/internal/retry"
	"github.com/kavach-labs/kavach/internal/threat"
	"github.com/kavach-labs/kavach/pkg/models"
)

const (
	defaultClassifierTimeout = 3 * time.Second

	// eventBuffer absorbs bursts so emission never blocks a session lock.
	eventBuffer = 256

	defaultReportedRetention = 128
)

// Store is the persistence collaborator for finalized evidence.
type Store interface {
	SaveEvidence(ctx context.Context, pkg *models.EvidencePackage) error
	GetEvidence(ctx context.Context, packageID string) (*models.EvidencePackage, error)
	AppendCustody(ctx context.Context, packageID string, entry models.CustodyEntry) error
	UpdateStatus(ctx context.Context, packageID string, status models.SubmissionStatus) error
	ArchiveSession(ctx context.Context, call *models.CallSession) error
}

// Correlator receives finalized packages for cross-session profile matching.
type Correlator interface {
	Record(pkg *models.EvidencePackage)
}

// Options wires the manager's collaborators. Classifier and Assembler are
// required; Store and Profiles may be nil for in-memory operation.
type Options struct {
	Classifier        classifier.Classifier
	Assembler         *evidence.Assembler
	Store             Store
	Profiles          Correlator
	Weights           threat.Weights
	ClassifierTimeout time.Duration

	// ReportedRetention bounds how many reported sessions stay resident for
	// duplicate-submit detection and immediate review lookups.
	ReportedRetention int
}

// Manager is the arena of live sessions. Each session gets a dedicated worker
// goroutine that applies its fragments strictly in sequence order; commands
// mutate session state synchronously under the session's own lock.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*ActiveSession
	packages map[string]*models.EvidencePackage

	classifier        classifier.Classifier
	assembler         *evidence.Assembler
	store             Store
	profiles          Correlator
	weights           threat.Weights
	classifierTimeout time.Duration

	onEvent func(models.Event)
	events  chan models.Event

	// reported is the FIFO of sessions kept after their terminal hand-off;
	// the oldest are evicted past retention.
	reported  []string
	retention int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a session manager with the given collaborators.
func NewManager(opts Options) *Manager {
	if opts.Classifier == nil {
		opts.Classifier = classifier.Disabled{}
	}
	if opts.ClassifierTimeout <= 0 {
		opts.ClassifierTimeout = defaultClassifierTimeout
	}
	if opts.Weights == (threat.Weights{}) {
		opts.Weights = threat.DefaultWeights()
	}
	if opts.ReportedRetention <= 0 {
		opts.ReportedRetention = defaultReportedRetention
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:          make(map[string]*ActiveSession),
		packages:          make(map[string]*models.EvidencePackage),
		classifier:        opts.Classifier,
		assembler:         opts.Assembler,
		store:             opts.Store,
		profiles:          opts.Profiles,
		weights:           opts.Weights,
		classifierTimeout: opts.ClassifierTimeout,
		events:            make(chan models.Event, eventBuffer),
		retention:         opts.ReportedRetention,
		ctx:               ctx,
		cancel:            cancel,
	}

	m.wg.Add(1)
	go m.dispatchEvents()

	return m
}

// SetWeights swaps the scoring weights used for sessions started after the
// call. Running sessions keep the weights they started with.
func (m *Manager) SetWeights(w threat.Weights) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w == (threat.Weights{}) {
		w = threat.DefaultWeights()
	}
	m.weights = w
	log.Info().Msg("Scoring weights updated")
}

// SetEventHandler registers the sink for outbound events. Must be set before
// the first session starts.
func (m *Manager) SetEventHandler(fn func(models.Event)) {
	m.onEvent = fn
}

// emit hands the event to the dispatcher goroutine. Emission never blocks:
// handlers do client I/O, and a slow subscriber must not stall scoring while
// the session lock is held. When the buffer is full the event is dropped.
func (m *Manager) emit(event models.Event) {
	event.Timestamp = time.Now().UTC()
	select {
	case m.events <- event:
	default:
		log.Warn().
			Str("sessionId", event.SessionID).
			Str("type", string(event.Type)).
			Msg("Event buffer full, dropping event")
	}
}

// dispatchEvents is the single consumer of the event buffer, preserving
// per-manager emission order.
func (m *Manager) dispatchEvents() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case event := <-m.events:
			if m.onEvent != nil {
				m.onEvent(event)
			}
		}
	}
}

// Start creates a session for a newly connected call and begins monitoring.
// Session ids are caller-supplied and must be unique among live sessions.
func (m *Manager) Start(sessionID, phoneID string, direction models.CallDirection) error {
	if sessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrMalformedEntity)
	}

	m.mu.Lock()
	if _, exists := m.sessions[sessionID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateSession, sessionID)
	}
	s := newActiveSession(m.ctx, sessionID, phoneID, direction, m.weights)
	m.sessions[sessionID] = s
	m.mu.Unlock()

	s.mu.Lock()
	m.transitionLocked(s, models.CallStateConnecting)
	s.mu.Unlock()

	m.wg.Add(1)
	go m.runSession(s)

	log.Info().
		Str("sessionId", sessionID).
		Str("phoneId", phoneID).
		Str("direction", string(direction)).
		Msg("Call session started")

	return nil
}

// Get returns a snapshot of the session's call record.
func (m *Manager) Get(sessionID string) (models.CallSession, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return models.CallSession{}, err
	}
	return s.snapshot(), nil
}

// PackageForSession returns the evidence package assembled for an ended
// session, if any.
func (m *Manager) PackageForSession(sessionID string) (*models.EvidencePackage, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pkg == nil {
		return nil, fmt.Errorf("%w: session %s has no package", ErrUnknownPackage, sessionID)
	}
	return s.pkg, nil
}

// Sessions returns snapshots of all tracked sessions.
func (m *Manager) Sessions() []models.CallSession {
	m.mu.RLock()
	active := make([]*ActiveSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		active = append(active, s)
	}
	m.mu.RUnlock()

	out := make([]models.CallSession, 0, len(active))
	for _, s := range active {
		out = append(out, s.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// ActiveCount returns the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// TotalQueueDepth returns the number of fragments waiting across all sessions.
func (m *Manager) TotalQueueDepth() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	depth := 0
	for _, s := range m.sessions {
		depth += s.queueDepth()
	}
	return depth
}

// Package returns the assembled evidence package by id.
func (m *Manager) Package(packageID string) (*models.EvidencePackage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pkg, ok := m.packages[packageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, packageID)
	}
	return pkg, nil
}

func (m *Manager) lookup(sessionID string) (*ActiveSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return s, nil
}

// IngestFragment accepts one transcript fragment for ordered processing.
// Fragments arriving ahead of a gap are buffered and released in order.
func (m *Manager) IngestFragment(sessionID string, speaker models.Speaker, text string, sequence int64) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if sequence <= 0 {
		return fmt.Errorf("%w: sequence must be positive", ErrMalformedEntity)
	}

	s.mu.Lock()
	terminal := s.Call.State.Terminal()
	s.mu.Unlock()
	if terminal {
		return fmt.Errorf("%w: fragment for %s session", ErrInvalidTransition, models.CallStateEnded)
	}

	return s.enqueue(Fragment{Speaker: speaker, Text: text, Sequence: sequence})
}

// runSession is the single writer for one session's fragments.
func (m *Manager) runSession(s *ActiveSession) {
	defer m.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.notify:
			for _, frag := range s.drain() {
				m.processFragment(s, frag)
			}
		}
	}
}

// processFragment scores one fragment and applies the resulting transitions.
// The external classifier is consulted without holding the session lock so an
// end-call command can preempt it; on timeout the signal is treated as absent.
func (m *Manager) processFragment(s *ActiveSession, frag Fragment) {
	s.mu.Lock()
	if s.Call.State.Terminal() {
		s.mu.Unlock()
		return
	}
	if s.Call.State == models.CallStateConnecting {
		m.transitionLocked(s, models.CallStateMonitoring)
	}
	s.mu.Unlock()

	clScore, clPresent := m.classify(s, frag.Text)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The session may have ended while the classifier call was in flight.
	if s.Call.State.Terminal() {
		return
	}

	var reply string
	var entities []models.ExtractedEntity
	if s.Call.State == models.CallStateAiHandoff && s.engagement != nil {
		reply, entities = s.engagement.Respond(frag.Text, frag.Sequence)
	} else {
		entities = extract.Extract(frag.Text, frag.Sequence)
	}

	signal := s.scorer.Observe(frag.Text, clScore, clPresent, entities)
	s.Call.Score = s.scorer.Running()
	s.Call.Level = s.scorer.Level()
	s.Call.PeakScore = s.scorer.Peak()
	s.Call.PeakLevel = threat.LevelFor(s.Call.PeakScore)
	s.Call.Transcript = append(s.Call.Transcript, models.TranscriptEntry{
		Sequence:  frag.Sequence,
		Speaker:   frag.Speaker,
		Text:      frag.Text,
		Score:     s.Call.Score,
		Timestamp: time.Now().UTC(),
	})

	m.emit(models.Event{
		Type:      models.EventScoreUpdated,
		SessionID: s.Call.ID,
		ScoreUpdate: &models.ScoreUpdate{
			Score:             s.Call.Score,
			Level:             s.Call.Level,
			RecommendedAction: threat.RecommendedAction(s.Call.Level),
			Signal:            signal,
		},
	})
	metrics.FragmentProcessed(m.ctx)

	if len(entities) > 0 {
		s.Call.Entities = append(s.Call.Entities, entities...)
		m.emit(models.Event{
			Type:      models.EventEntitiesExtracted,
			SessionID: s.Call.ID,
			Entities:  entities,
		})
	}

	m.applyLevelLocked(s)

	if reply != "" {
		m.emit(models.Event{
			Type:      models.EventPersonaReply,
			SessionID: s.Call.ID,
			PersonaReply: &models.PersonaReply{
				PersonaID: s.Call.PersonaID,
				Text:      reply,
			},
		})
		metrics.PersonaTurn(m.ctx, s.Call.PersonaID)
	}
}

// classify consults the external classifier under a bounded deadline tied to
// the session context. Any failure degrades to an absent signal.
func (m *Manager) classify(s *ActiveSession, text string) (float64, bool) {
	if _, disabled := m.classifier.(classifier.Disabled); disabled {
		return 0, false
	}

	ctx, cancel := context.WithTimeout(s.ctx, m.classifierTimeout)
	defer cancel()

	score, err := m.classifier.Classify(ctx, text)
	if err != nil {
		if errors.Is(err, classifier.ErrDisabled) {
			return 0, false
		}
		metrics.ClassifierFailure(m.ctx)
		log.Warn().
			Str("sessionId", s.Call.ID).
			Err(fmt.Errorf("%w: %v", ErrExternalTimeout, err)).
			Msg("Classifier signal unavailable, scoring without it")
		return 0, false
	}
	return score, true
}

// applyLevelLocked evaluates the edge-triggered ThreatDetected transition and
// the decay re-entry to Monitoring. Caller holds s.mu.
func (m *Manager) applyLevelLocked(s *ActiveSession) {
	severe := s.Call.Level.Severity() >= models.ThreatLevelHigh.Severity()

	switch {
	case severe && s.armed && s.Call.State == models.CallStateMonitoring:
		s.armed = false
		m.transitionLocked(s, models.CallStateThreatDetected)
		metrics.ThreatDetected(m.ctx, string(s.Call.Level))
	case !severe && s.Call.State == models.CallStateThreatDetected:
		s.armed = true
		m.transitionLocked(s, models.CallStateMonitoring)
	case !severe:
		s.armed = true
	}
}

// transitionLocked applies a lifecycle transition and emits the state event.
// Caller holds s.mu and has already validated the step.
func (m *Manager) transitionLocked(s *ActiveSession, to models.CallState) {
	from := s.Call.State
	s.Call.State = to

	log.Debug().
		Str("sessionId", s.Call.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Session state changed")

	m.emit(models.Event{
		Type:      models.EventStateChanged,
		SessionID: s.Call.ID,
		StateChange: &models.StateChange{
			OldState: from,
			NewState: to,
		},
	})
}

// Handoff activates the named persona. Only valid from ThreatDetected and only
// on this explicit command, never automatically.
func (m *Manager) Handoff(sessionID, personaID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkTransition(s.Call.State, models.CallStateAiHandoff); err != nil {
		return err
	}

	engagement, err := persona.Engage(sessionID, personaID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEntity, err)
	}

	s.engagement = engagement
	s.Call.PersonaActive = true
	s.Call.PersonaID = engagement.Profile.ID
	m.transitionLocked(s, models.CallStateAiHandoff)

	greeting := engagement.Greeting()
	m.emit(models.Event{
		Type:      models.EventPersonaReply,
		SessionID: sessionID,
		PersonaReply: &models.PersonaReply{
			PersonaID: engagement.Profile.ID,
			Text:      greeting,
		},
	})
	metrics.PersonaTurn(m.ctx, engagement.Profile.ID)

	return nil
}

// HandoffTerminate ends the persona engagement and resumes plain monitoring.
func (m *Manager) HandoffTerminate(sessionID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Call.State != models.CallStateAiHandoff {
		return fmt.Errorf("%w: %s is not in hand-off", ErrInvalidTransition, sessionID)
	}

	s.engagement.Terminate()
	s.engagement = nil
	s.Call.PersonaActive = false
	m.transitionLocked(s, models.CallStateMonitoring)

	return nil
}

// EndCall ends the session and assembles evidence exactly once. A duplicate
// end command is a no-op. An in-flight classifier call for this session is
// preempted rather than awaited.
func (m *Manager) EndCall(ctx context.Context, sessionID, reason string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	// Preempt any suspended classifier call before taking the session lock.
	s.cancel()

	s.mu.Lock()
	if s.Call.State.Terminal() {
		s.mu.Unlock()
		return nil
	}

	if s.engagement != nil {
		s.engagement.Terminate()
		s.engagement = nil
		s.Call.PersonaActive = false
	}

	now := time.Now().UTC()
	s.Call.EndedAt = &now
	s.Call.EndReason = reason
	m.transitionLocked(s, models.CallStateEnded)

	// Assembly signs and persists through external collaborators; take a
	// snapshot and release the session boundary first.
	call := *s.Call
	s.mu.Unlock()

	pkg, err := m.assembleEvidence(ctx, &call)
	if err != nil {
		log.Error().Str("sessionId", sessionID).Err(err).Msg("Evidence assembly failed")
		return err
	}

	s.mu.Lock()
	s.pkg = pkg
	s.mu.Unlock()

	m.mu.Lock()
	m.packages[pkg.PackageID] = pkg
	m.mu.Unlock()

	m.emit(models.Event{
		Type:      models.EventEvidenceReady,
		SessionID: sessionID,
		Evidence:  &models.EvidenceReady{PackageID: pkg.PackageID},
	})
	metrics.PackageAssembled(m.ctx)

	log.Info().
		Str("sessionId", sessionID).
		Str("packageId", pkg.PackageID).
		Str("reason", reason).
		Msg("Call ended, evidence assembled")

	return nil
}

func (m *Manager) assembleEvidence(ctx context.Context, call *models.CallSession) (*models.EvidencePackage, error) {
	pkg, err := m.assembler.Assemble(call)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssemblyFailed, err)
	}

	if m.store != nil {
		err := retry.Do(ctx, "save evidence", func() error {
			return m.store.SaveEvidence(ctx, pkg)
		}, retry.Options{MaxAttempts: 3})
		if err != nil {
			return nil, fmt.Errorf("%w: persistence: %v", ErrAssemblyFailed, err)
		}
		if err := m.store.ArchiveSession(ctx, call); err != nil {
			log.Warn().Str("sessionId", call.ID).Err(err).Msg("Failed to archive session record")
		}
	}

	return pkg, nil
}

// SubmitEvidence submits the assembled package for review and moves the
// session to its final Reported state. A second submission is rejected.
func (m *Manager) SubmitEvidence(ctx context.Context, sessionID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()

	switch {
	case s.Call.State == models.CallStateReported:
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateAssembly, sessionID)
	case s.Call.State != models.CallStateEnded:
		state := s.Call.State
		s.mu.Unlock()
		return fmt.Errorf("%w: submit from %s", ErrInvalidTransition, state)
	case s.pkg == nil:
		s.mu.Unlock()
		return fmt.Errorf("%w: no package for %s", ErrAssemblyFailed, sessionID)
	}

	if err := evidence.UpdateStatus(s.pkg, models.StatusSubmitted, "operator", "submitted for review"); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	pkg := s.pkg
	m.transitionLocked(s, models.CallStateReported)
	s.mu.Unlock()

	// Persistence happens off the session boundary; the in-memory package is
	// already authoritative.
	if m.store != nil {
		entry := pkg.Custody[len(pkg.Custody)-1]
		if err := m.store.AppendCustody(ctx, pkg.PackageID, entry); err != nil {
			log.Warn().Str("packageId", pkg.PackageID).Err(err).Msg("Failed to persist custody entry")
		}
		err := retry.Do(ctx, "update evidence status", func() error {
			return m.store.UpdateStatus(ctx, pkg.PackageID, pkg.Status)
		}, retry.Options{MaxAttempts: 3})
		if err != nil {
			log.Warn().Str("packageId", pkg.PackageID).Err(err).Msg("Failed to persist status update")
		}
	}

	if m.profiles != nil {
		m.profiles.Record(pkg)
	}

	m.retireReported(sessionID)

	return nil
}

// retireReported caps how many terminal sessions stay resident. The most
// recent reported sessions are kept for duplicate-submit detection and
// immediate review lookups; the oldest past retention are evicted. Evicted
// packages leave memory only when a store holds them.
func (m *Manager) retireReported(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reported = append(m.reported, sessionID)
	for len(m.reported) > m.retention {
		oldest := m.reported[0]
		m.reported = m.reported[1:]
		s, ok := m.sessions[oldest]
		if !ok {
			continue
		}
		s.cancel()
		delete(m.sessions, oldest)
		if m.store != nil {
			s.mu.Lock()
			if s.pkg != nil {
				delete(m.packages, s.pkg.PackageID)
			}
			s.mu.Unlock()
		}
		log.Debug().Str("sessionId", oldest).Msg("Reported session evicted")
	}
}

// ReviewStatusUpdate applies an external reviewer's status change to an
// assembled package. Non-adjacent jumps are rejected with state unchanged.
func (m *Manager) ReviewStatusUpdate(ctx context.Context, packageID string, status models.SubmissionStatus, notes string) error {
	switch status {
	case models.StatusSubmitted, models.StatusUnderReview,
		models.StatusAcknowledged, models.StatusResolved, models.StatusRejected:
	default:
		return fmt.Errorf("%w: status %q", ErrMalformedEntity, status)
	}

	pkg, err := m.Package(packageID)
	if err != nil {
		// Packages assembled by a previous process run live only in the
		// store; recover them so review can continue across restarts.
		if m.store == nil {
			return err
		}
		stored, storeErr := m.store.GetEvidence(ctx, packageID)
		if storeErr != nil {
			return fmt.Errorf("%w: %s", ErrUnknownPackage, packageID)
		}
		m.mu.Lock()
		if cached, ok := m.packages[packageID]; ok {
			stored = cached
		} else {
			m.packages[packageID] = stored
		}
		m.mu.Unlock()
		pkg = stored
	}

	if err := evidence.UpdateStatus(pkg, status, "reviewer", notes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	if m.store != nil {
		entry := pkg.Custody[len(pkg.Custody)-1]
		if err := m.store.AppendCustody(ctx, packageID, entry); err != nil {
			log.Warn().Str("packageId", packageID).Err(err).Msg("Failed to persist custody entry")
		}
		if err := m.store.UpdateStatus(ctx, packageID, status); err != nil {
			log.Warn().Str("packageId", packageID).Err(err).Msg("Failed to persist status update")
		}
	}

	return nil
}

// Shutdown cancels all session workers and waits for them to stop.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	m.mu.Lock()
	for _, s := range m.sessions {
		s.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
