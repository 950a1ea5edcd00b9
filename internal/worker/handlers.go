package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/kavach-labs/kavach/internal/evidence"
	"github.com/kavach-labs/kavach/internal/session"
	"github.com/kavach-labs/kavach/internal/store"
	"github.com/kavach-labs/kavach/pkg/models"
)

const maxBodyBytes = 64 * 1024

type startCallRequest struct {
	SessionID string `json:"session_id"`
	PhoneID   string `json:"phone_id"`
	Direction string `json:"direction"`
}

type fragmentRequest struct {
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	Sequence int64  `json:"sequence"`
}

type handoffRequest struct {
	PersonaID string `json:"persona_id"`
}

type endCallRequest struct {
	Reason string `json:"reason"`
}

type statusUpdateRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"active_calls":   s.manager.ActiveCount(),
		"queue_depth":    s.manager.TotalQueueDepth(),
		"sse_clients":    s.sseBroadcaster.ClientCount(),
	})
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if !decodeBody(w, r, &req) {
		return
	}

	direction := models.CallDirection(req.Direction)
	if direction == "" {
		direction = models.DirectionInbound
	}
	if direction != models.DirectionInbound && direction != models.DirectionOutbound {
		writeError(w, http.StatusBadRequest, "direction must be inbound or outbound")
		return
	}

	if err := s.manager.Start(req.SessionID, req.PhoneID, direction); err != nil {
		writeSessionError(w, err)
		return
	}

	call, err := s.manager.Get(req.SessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, call)
}

func (s *Service) handleListCalls(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"calls": s.manager.Sessions(),
	})
}

func (s *Service) handleGetCall(w http.ResponseWriter, r *http.Request) {
	call, err := s.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Service) handleFragment(w http.ResponseWriter, r *http.Request) {
	var req fragmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	speaker, ok := parseSpeaker(req.Speaker)
	if !ok {
		writeError(w, http.StatusBadRequest, "speaker must be caller, callee, or agent")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := s.manager.IngestFragment(sessionID, speaker, req.Text, req.Sequence); err != nil {
		writeSessionError(w, err)
		return
	}

	// Fragments are applied asynchronously in sequence order.
	writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id": sessionID,
		"sequence":   req.Sequence,
	})
}

func (s *Service) handleHandoff(w http.ResponseWriter, r *http.Request) {
	var req handoffRequest
	if !decodeBody(w, r, &req) {
		return
	}

	personaID := req.PersonaID
	if personaID == "" {
		personaID = s.config.Persona
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := s.manager.Handoff(sessionID, personaID); err != nil {
		writeSessionError(w, err)
		return
	}

	call, err := s.manager.Get(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Service) handleHandoffTerminate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.manager.HandoffTerminate(sessionID); err != nil {
		writeSessionError(w, err)
		return
	}

	call, err := s.manager.Get(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Service) handleEndCall(w http.ResponseWriter, r *http.Request) {
	var req endCallRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := s.manager.EndCall(r.Context(), sessionID, req.Reason); err != nil {
		writeSessionError(w, err)
		return
	}

	call, err := s.manager.Get(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Service) handleSubmitEvidence(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.manager.SubmitEvidence(r.Context(), sessionID); err != nil {
		writeSessionError(w, err)
		return
	}

	call, err := s.manager.Get(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

// lookupPackage checks live sessions first, then the store for packages from
// earlier runs.
func (s *Service) lookupPackage(ctx context.Context, packageID string) (*models.EvidencePackage, error) {
	pkg, err := s.manager.Package(packageID)
	if err == nil {
		return pkg, nil
	}
	if s.store == nil {
		return nil, err
	}
	return s.store.GetEvidence(ctx, packageID)
}

func (s *Service) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	packageID := chi.URLParam(r, "packageID")
	pkg, err := s.lookupPackage(r.Context(), packageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, session.ErrUnknownPackage) {
			writeError(w, http.StatusNotFound, "unknown evidence package: "+packageID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Service) handleExportEvidence(w http.ResponseWriter, r *http.Request) {
	packageID := chi.URLParam(r, "packageID")
	pkg, err := s.lookupPackage(r.Context(), packageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, session.ErrUnknownPackage) {
			writeError(w, http.StatusNotFound, "unknown evidence package: "+packageID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	doc, err := evidence.Export(pkg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+packageID+".json\"")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		log.Debug().Err(err).Msg("Export write interrupted")
	}
}

func (s *Service) handleReviewStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	packageID := chi.URLParam(r, "packageID")
	err := s.manager.ReviewStatusUpdate(r.Context(), packageID, models.SubmissionStatus(req.Status), req.Notes)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	pkg, lookupErr := s.lookupPackage(r.Context(), packageID)
	if lookupErr != nil {
		writeError(w, http.StatusInternalServerError, lookupErr.Error())
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Service) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"profiles": []models.ScammerProfile{}})
		return
	}

	list, err := s.store.ListProfiles(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": list})
}

func (s *Service) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	if s.profiles != nil {
		if p, ok := s.profiles.Get(profileID); ok {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown profile: "+profileID)
}

func parseSpeaker(v string) (models.Speaker, bool) {
	switch models.Speaker(v) {
	case models.SpeakerCaller, models.SpeakerCallee, models.SpeakerAgent:
		return models.Speaker(v), true
	}
	return "", false
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

// writeSessionError maps the pipeline's typed errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrUnknownSession),
		errors.Is(err, session.ErrUnknownPackage):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrDuplicateSession),
		errors.Is(err, session.ErrDuplicateFragment),
		errors.Is(err, session.ErrDuplicateAssembly),
		errors.Is(err, session.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, session.ErrMalformedEntity):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrExternalTimeout):
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Response write interrupted")
	}
}
