package worker

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kavach-labs/kavach/internal/session"
)

const (
	wsReadLimit    = 16 * 1024
	wsPongWait     = 60 * time.Second
	wsWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Telephony gateways connect from their own hosts
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsAck struct {
	Sequence int64  `json:"sequence"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// handleFragmentStream accepts live transcript fragments over a websocket.
// Each frame is a fragment message; each gets an ack frame back. The socket
// closes when the session reaches a terminal state.
func (s *Service) handleFragmentStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.manager.Get(sessionID); err != nil {
		writeSessionError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	log.Debug().
		Str("sessionId", sessionID).
		Msg("Fragment stream opened")

	for {
		var frag fragmentRequest
		if err := conn.ReadJSON(&frag); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("sessionId", sessionID).Msg("Fragment stream read error")
			}
			return
		}

		ack := wsAck{Sequence: frag.Sequence, Status: "accepted"}

		speaker, ok := parseSpeaker(frag.Speaker)
		if !ok {
			ack.Status = "rejected"
			ack.Error = "speaker must be caller, callee, or agent"
		} else if err := s.manager.IngestFragment(sessionID, speaker, frag.Text, frag.Sequence); err != nil {
			ack.Status = "rejected"
			ack.Error = err.Error()

			// A terminal session will reject everything else too
			if errors.Is(err, session.ErrInvalidTransition) || errors.Is(err, session.ErrUnknownSession) {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteJSON(ack)
				return
			}
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ack); err != nil {
			log.Debug().Err(err).Str("sessionId", sessionID).Msg("Fragment stream write error")
			return
		}
	}
}
