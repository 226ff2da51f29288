package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/server/api"
	"github.com/ayusman/formcoach/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// streamError is sent for a message that could not be decoded as a frame.
type streamError struct {
	Error string `json:"error"`
}

// StreamHandler feeds frames received over a websocket into one session and
// replies to each with the resulting state.
type StreamHandler struct {
	sessions *session.Manager
}

func NewStreamHandler(sessions *session.Manager) *StreamHandler {
	return &StreamHandler{sessions: sessions}
}

// ServeHTTP handles WebSocket upgrade requests for /api/sessions/{id}/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.sessions.Get(id); err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade error: %s", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(api.MaxFrameBytes)

	logger := log.WithField("session", id)
	logger.Debug("stream opened")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("stream read: %s", err)
			}
			break
		}

		// The session may have been closed or swept since the last frame.
		s, err := h.sessions.Get(id)
		if errors.Is(err, session.ErrNotFound) {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
			_ = conn.WriteMessage(websocket.CloseMessage, msg)
			break
		}

		var reply any
		var frame pose.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			reply = streamError{Error: "invalid frame: " + err.Error()}
		} else {
			state, accepted := s.Process(frame)
			reply = api.FrameResult{Accepted: accepted, State: state}
		}

		if err := conn.WriteJSON(reply); err != nil {
			logger.Warnf("stream write: %s", err)
			break
		}
	}

	logger.Debug("stream closed")
}
