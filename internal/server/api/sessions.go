package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/session"
	"github.com/ayusman/formcoach/internal/store"
)

// MaxFrameBytes bounds the size of a single frame payload.
const MaxFrameBytes = 1 << 20

// SessionHandler handles HTTP requests for live sessions.
type SessionHandler struct {
	sessions *session.Manager
}

func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/sessions", h.list).Methods(http.MethodGet)
	router.HandleFunc("/sessions", h.create).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}", h.get).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}", h.delete).Methods(http.MethodDelete)
	router.HandleFunc("/sessions/{id}/frames", h.frame).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/reset", h.reset).Methods(http.MethodPost)
}

type createSessionRequest struct {
	Exercise  string    `json:"exercise"`
	Side      pose.Side `json:"side"`
	ProfileID string    `json:"profile_id"`
}

type listSessionsResponse struct {
	Sessions []session.Info `json:"sessions"`
}

// FrameResult is the reply to one submitted frame. Accepted is false when
// the frame was rejected and the state did not advance.
type FrameResult struct {
	Accepted bool           `json:"accepted"`
	State    exercise.State `json:"state"`
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	response := listSessionsResponse{
		Sessions: make([]session.Info, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, s.Info())
	}
	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/sessions.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	kind, err := exercise.ParseKind(req.Exercise)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.sessions.Create(session.CreateParams{
		Exercise:  kind,
		Side:      req.Side,
		ProfileID: req.ProfileID,
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	case errors.Is(err, session.ErrProfileMismatch),
		errors.Is(err, exercise.ErrInvalidConfig),
		errors.Is(err, exercise.ErrUnsupportedExercise):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		log.Errorf("create session: %s", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, s.Info())
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Info())
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// frame handles POST /api/sessions/{id}/frames with one pose frame as body.
func (h *SessionHandler) frame(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}

	var frame pose.Frame
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxFrameBytes)).Decode(&frame); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid frame")
		return
	}

	state, accepted := s.Process(frame)
	writeJSON(w, http.StatusOK, FrameResult{Accepted: accepted, State: state})
}

// reset handles POST /api/sessions/{id}/reset.
func (h *SessionHandler) reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Reset())
}

func (h *SessionHandler) load(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}
