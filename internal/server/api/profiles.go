// Package api provides HTTP API handlers for the formcoach service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/store"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// ProfileHandler handles HTTP requests for profile resources.
type ProfileHandler struct {
	store    *store.Store
	defaults exercise.Config
}

// NewProfileHandler creates a ProfileHandler. Profile configs are validated
// as overlays on defaults.
func NewProfileHandler(s *store.Store, defaults exercise.Config) *ProfileHandler {
	return &ProfileHandler{store: s, defaults: defaults}
}

func (h *ProfileHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/profiles", h.list).Methods(http.MethodGet)
	router.HandleFunc("/profiles", h.create).Methods(http.MethodPost)
	router.HandleFunc("/profiles/{id}", h.get).Methods(http.MethodGet)
	router.HandleFunc("/profiles/{id}", h.update).Methods(http.MethodPut)
	router.HandleFunc("/profiles/{id}", h.delete).Methods(http.MethodDelete)
	router.HandleFunc("/profiles/{id}/default", h.makeDefault).Methods(http.MethodPut)
}

// Request and response types

type createProfileRequest struct {
	Name     string          `json:"name"`
	Exercise string          `json:"exercise"`
	Config   json.RawMessage `json:"config"`
}

type updateProfileRequest struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

type profileResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Exercise  string          `json:"exercise"`
	Config    json.RawMessage `json:"config"`
	Default   bool            `json:"default"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toProfileResponse(p *store.Profile, isDefault bool) profileResponse {
	config := p.Config
	if len(config) == 0 {
		config = json.RawMessage(`{}`)
	}
	return profileResponse{
		ID:        p.ID,
		Name:      p.Name,
		Exercise:  string(p.Exercise),
		Config:    config,
		Default:   isDefault,
		CreatedAt: p.CreatedAt.Format(timeFormat),
		UpdatedAt: p.UpdatedAt.Format(timeFormat),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Errorf("encode response: %s", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (h *ProfileHandler) isDefault(p *store.Profile) bool {
	def, err := h.store.DefaultProfile(p.Exercise)
	return err == nil && def.ID == p.ID
}

// list handles GET /api/profiles, optionally filtered by ?exercise=.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		profiles []*store.Profile
		err      error
	)
	if q := r.URL.Query().Get("exercise"); q != "" {
		kind, parseErr := exercise.ParseKind(q)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		profiles, err = h.store.Profiles().ListByExercise(kind)
	} else {
		profiles, err = h.store.Profiles().List()
	}
	if err != nil {
		log.Errorf("list profiles: %s", err)
		writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}

	response := listProfilesResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
	}
	for _, p := range profiles {
		response.Profiles = append(response.Profiles, toProfileResponse(p, h.isDefault(p)))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/profiles/{id}.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.load(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile, h.isDefault(profile)))
}

// create handles POST /api/profiles.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	kind, err := exercise.ParseKind(req.Exercise)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.defaults.Overlay(kind, req.Config); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.store.Profiles().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Profile name already exists")
		return
	}

	profile := &store.Profile{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Exercise: kind,
		Config:   req.Config,
	}

	if err := h.store.Profiles().Create(profile); err != nil {
		log.Errorf("create profile: %s", err)
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}

	log.WithFields(log.Fields{"profile": profile.ID, "exercise": kind}).Info("profile created")
	writeJSON(w, http.StatusCreated, toProfileResponse(profile, false))
}

// update handles PUT /api/profiles/{id}. The exercise of a profile is fixed.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.load(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" {
		profile.Name = req.Name
	}
	if req.Config != nil {
		if _, err := h.defaults.Overlay(profile.Exercise, req.Config); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		profile.Config = req.Config
	}

	if err := h.store.Profiles().Update(profile); err != nil {
		log.Errorf("update profile %s: %s", profile.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile, h.isDefault(profile)))
}

// delete handles DELETE /api/profiles/{id}.
func (h *ProfileHandler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Profiles().Delete(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// makeDefault handles PUT /api/profiles/{id}/default.
func (h *ProfileHandler) makeDefault(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.load(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	if err := h.store.SetDefaultProfile(profile); err != nil {
		log.Errorf("set default profile %s: %s", profile.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to set default profile")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile, true))
}

func (h *ProfileHandler) load(w http.ResponseWriter, id string) (*store.Profile, bool) {
	profile, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return nil, false
	}
	return profile, true
}
