package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ayusman/formcoach/internal/exercise"
)

// ExerciseHandler lists the supported exercises with their effective
// default configuration.
type ExerciseHandler struct {
	defaults exercise.Config
}

func NewExerciseHandler(defaults exercise.Config) *ExerciseHandler {
	return &ExerciseHandler{defaults: defaults}
}

func (h *ExerciseHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/exercises", h.list).Methods(http.MethodGet)
}

type exerciseResponse struct {
	Name   string `json:"name"`
	Config any    `json:"config"`
}

type listExercisesResponse struct {
	Exercises []exerciseResponse `json:"exercises"`
}

func (h *ExerciseHandler) list(w http.ResponseWriter, r *http.Request) {
	response := listExercisesResponse{}
	for _, kind := range exercise.Kinds() {
		var config any
		switch kind {
		case exercise.KindPushup:
			config = h.defaults.Pushup
		case exercise.KindSquat:
			config = h.defaults.Squat
		case exercise.KindPlank:
			config = h.defaults.Plank
		}
		response.Exercises = append(response.Exercises, exerciseResponse{Name: string(kind), Config: config})
	}
	writeJSON(w, http.StatusOK, response)
}
