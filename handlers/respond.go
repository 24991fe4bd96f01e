package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"dietTrackerAPI/internal/streak"
	"dietTrackerAPI/internal/types/user"
	"dietTrackerAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps a service error onto a status code. Only
// validation messages are echoed back to the client.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, services.ErrInvalidDate):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, user.ErrDuplicateProfile):
		respondWithError(w, http.StatusConflict, "User already exists")
	case errors.Is(err, streak.ErrStoreUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
