// Package response writes the JSON wire shapes shared by both services.
// Errors are a flat {"error": "..."} object; the solver endpoints and the
// original consumers depend on that exact shape.
package response

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func Error(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
