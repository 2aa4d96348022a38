package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as a JSON response body with status 200.
func WriteJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail writes a JSON error response with a consistent shape:
// {"detail": "..."}
func WriteDetail(w http.ResponseWriter, statusCode int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// WriteChallenge writes a 401 with a WWW-Authenticate bearer challenge.
func WriteChallenge(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteDetail(w, http.StatusUnauthorized, detail)
}
