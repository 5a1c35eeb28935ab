package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

const dbTimeout = 5 * time.Second

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON decodes the request body and writes a field-level 400 on
// failure, reporting whether the caller should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalTypeErr *json.UnmarshalTypeError

		switch {
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "empty body")
		case errors.As(err, &syntaxErr):
			writeError(w, http.StatusBadRequest, "malformed JSON")
		case errors.As(err, &unmarshalTypeErr):
			writeError(w, http.StatusBadRequest, "wrong type for field "+unmarshalTypeErr.Field)
		default:
			writeError(w, http.StatusBadRequest, "invalid JSON")
		}
		return false
	}
	return true
}

func hello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Hello is the health-check handler.
var Hello = http.HandlerFunc(hello)
