// Package jsonio reads request bodies and writes JSON responses for the
// API handlers.
package jsonio

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
)

// MaxBody caps request bodies.
const MaxBody = 1 << 20

// Write encodes v with status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode reads a JSON body into v. An empty body leaves v untouched;
// malformed JSON is apperr.BadRequest.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.BadRequest
}
