package api

import (
	"encoding/json"
	"net/http"

	"github.com/hazyhaar/reader/internal/errs"
)

// writeError renders err as the non-streaming JSON envelope spec.md §7
// describes, with the conventional status code for its Kind.
func writeError(w http.ResponseWriter, err error) {
	env := errs.ToEnvelope(err)
	status := errs.HTTPStatus(env.Code)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
