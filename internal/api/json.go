package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"dronematch/internal/auth"
	"dronematch/internal/graph"
	"dronematch/internal/opt"
	"dronematch/internal/scenario"
	"dronematch/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps err onto a problem response.
func writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, auth.ErrUnauthorized):
		status, title = http.StatusUnauthorized, "Unauthorized"
		w.Header().Set("WWW-Authenticate", `Bearer realm="dronematch"`)
	case errors.Is(err, auth.ErrForbidden):
		status, title = http.StatusForbidden, "Forbidden"
	case isConfigurationError(err):
		status = http.StatusUnprocessableEntity
	}
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}

// isConfigurationError reports whether err was caused by the submitted
// problem rather than by the service.
func isConfigurationError(err error) bool {
	return errors.Is(err, opt.ErrConfiguration) ||
		errors.Is(err, scenario.ErrInvalid) ||
		errors.Is(err, graph.ErrNoDepots) ||
		errors.Is(err, graph.ErrUnknownNode) ||
		errors.Is(err, graph.ErrSelfLoop) ||
		errors.Is(err, graph.ErrInvalidNode)
}
