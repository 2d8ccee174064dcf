package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/shared"
)

// UUIDParam parses the chi URL parameter name as a UUID.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, shared.Errorf(shared.ErrInvalidArgument, "INVALID_ID", "%s must be a UUID", name)
	}
	return id, nil
}

// IntQuery reads an integer query parameter, falling back to def.
func IntQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// DateQuery parses a YYYY-MM-DD query parameter. Missing values yield the
// zero time.
func DateQuery(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, shared.Errorf(shared.ErrInvalidArgument, "INVALID_DATE", "%s must be YYYY-MM-DD", name)
	}
	return t, nil
}
