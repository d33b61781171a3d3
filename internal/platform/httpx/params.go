package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// PathID parses a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrValidation, name, raw)
	}
	return id, nil
}

// QueryBool reads an optional boolean query parameter. Absent or
// unrecognised values yield nil.
func QueryBool(r *http.Request, name string) *bool {
	var v bool
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "true", "1", "yes":
		v = true
	case "false", "0", "no":
		v = false
	default:
		return nil
	}
	return &v
}

// QueryID reads an optional positive integer query parameter.
func QueryID(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, &ValidationError{Fields: map[string]string{name: "is invalid"}}
	}
	return &id, nil
}
