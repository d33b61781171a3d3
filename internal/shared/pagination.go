package shared

import (
	"net/http"
	"strconv"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}

// PageFromRequest reads ?limit= and ?offset=, clamping to sane bounds.
func PageFromRequest(r *http.Request) Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return NewPage(limit, offset)
}

// NewPage clamps limit and offset.
func NewPage(limit, offset int) Page {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
