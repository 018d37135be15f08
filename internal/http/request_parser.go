package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ModelParams holds the query parameters shared by the model endpoints.
type ModelParams struct {
	// Year is 0 when the caller did not pick one; the engine then
	// selects the current year.
	Year       int
	WithFiscal bool
}

// ParseModelParams extracts year and fiscal from query parameters.
// An absent year means "current"; a malformed one is an error, never a
// silent fallback.
func ParseModelParams(query url.Values) (ModelParams, error) {
	var p ModelParams

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid year %q", v)
		}
		if y < 0 {
			return p, fmt.Errorf("invalid year %d", y)
		}
		p.Year = y
	}

	if v := strings.TrimSpace(query.Get("fiscal")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("invalid fiscal flag %q", v)
		}
		p.WithFiscal = b
	}

	return p, nil
}
