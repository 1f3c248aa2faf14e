package server

import (
	"net/http"
	"slices"
)

type OriginChecker struct {
	allowedOrigins []string
}

func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	return &OriginChecker{
		allowedOrigins,
	}
}

// Check accepts requests without an Origin header, which come from
// non-browser clients.
func (c *OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.Contains(c.allowedOrigins, "*") || slices.Contains(c.allowedOrigins, origin)
}
