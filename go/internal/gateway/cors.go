package gateway

import (
	"net/http"
	"slices"
)

// originChecker applies the CORS origin list to WebSocket upgrades, which
// browsers send without a preflight. Requests without an Origin header come
// from non-browser clients and are allowed.
func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
