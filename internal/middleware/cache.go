package middleware

import (
	"net/http"
)

// NoStore asks every intermediary not to cache requests. Status answers are
// authoritative only when fresh.
func NoStore(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		r = setHeader(r, "Cache-Control", "no-store, no-cache, max-age=0")
		r = setHeader(r, "Pragma", "no-cache")
		return next.RoundTrip(r)
	})
}
