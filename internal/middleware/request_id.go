package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

const HeaderRequestID = "X-Request-ID"

// RequestID stamps a fresh id on requests that do not carry one.
func RequestID(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get(HeaderRequestID) == "" {
			r = setHeader(r, HeaderRequestID, uuid.NewString())
		}
		return next.RoundTrip(r)
	})
}
