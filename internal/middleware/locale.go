package middleware

import (
	"net/http"
)

// Locale sets Accept-Language from lang on each request, so server-side
// messages follow the current language preference. An empty value leaves the
// request untouched.
func Locale(lang func() string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if lang != nil {
				if l := lang(); l != "" && r.Header.Get("Accept-Language") == "" {
					r = setHeader(r, "Accept-Language", l)
				}
			}
			return next.RoundTrip(r)
		})
	}
}
