package middleware

import "net/http"

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Middleware decorates an outbound transport.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain wraps base with mws. The first middleware is the outermost, so it
// sees the request first.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// setHeader clones r before touching headers; a RoundTripper must not modify
// the caller's request.
func setHeader(r *http.Request, key, value string) *http.Request {
	if r.Header.Get(key) == value {
		return r
	}
	out := r.Clone(r.Context())
	out.Header.Set(key, value)
	return out
}
