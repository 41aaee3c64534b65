package internal

import "net/http"

// HeaderTransport is a RoundTripper that adds default headers to every
// outgoing request, used to attach upstream credentials
type HeaderTransport struct {
	Base    http.RoundTripper
	Headers http.Header
}

// NewAuthTransport wraps base with a transport that sets the Authorization
// header on every request
func NewAuthTransport(base http.RoundTripper, auth string) *HeaderTransport {
	return &HeaderTransport{
		Base:    base,
		Headers: http.Header{"Authorization": []string{auth}},
	}
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for key, values := range t.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
