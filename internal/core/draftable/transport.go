package draftable

import (
	"net/http"

	"github.com/namelens/draftprune/internal/core/engine"
)

// rateLimitedTransport gates every round trip on the limiter.
type rateLimitedTransport struct {
	limiter engine.Limiter
	next    http.RoundTripper
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		t.limiter.Acquire()
	}
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

// NewHTTPClient wraps base so every request passes through limiter first.
func NewHTTPClient(base *http.Client, limiter engine.Limiter) *http.Client {
	client := &http.Client{}
	if base != nil {
		copied := *base
		client = &copied
	}
	client.Transport = &rateLimitedTransport{limiter: limiter, next: client.Transport}
	return client
}
