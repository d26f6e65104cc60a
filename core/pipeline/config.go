package pipeline

import (
	"log/slog"
	"net/http"
)

// Config holds request pipeline configuration. BaseURL is the only required
// value: the backend origin that relative API paths resolve against.
type Config struct {
	// BaseURL is the absolute backend origin, e.g. "https://api.clinic.example".
	BaseURL string `env:"API_BASE_URL"`

	// APIPrefix marks relative paths that resolve to the backend origin.
	APIPrefix string `env:"API_PREFIX" envDefault:"/api/"`

	// AuthPrefix marks authentication endpoints, which never receive the
	// branch header.
	AuthPrefix string `env:"AUTH_PREFIX" envDefault:"/api/auth/"`
}

// Option is a functional option for configuring the pipeline transport.
type Option func(*Transport)

// WithBase sets the underlying round tripper performing the network call
// (default: http.DefaultTransport).
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) {
		if rt != nil {
			t.base = rt
		}
	}
}

// WithLogger sets the logger for pipeline events.
func WithLogger(log *slog.Logger) Option {
	return func(t *Transport) {
		if log != nil {
			t.log = log
		}
	}
}
