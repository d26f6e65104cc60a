package session

import (
	"log/slog"
	"time"
)

// Config holds session manager configuration.
type Config struct {
	// DefaultTTL is applied when a grant carries no expiry of its own.
	DefaultTTL time.Duration

	// LoginRoute is the navigation target after a manual logout.
	// Forced logouts (expiry, 401, failed refresh) append "?session=expired"
	// so the UI can distinguish the two.
	LoginRoute string

	// RefreshLeeway makes IsTokenExpired report true this long before the
	// hard deadline, so requests refresh proactively instead of racing the
	// expiry timer. Zero disables early detection.
	RefreshLeeway time.Duration

	// Logger receives session lifecycle events (default: slog.Default()).
	Logger *slog.Logger

	// Navigate signals the host application to change routes. Nil disables
	// navigation signalling; state transitions still happen.
	Navigate func(target string)

	// LogoutHooks run after the session is cleared, in registration order.
	// Used to tear down per-session state such as the active branch.
	LogoutHooks []func()
}

// defaultConfig returns default configuration.
func defaultConfig() *Config {
	return &Config{
		DefaultTTL: time.Hour,
		LoginRoute: "/login",
	}
}

// Option is a functional option for configuring the session manager.
type Option func(*Config)

// WithDefaultTTL sets the fallback session lifetime used when the backend
// omits an expiry from a grant.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) {
		if ttl > 0 {
			c.DefaultTTL = ttl
		}
	}
}

// WithLoginRoute sets the navigation target used after logout.
func WithLoginRoute(route string) Option {
	return func(c *Config) {
		if route != "" {
			c.LoginRoute = route
		}
	}
}

// WithRefreshLeeway sets how long before the hard deadline a token already
// counts as expired for refresh purposes.
func WithRefreshLeeway(leeway time.Duration) Option {
	return func(c *Config) {
		if leeway > 0 {
			c.RefreshLeeway = leeway
		}
	}
}

// WithLogger sets the logger for session lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(c *Config) {
		if log != nil {
			c.Logger = log
		}
	}
}

// WithNavigator sets the callback used to signal route changes to the host.
func WithNavigator(navigate func(target string)) Option {
	return func(c *Config) {
		c.Navigate = navigate
	}
}

// WithLogoutHook registers a callback invoked after the session is cleared.
func WithLogoutHook(hook func()) Option {
	return func(c *Config) {
		if hook != nil {
			c.LogoutHooks = append(c.LogoutHooks, hook)
		}
	}
}
