package guard

import (
	"net/http"

	"github.com/clinicore/authkit/core/branch"
	"github.com/clinicore/authkit/core/session"
)

// Decision is the outcome of a guard evaluation: either the navigation is
// allowed, or the caller should redirect to RedirectTo.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

// Guard is a synchronous check evaluated before entering a protected
// navigation target. Guards only read state; they never mutate the session.
type Guard func() Decision

// Allow returns a passing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Redirect returns a failing decision pointing at target.
func Redirect(target string) Decision {
	return Decision{RedirectTo: target}
}

// RequireSession allows navigation only while a session is logged in,
// redirecting to the public landing route otherwise.
func RequireSession(mgr *session.Manager, landing string) Guard {
	return func() Decision {
		if mgr.IsLoggedIn() {
			return Allow()
		}
		return Redirect(landing)
	}
}

// RequireBranch allows navigation only while a branch is selected,
// redirecting to the branch-selection route otherwise. Compose it after
// RequireSession with Chain for branch-scoped targets.
func RequireBranch(branches *branch.Context, selectRoute string) Guard {
	return func() Decision {
		if _, ok := branches.Active(); ok {
			return Allow()
		}
		return Redirect(selectRoute)
	}
}

// RequireAdmin allows navigation only for sessions whose user carries the
// admin role, redirecting to the landing route otherwise.
func RequireAdmin(mgr *session.Manager, landing string) Guard {
	return func() Decision {
		if mgr.IsLoggedIn() && mgr.IsAdmin() {
			return Allow()
		}
		return Redirect(landing)
	}
}

// Chain evaluates guards in order and returns the first failing decision.
func Chain(guards ...Guard) Guard {
	return func() Decision {
		for _, g := range guards {
			if d := g(); !d.Allowed {
				return d
			}
		}
		return Allow()
	}
}

// Middleware adapts a guard to net/http middleware: disallowed requests are
// answered with a 302 redirect to the guard's target instead of reaching the
// wrapped handler.
func Middleware(g Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := g(); !d.Allowed {
				http.Redirect(w, r, d.RedirectTo, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
