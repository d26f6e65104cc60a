package session

import (
	"time"

	"github.com/google/uuid"
)

// Branch is an immutable tenant reference embedded in the user record.
// Branch data scopes backend visibility and is selected per session.
type Branch struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// User is the authenticated identity returned by the backend on login.
type User struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	Branches    []Branch  `json:"branches"`
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the user carries the given permission.
func (u User) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.HasRole("admin")
}

// DefaultBranch returns the branch flagged as default in the user's branch
// list. The second return value is false when no branch carries the flag.
func (u User) DefaultBranch() (Branch, bool) {
	for _, b := range u.Branches {
		if b.IsDefault {
			return b, true
		}
	}
	return Branch{}, false
}

// Credentials are the login form values posted to the backend.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Grant is a successful authentication result. Login grants carry the user;
// refresh grants replace only the token and expiry and leave User nil.
type Grant struct {
	Token     string
	TokenType string
	ExpiresIn time.Duration
	User      *User
}

// Session is a point-in-time snapshot of the authenticated state.
// Token and User are set together or both absent; there is no partial session.
type Session struct {
	Token     string
	User      *User
	ExpiresAt time.Time
}

// IsLoggedIn reports whether the snapshot holds a complete, unexpired session.
// Expiry is consulted here in addition to the expiry timer so that a snapshot
// taken between the deadline passing and the timer firing never reads as
// authenticated.
func (s Session) IsLoggedIn() bool {
	return s.Token != "" && s.User != nil && time.Now().Before(s.ExpiresAt)
}

// IsExpired reports whether the session token is past its deadline.
// An absent deadline counts as expired.
func (s Session) IsExpired() bool {
	return s.ExpiresAt.IsZero() || !time.Now().Before(s.ExpiresAt)
}
