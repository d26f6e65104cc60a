package branch

import (
	"sync"

	"github.com/clinicore/authkit/core/session"
)

// Context holds the active branch (tenant) selection for the current
// session. Its lifecycle is independent from the session itself: it is
// seeded once when a session becomes available, may be re-pointed by an
// explicit user selection at any time, and is cleared on logout. The
// selection is never persisted; it is rebuilt from the user record each
// session.
type Context struct {
	mu     sync.RWMutex
	active int
}

// NewContext returns an empty branch context with no active selection.
func NewContext() *Context {
	return &Context{}
}

// Seed derives the initial selection from the user's branch list: a single
// branch selects itself, otherwise the default-flagged branch is used, and
// otherwise the selection stays absent until the user picks one explicitly.
// Seeding is a no-op when a selection is already active.
func (c *Context) Seed(user session.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != 0 {
		return
	}
	if len(user.Branches) == 1 {
		c.active = user.Branches[0].ID
		return
	}
	if b, ok := user.DefaultBranch(); ok {
		c.active = b.ID
	}
}

// Set selects the active branch. Non-positive ids clear the selection.
func (c *Context) Set(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id <= 0 {
		c.active = 0
		return
	}
	c.active = id
}

// Active returns the selected branch id. The second return value is false
// when no branch is selected.
func (c *Context) Active() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active, c.active != 0
}

// Clear drops the selection. Wired as a session logout hook.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = 0
}
