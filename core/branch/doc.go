// Package branch tracks the active tenant (branch) selection for a session.
//
// The context is seeded from the authenticated user's branch list, can be
// re-pointed independently of the session, and is cleared on logout via a
// session logout hook. It is intentionally not persisted: the request
// pipeline derives its branch-header fallback from the credential store
// directly, so headers stay correct even before the context is seeded.
package branch
