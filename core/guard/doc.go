// Package guard gates navigation on session state. A guard is a synchronous,
// read-only check returning either "allow" or a redirect target; it never
// mutates the session it consults.
//
// RequireSession gates on a live session, RequireBranch on an active branch
// selection, and Chain composes them for branch-scoped targets:
//
//	protected := guard.Chain(
//		guard.RequireSession(mgr, "/login"),
//		guard.RequireBranch(branches, "/branches/select"),
//	)
//
// Middleware adapts a guard to net/http middleware for hosts that render
// their navigation server-side.
package guard
