// Package session implements the client-side session state machine: the
// bearer-token/user/expiry triple, its durable persistence, transparent
// refresh, and the expiry timer that forces logout.
//
// The Manager is the single owner of session state. It is constructed
// explicitly and injected wherever session state is consumed (the request
// pipeline, route guards, UI code), so isolated instances can exist side by
// side in tests.
//
// # Lifecycle
//
// A session is created by Login, mutated in place by Refresh (token and
// expiry only, the user record is untouched), and destroyed by Logout. Logout
// fires from four sources that all commute: explicit user action, the expiry
// timer, a 401 response observed by the request pipeline, and a failed
// refresh. Whichever fires first clears state; the rest are no-ops beyond
// re-signalling navigation.
//
//	store := memory.New()
//	mgr, err := session.New(ctx, api, store,
//		session.WithDefaultTTL(time.Hour),
//		session.WithNavigator(router.Navigate),
//	)
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	sess, err := mgr.Login(ctx, session.Credentials{Login: "j.doe", Password: "secret"})
//
// # Persistence
//
// The Store interface abstracts the single local key-value store holding the
// auth_token, auth_user, and auth_expiry keys. The manager is the only
// writer; on construction the store is read once and a valid unexpired
// record restores the session, while partial or expired state is discarded.
//
// # Concurrency
//
// Refresh is guarded by a single-flight gate: when several in-flight
// requests observe an expired token concurrently, exactly one refresh call
// reaches the backend and every caller shares its outcome. A rejected
// refresh performs exactly one forced logout and fails all waiters with
// ErrRefreshFailed.
//
// IsLoggedIn consults expiry in addition to the presence of token and user,
// so a snapshot taken between the deadline passing and the timer firing
// never reads as authenticated.
package session
