// Package pipeline rewrites every outbound backend request through an
// ordered interceptor chain: target resolution, bearer-token attachment with
// refresh-on-expiry, and tenant (branch) header attachment.
//
// The Transport implements http.RoundTripper, so wiring it into an
// http.Client applies the chain to every request the application issues:
//
//	transport, err := pipeline.New(mgr, branches, store, pipeline.Config{
//		BaseURL: "https://api.clinic.example",
//	})
//	if err != nil {
//		return err
//	}
//	httpClient := &http.Client{Transport: transport}
//
// Requests may be created against relative API paths; the target stage
// resolves them to the configured backend origin before any headers are
// attached. The four auth endpoints (login, register, forgot-password,
// reset-password) are allow-listed: they never carry credentials, never
// trigger a refresh, and a 401 from them never tears down the session.
//
// When a token has expired before a request leaves, the credential stage
// suspends the request, shares the session manager's single in-flight
// refresh, and continues with the new token. A rejected refresh aborts the
// request with the refresh error in place of the request's own outcome. A
// 401 observed on any non-allow-listed response forces a logout; 403 is
// surfaced untouched and has no session side effects.
package pipeline
