package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/clinicore/authkit/core/branch"
	"github.com/clinicore/authkit/core/session"
)

// Header names attached by the pipeline.
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderBranchID      = "X-Branch-ID"
)

// fallbackBranchID is attached when neither the active selection nor the
// persisted user record yields a branch.
const fallbackBranchID = 1

// allowlist holds the unauthenticated endpoints exempt from credential and
// refresh handling.
var allowlist = map[string]struct{}{
	"/api/auth/login":           {},
	"/api/auth/register":        {},
	"/api/auth/forgot-password": {},
	"/api/auth/reset-password":  {},
}

// ErrMissingBaseURL is returned when the pipeline is built without a backend origin.
var ErrMissingBaseURL = errors.New("pipeline: backend base URL is required")

// Transport is the ordered request pipeline, implemented as an
// http.RoundTripper so every request issued through the wrapping http.Client
// passes through it. Three stages run in fixed order:
//
//  1. target resolution: relative API paths are rewritten to the backend origin;
//  2. credential attachment: bearer token injection, with a shared refresh
//     when the token has expired and forced logout on 401 responses;
//  3. tenant attachment: the X-Branch-ID header, skipped for auth endpoints.
//
// The order is a correctness requirement: headers are only meaningful once
// the final destination is known, and the purely synchronous tenant stage
// runs last so it never blocks on a refresh.
//
// Stages never mutate the caller's request; each transformation clones it.
type Transport struct {
	session  *session.Manager
	branches *branch.Context
	store    session.Store
	base     http.RoundTripper
	log      *slog.Logger

	origin     *url.URL
	apiPrefix  string
	authPrefix string

	chain http.RoundTripper
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// New builds the pipeline transport around the session manager, branch
// context, and credential store. The store is consulted directly for the
// branch fallback so branch headers are derivable before the branch context
// has been seeded.
func New(mgr *session.Manager, branches *branch.Context, store session.Store, cfg Config, opts ...Option) (*Transport, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	origin, err := url.Parse(cfg.BaseURL)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, errors.Join(ErrMissingBaseURL, err)
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/"
	}
	if cfg.AuthPrefix == "" {
		cfg.AuthPrefix = "/api/auth/"
	}

	t := &Transport{
		session:    mgr,
		branches:   branches,
		store:      store,
		base:       http.DefaultTransport,
		log:        slog.Default(),
		origin:     origin,
		apiPrefix:  cfg.APIPrefix,
		authPrefix: cfg.AuthPrefix,
	}
	for _, opt := range opts {
		opt(t)
	}

	// Innermost stage runs last.
	chain := t.base
	chain = t.tenantStage(chain)
	chain = t.credentialStage(chain)
	chain = t.targetStage(chain)
	t.chain = chain

	return t, nil
}

// RoundTrip runs the request through the stage chain.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.chain.RoundTrip(req)
}

// targetStage rewrites recognized relative API paths to the backend origin.
// Requests that already carry a host pass through unchanged.
func (t *Transport) targetStage(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Host != "" || !strings.HasPrefix(req.URL.Path, t.apiPrefix) {
			return next.RoundTrip(req)
		}
		req = req.Clone(req.Context())
		req.URL.Scheme = t.origin.Scheme
		req.URL.Host = t.origin.Host
		req.Host = ""
		return next.RoundTrip(req)
	})
}

// credentialStage attaches the bearer token, refreshing it first when it has
// expired, and reacts to 401 responses with a forced logout. Allow-listed
// endpoints bypass the stage entirely. A held-but-absent token passes
// through untouched: the backend's rejection is more informative than a
// local short-circuit would be.
func (t *Transport) credentialStage(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if allowlisted(req.URL.Path) {
			return next.RoundTrip(req)
		}

		token := t.session.Token()
		if token != "" {
			if t.session.IsTokenExpired() {
				refreshed, err := t.session.Refresh(req.Context())
				if err != nil {
					// The manager has already cleared the session; the
					// credential failure supersedes whatever the original
					// request would have returned.
					t.log.Debug("aborting request after failed refresh",
						"path", req.URL.Path, "error", err)
					return nil, err
				}
				token = refreshed
			}
			req = req.Clone(req.Context())
			req.Header.Set(HeaderAuthorization, "Bearer "+token)
			if req.Header.Get(HeaderContentType) == "" {
				req.Header.Set(HeaderContentType, "application/json")
			}
		}

		resp, err := next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			t.log.Info("unauthorized response, clearing session", "path", req.URL.Path)
			t.session.ForceLogout(req.Context())
		}
		return resp, nil
	})
}

// tenantStage attaches the X-Branch-ID header to every non-auth request.
// With no active selection the fallback order is the default-flagged branch
// from the persisted user record, then branch id 1.
func (t *Transport) tenantStage(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasPrefix(req.URL.Path, t.authPrefix) {
			return next.RoundTrip(req)
		}

		id, ok := t.branches.Active()
		if !ok {
			id = t.fallbackBranch(req.Context())
		}

		req = req.Clone(req.Context())
		req.Header.Set(HeaderBranchID, strconv.Itoa(id))
		return next.RoundTrip(req)
	})
}

func (t *Transport) fallbackBranch(ctx context.Context) int {
	record, err := t.store.Load(ctx)
	if err == nil {
		if b, ok := record.User.DefaultBranch(); ok {
			return b.ID
		}
	}
	return fallbackBranchID
}

func allowlisted(path string) bool {
	_, ok := allowlist[path]
	return ok
}
