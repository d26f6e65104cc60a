package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/authkit/core/branch"
	"github.com/clinicore/authkit/core/pipeline"
	"github.com/clinicore/authkit/core/session"
	"github.com/clinicore/authkit/integration/credstore/memory"
)

// stubAPI satisfies session.AuthAPI with canned grants and a refresh counter.
type stubAPI struct {
	refreshes    atomic.Int64
	refreshDelay time.Duration
	refreshErr   error
	loginGrant   session.Grant
}

func (a *stubAPI) Login(context.Context, session.Credentials) (session.Grant, error) {
	return a.loginGrant, nil
}

func (a *stubAPI) Refresh(context.Context, string) (session.Grant, error) {
	a.refreshes.Add(1)
	if a.refreshDelay > 0 {
		time.Sleep(a.refreshDelay)
	}
	if a.refreshErr != nil {
		return session.Grant{}, a.refreshErr
	}
	return session.Grant{Token: "t2", ExpiresIn: time.Hour}, nil
}

// recordedRequest captures what the fake backend saw.
type recordedRequest struct {
	path          string
	authorization string
	contentType   string
	branchID      string
}

type backend struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	status   map[string]int
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{status: make(map[string]int)}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			path:          r.URL.Path,
			authorization: r.Header.Get("Authorization"),
			contentType:   r.Header.Get("Content-Type"),
			branchID:      r.Header.Get("X-Branch-ID"),
		})
		status, ok := b.status[r.URL.Path]
		b.mu.Unlock()
		if !ok {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		w.Write([]byte("{}"))
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) respond(path string, status int) {
	b.mu.Lock()
	b.status[path] = status
	b.mu.Unlock()
}

func (b *backend) recorded() []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedRequest(nil), b.requests...)
}

func (b *backend) last(t *testing.T) recordedRequest {
	t.Helper()
	reqs := b.recorded()
	require.NotEmpty(t, reqs)
	return reqs[len(reqs)-1]
}

type fixture struct {
	backend  *backend
	api      *stubAPI
	store    *memory.Store
	manager  *session.Manager
	branches *branch.Context
	client   *http.Client
	nav      []string
	navMu    sync.Mutex
}

func defaultGrant() session.Grant {
	return session.Grant{
		Token:     "t1",
		ExpiresIn: time.Hour,
		User: &session.User{
			ID:   uuid.New(),
			Name: "J. Doe",
			Branches: []session.Branch{
				{ID: 1, Name: "North"},
				{ID: 2, Name: "Central", IsDefault: true},
			},
		},
	}
}

func newFixture(t *testing.T, sessionOpts ...session.Option) *fixture {
	t.Helper()

	f := &fixture{
		backend: newBackend(t),
		api:     &stubAPI{loginGrant: defaultGrant()},
		store:   memory.New(),
	}

	opts := append([]session.Option{
		session.WithNavigator(func(target string) {
			f.navMu.Lock()
			f.nav = append(f.nav, target)
			f.navMu.Unlock()
		}),
	}, sessionOpts...)

	mgr, err := session.New(context.Background(), f.api, f.store, opts...)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)
	f.manager = mgr

	f.branches = branch.NewContext()

	transport, err := pipeline.New(mgr, f.branches, f.store, pipeline.Config{
		BaseURL: f.backend.server.URL,
	})
	require.NoError(t, err)

	f.client = &http.Client{Transport: transport}
	return f
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.manager.Login(context.Background(), session.Credentials{Login: "j.doe", Password: "pw"})
	require.NoError(t, err)
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func (f *fixture) navTargets() []string {
	f.navMu.Lock()
	defer f.navMu.Unlock()
	return append([]string(nil), f.nav...)
}

func TestTransport_TargetResolution(t *testing.T) {
	t.Parallel()

	t.Run("relative API path resolves to the backend origin", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.login(t)

		resp := f.get(t, "/api/patients")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/api/patients", f.backend.last(t).path)
	})

	t.Run("absolute URL passes through unchanged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.login(t)

		resp := f.get(t, f.backend.server.URL+"/api/doctors")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/api/doctors", f.backend.last(t).path)
	})
}

func TestTransport_CredentialAttachment(t *testing.T) {
	t.Parallel()

	t.Run("attaches bearer token and JSON content type", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.login(t)

		f.get(t, "/api/patients")

		got := f.backend.last(t)
		assert.Equal(t, "Bearer t1", got.authorization)
		assert.Equal(t, "application/json", got.contentType)
	})

	t.Run("passes through without a token", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		// No login: the request still goes out so the backend's own
		// rejection is what the caller sees.
		f.backend.respond("/api/patients", http.StatusUnauthorized)

		resp := f.get(t, "/api/patients")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, f.backend.last(t).authorization)
	})

	t.Run("refreshes an expired token before sending", func(t *testing.T) {
		t.Parallel()

		// Leeway larger than the TTL: the token is immediately considered
		// expired for refresh purposes while the session stays live.
		f := newFixture(t, session.WithRefreshLeeway(2*time.Hour))
		f.login(t)
		require.True(t, f.manager.IsTokenExpired())

		resp := f.get(t, "/api/patients")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(1), f.api.refreshes.Load())
		assert.Equal(t, "Bearer t2", f.backend.last(t).authorization)
		assert.Equal(t, "t2", f.manager.Token())
		assert.True(t, f.manager.IsLoggedIn())
		assert.Empty(t, f.navTargets())
	})

	t.Run("aborts the request when refresh fails", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, session.WithRefreshLeeway(2*time.Hour))
		f.api.refreshErr = errors.New("token revoked")
		f.login(t)

		req, err := http.NewRequest(http.MethodGet, "/api/patients", nil)
		require.NoError(t, err)
		_, err = f.client.Do(req)

		// The refresh error supersedes the request's own outcome.
		require.Error(t, err)
		assert.ErrorIs(t, err, session.ErrRefreshFailed)
		assert.False(t, f.manager.IsLoggedIn())
		assert.Equal(t, []string{"/login?session=expired"}, f.navTargets())

		// The guarded request never reached the backend.
		for _, r := range f.backend.recorded() {
			assert.NotEqual(t, "/api/patients", r.path)
		}
	})

	t.Run("401 response forces logout", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.login(t)
		f.backend.respond("/api/patients", http.StatusUnauthorized)

		resp := f.get(t, "/api/patients")

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.False(t, f.manager.IsLoggedIn())
		assert.Equal(t, []string{"/login?session=expired"}, f.navTargets())
	})

	t.Run("403 response has no session side effects", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.login(t)
		f.backend.respond("/api/billing", http.StatusForbidden)

		resp := f.get(t, "/api/billing")

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.True(t, f.manager.IsLoggedIn())
		assert.Empty(t, f.navTargets())
	})
}

func TestTransport_Allowlist(t *testing.T) {
	t.Parallel()

	allowlisted := []string{
		"/api/auth/login",
		"/api/auth/register",
		"/api/auth/forgot-password",
		"/api/auth/reset-password",
	}

	t.Run("never carries credentials", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.login(t)

		for _, path := range allowlisted {
			f.get(t, path)
			got := f.backend.last(t)
			assert.Empty(t, got.authorization, path)
			assert.Empty(t, got.branchID, path)
		}
	})

	t.Run("never triggers refresh", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, session.WithRefreshLeeway(2*time.Hour))
		f.login(t)
		require.True(t, f.manager.IsTokenExpired())

		f.get(t, "/api/auth/login")
		assert.Equal(t, int64(0), f.api.refreshes.Load())
	})

	t.Run("401 does not tear down the session", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.login(t)
		f.backend.respond("/api/auth/login", http.StatusUnauthorized)

		resp := f.get(t, "/api/auth/login")

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.True(t, f.manager.IsLoggedIn())
		assert.Empty(t, f.navTargets())
	})
}

func TestTransport_TenantAttachment(t *testing.T) {
	t.Parallel()

	t.Run("uses the active branch", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.login(t)
		f.branches.Set(5)

		f.get(t, "/api/patients")
		assert.Equal(t, "5", f.backend.last(t).branchID)
	})

	t.Run("falls back to the persisted default branch", func(t *testing.T) {
		t.Parallel()

		// User branches: id 1 (not default), id 2 (default). No active
		// selection, so the persisted record decides.
		f := newFixture(t)
		f.login(t)

		f.get(t, "/api/patients")
		assert.Equal(t, "2", f.backend.last(t).branchID)
	})

	t.Run("falls back to branch 1 without a persisted default", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		grant := defaultGrant()
		grant.User.Branches = []session.Branch{{ID: 4}, {ID: 5}}
		f.api.loginGrant = grant
		f.login(t)

		f.get(t, "/api/patients")
		assert.Equal(t, "1", f.backend.last(t).branchID)
	})

	t.Run("falls back to branch 1 with an empty store", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		f.get(t, "/api/patients")
		assert.Equal(t, "1", f.backend.last(t).branchID)
	})

	t.Run("skips auth endpoints", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.login(t)
		f.branches.Set(5)

		f.get(t, "/api/auth/refresh")
		assert.Empty(t, f.backend.last(t).branchID)
	})
}

func TestTransport_ConcurrentExpiredRequestsShareOneRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t, session.WithRefreshLeeway(2*time.Hour))
	f.api.refreshDelay = 50 * time.Millisecond
	f.login(t)

	const callers = 25
	var wg sync.WaitGroup
	statuses := make([]int, callers)
	errs := make([]error, callers)

	wg.Add(callers)
	for i := range callers {
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, "/api/patients", nil)
			if err != nil {
				errs[i] = err
				return
			}
			resp, err := f.client.Do(req)
			if err != nil {
				errs[i] = err
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	// Exactly one refresh reached the backend; every request completed with
	// the refreshed token.
	assert.Equal(t, int64(1), f.api.refreshes.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, http.StatusOK, statuses[i])
	}
	for _, r := range f.backend.recorded() {
		assert.Equal(t, "Bearer t2", r.authorization)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	mgr, err := session.New(context.Background(), &stubAPI{}, memory.New())
	require.NoError(t, err)
	defer mgr.Close()

	_, err = pipeline.New(mgr, branch.NewContext(), memory.New(), pipeline.Config{})
	assert.ErrorIs(t, err, pipeline.ErrMissingBaseURL)

	_, err = pipeline.New(mgr, branch.NewContext(), memory.New(), pipeline.Config{BaseURL: "not-a-url"})
	assert.ErrorIs(t, err, pipeline.ErrMissingBaseURL)
}


