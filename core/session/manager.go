package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// AuthAPI is the backend authentication surface consumed by the manager.
// Login exchanges credentials for a full grant; Refresh exchanges the current
// token for a new token and expiry without touching the user record.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (Grant, error)
	Refresh(ctx context.Context, token string) (Grant, error)
}

// Manager owns the session state machine: the token/user/expiry triple, the
// expiry timer that forces logout, and the single-flight refresh gate. It is
// an explicitly constructed, injectable instance rather than process-global
// state, so tests and multi-root applications can hold isolated sessions.
//
// All mutations happen under the manager's lock; token and user are always
// set together or cleared together.
type Manager struct {
	api   AuthAPI
	store Store
	cfg   *Config
	log   *slog.Logger

	mu     sync.RWMutex
	token  string
	user   *User
	expiry time.Time
	timer  *time.Timer

	refresh singleflight.Group
}

// New constructs a session manager and restores any persisted session from
// the store. A persisted record that is partial or already expired is
// discarded, leaving the manager logged out; an expired record is also
// cleared from the store.
func New(ctx context.Context, api AuthAPI, store Store, opts ...Option) (*Manager, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &Manager{
		api:   api,
		store: store,
		cfg:   cfg,
		log:   cfg.Logger,
	}

	record, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		// Nothing persisted; start logged out.
	case err != nil:
		return nil, errors.Join(ErrLoadCredentials, err)
	case record.IsExpired():
		if err := store.Clear(ctx); err != nil {
			m.log.Warn("failed to clear expired credentials", "error", err)
		}
	default:
		m.mu.Lock()
		m.token = record.Token
		user := record.User
		m.user = &user
		m.expiry = record.ExpiresAt
		m.armTimerLocked()
		m.mu.Unlock()
		m.log.Debug("session restored",
			"user", record.User.ID,
			"expires_at", record.ExpiresAt)
	}

	return m, nil
}

// Login exchanges credentials for a session. On success the full triple is
// established, persisted, and the expiry timer armed. On failure the current
// state is left untouched and the error is surfaced to the caller.
func (m *Manager) Login(ctx context.Context, creds Credentials) (Session, error) {
	grant, err := m.api.Login(ctx, creds)
	if err != nil {
		return Session{}, err
	}
	if grant.User == nil {
		return Session{}, ErrMissingUser
	}

	ttl := grant.ExpiresIn
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}
	expiry := time.Now().Add(ttl)

	m.mu.Lock()
	m.token = grant.Token
	m.user = grant.User
	m.expiry = expiry
	m.armTimerLocked()
	sess := m.snapshotLocked()
	m.mu.Unlock()

	m.persist(ctx, Record{Token: grant.Token, User: *grant.User, ExpiresAt: expiry})
	m.log.Info("session established", "user", grant.User.ID, "expires_at", expiry)

	return sess, nil
}

// Refresh exchanges the current token for a fresh one, replacing only the
// token and expiry. Concurrent callers share a single in-flight backend call:
// exactly one refresh request is issued, and every waiter receives the same
// token or the same error. A rejected refresh clears the session (one forced
// logout, regardless of waiter count) and surfaces ErrRefreshFailed.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	token, err, _ := m.refresh.Do("refresh", func() (any, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	current := m.token
	m.mu.RUnlock()
	if current == "" {
		return "", ErrNotAuthenticated
	}

	grant, err := m.api.Refresh(ctx, current)
	if err != nil {
		m.log.Warn("refresh rejected, clearing session", "error", err)
		m.ForceLogout(ctx)
		return "", errors.Join(ErrRefreshFailed, err)
	}

	ttl := grant.ExpiresIn
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}
	expiry := time.Now().Add(ttl)

	m.mu.Lock()
	if m.user == nil {
		// Logged out while the refresh was in flight; applying the grant
		// would leave a token without a user.
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	m.token = grant.Token
	m.expiry = expiry
	user := *m.user
	m.armTimerLocked()
	m.mu.Unlock()

	m.persist(ctx, Record{Token: grant.Token, User: user, ExpiresAt: expiry})
	m.log.Debug("session refreshed", "expires_at", expiry)

	return grant.Token, nil
}

// Logout clears the session, the credential store, and all per-session state
// registered through logout hooks, then signals navigation to the given
// target (default: the configured login route). Logout is idempotent:
// repeated calls only re-signal navigation.
func (m *Manager) Logout(ctx context.Context, target ...string) {
	dest := m.cfg.LoginRoute
	if len(target) > 0 && target[0] != "" {
		dest = target[0]
	}

	m.mu.Lock()
	active := m.user != nil || m.token != ""
	if active {
		m.token = ""
		m.user = nil
		m.expiry = time.Time{}
		m.stopTimerLocked()
	}
	m.mu.Unlock()

	if active {
		if err := m.store.Clear(ctx); err != nil {
			m.log.Warn("failed to clear credential store", "error", err)
		}
		for _, hook := range m.cfg.LogoutHooks {
			hook()
		}
		m.log.Info("session cleared")
	}

	if m.cfg.Navigate != nil {
		m.cfg.Navigate(dest)
	}
}

// ForceLogout clears the session and navigates to the login route with the
// session=expired marker, letting the UI distinguish an expired session from
// a manual logout. Used by the expiry timer, 401 handling, and failed refresh.
func (m *Manager) ForceLogout(ctx context.Context) {
	m.Logout(ctx, expiredRoute(m.cfg.LoginRoute))
}

// Current returns a snapshot of the session state.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Token returns the current bearer token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// IsLoggedIn reports whether a complete, unexpired session is held.
func (m *Manager) IsLoggedIn() bool {
	return m.Current().IsLoggedIn()
}

// IsAdmin reports whether the session user carries the admin role.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.IsAdmin()
}

// IsTokenExpired reports whether the held token is past its deadline, less
// the configured refresh leeway. True when logged out.
func (m *Manager) IsTokenExpired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiry.IsZero() || !time.Now().Before(m.expiry.Add(-m.cfg.RefreshLeeway))
}

// Close releases the expiry timer without touching session state or the
// credential store. Call it when tearing down the application root.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
}

func (m *Manager) snapshotLocked() Session {
	sess := Session{Token: m.token, ExpiresAt: m.expiry}
	if m.user != nil {
		user := *m.user
		sess.User = &user
	}
	return sess
}

// armTimerLocked schedules the forced logout for the current expiry,
// cancelling any previously armed timer so expired-then-refreshed sessions
// never fire twice. Callers must hold m.mu.
func (m *Manager) armTimerLocked() {
	m.stopTimerLocked()
	d := time.Until(m.expiry)
	m.timer = time.AfterFunc(d, func() {
		m.log.Info("session expired")
		m.ForceLogout(context.Background())
	})
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// persist writes the record to the credential store. Persistence failures are
// logged but do not tear down the in-memory session: the store is a cache of
// the session, not its source of truth while the process lives.
func (m *Manager) persist(ctx context.Context, record Record) {
	if err := m.store.Save(ctx, record); err != nil {
		m.log.Warn("failed to persist credentials",
			"error", errors.Join(ErrSaveCredentials, err))
	}
}

func expiredRoute(login string) string {
	u, err := url.Parse(login)
	if err != nil {
		return login + "?session=expired"
	}
	q := u.Query()
	q.Set("session", "expired")
	u.RawQuery = q.Encode()
	return u.String()
}
