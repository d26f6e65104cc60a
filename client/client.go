package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/clinicore/authkit/core/branch"
	"github.com/clinicore/authkit/core/config"
	"github.com/clinicore/authkit/core/logger"
	"github.com/clinicore/authkit/core/pipeline"
	"github.com/clinicore/authkit/core/session"
)

// Config holds the client facade configuration. API_BASE_URL is the single
// required external value.
type Config struct {
	BaseURL     string        `env:"API_BASE_URL,required"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	LoginRoute  string        `env:"LOGIN_ROUTE" envDefault:"/login"`
}

// Client bundles the session manager, branch context, and pipeline transport
// into one application-root object. Construct one per application root and
// tear it down with Close.
type Client struct {
	session  *session.Manager
	branches *branch.Context
	http     *http.Client
	log      *slog.Logger
}

// Option configures the client facade.
type Option struct {
	Logger   *slog.Logger
	Navigate func(target string)
	Session  []session.Option
	Base     http.RoundTripper
}

// New constructs the client: restores any persisted session from the store,
// wires the branch context (seeded from a restored user, cleared on logout),
// and installs the pipeline transport on the embedded HTTP client.
func New(ctx context.Context, cfg Config, store session.Store, opt Option) (*Client, error) {
	log := opt.Logger
	if log == nil {
		log = slog.Default()
	}

	branches := branch.NewContext()

	sessionOpts := append([]session.Option{
		session.WithLogger(log),
		session.WithLoginRoute(cfg.LoginRoute),
		session.WithLogoutHook(branches.Clear),
	}, opt.Session...)
	if opt.Navigate != nil {
		sessionOpts = append(sessionOpts, session.WithNavigator(opt.Navigate))
	}

	mgr, err := session.New(ctx, newAuthAPI(cfg.BaseURL, cfg.HTTPTimeout), store, sessionOpts...)
	if err != nil {
		return nil, err
	}

	if current := mgr.Current(); current.User != nil {
		branches.Seed(*current.User)
	}

	pipelineOpts := []pipeline.Option{pipeline.WithLogger(log)}
	if opt.Base != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithBase(opt.Base))
	}
	transport, err := pipeline.New(mgr, branches, store, pipeline.Config{BaseURL: cfg.BaseURL}, pipelineOpts...)
	if err != nil {
		mgr.Close()
		return nil, err
	}

	return &Client{
		session:  mgr,
		branches: branches,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.HTTPTimeout,
		},
		log: log,
	}, nil
}

// NewFromEnv constructs the client from environment configuration.
func NewFromEnv(ctx context.Context, store session.Store, opt Option) (*Client, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	return New(ctx, cfg, store, opt)
}

// Login authenticates and seeds the branch context from the user's branches.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.Session, error) {
	sess, err := c.session.Login(ctx, creds)
	if err != nil {
		c.log.Warn("login failed", logger.Component("client"), logger.Error(err))
		return session.Session{}, err
	}
	if sess.User != nil {
		c.branches.Seed(*sess.User)
	}
	return sess, nil
}

// Logout clears the session and signals navigation to the login route.
func (c *Client) Logout(ctx context.Context) {
	c.session.Logout(ctx)
}

// Session exposes the session manager for guards and UI state.
func (c *Client) Session() *session.Manager {
	return c.session
}

// Branches exposes the branch context.
func (c *Client) Branches() *branch.Context {
	return c.branches
}

// HTTP returns the pipeline-backed HTTP client. Requests may use relative
// API paths; the pipeline resolves them against the backend origin.
func (c *Client) HTTP() *http.Client {
	return c.http
}

// Close releases the session manager's resources without logging out.
func (c *Client) Close() {
	c.session.Close()
}

// Get issues a GET through the pipeline and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body through the pipeline and decodes the
// JSON response into out. A nil in sends no body; a nil out discards it.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body through the pipeline.
func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE through the pipeline.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s %s returned %d", ErrRequestFailed, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(ErrDecodeResponse, err)
	}
	return nil
}
