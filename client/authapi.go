package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/clinicore/authkit/core/session"
)

// Backend authentication endpoints (relative to the backend origin).
const (
	loginPath   = "/api/auth/login"
	refreshPath = "/api/auth/refresh"
)

// grantPayload is the backend's wire shape for login and refresh responses.
// Refresh responses omit the user.
type grantPayload struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	User        *session.User `json:"user,omitempty"`
}

// authAPI implements session.AuthAPI over the backend's REST surface. It
// deliberately uses its own bare HTTP client rather than the pipeline
// transport: login carries no credentials yet, and refresh must attach the
// expiring token directly instead of going back through expiry detection.
type authAPI struct {
	baseURL string
	http    *http.Client
}

func newAuthAPI(baseURL string, timeout time.Duration) *authAPI {
	return &authAPI{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Login posts credentials and returns the resulting grant. Any non-2xx
// response is surfaced as ErrInvalidCredentials with the status attached;
// the caller's session state is never touched here.
func (a *authAPI) Login(ctx context.Context, creds session.Credentials) (session.Grant, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return session.Grant{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return session.Grant{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return session.Grant{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return session.Grant{}, fmt.Errorf("%w: backend returned %d", session.ErrInvalidCredentials, resp.StatusCode)
	}

	return decodeGrant(resp)
}

// Refresh posts the expiring token and returns the replacement grant.
func (a *authAPI) Refresh(ctx context.Context, token string) (session.Grant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+refreshPath, nil)
	if err != nil {
		return session.Grant{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.http.Do(req)
	if err != nil {
		return session.Grant{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return session.Grant{}, fmt.Errorf("%w: backend returned %d", ErrRequestFailed, resp.StatusCode)
	}

	return decodeGrant(resp)
}

func decodeGrant(resp *http.Response) (session.Grant, error) {
	var payload grantPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return session.Grant{}, errors.Join(ErrDecodeResponse, err)
	}
	return session.Grant{
		Token:     payload.AccessToken,
		TokenType: payload.TokenType,
		ExpiresIn: time.Duration(payload.ExpiresIn) * time.Second,
		User:      payload.User,
	}, nil
}

var _ session.AuthAPI = (*authAPI)(nil)
