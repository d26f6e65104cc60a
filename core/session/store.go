package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Persisted key names shared by every credential store implementation.
const (
	KeyToken  = "auth_token"
	KeyUser   = "auth_user"
	KeyExpiry = "auth_expiry"
)

// Record is the durable credential triple written by the session manager.
type Record struct {
	Token     string
	User      User
	ExpiresAt time.Time
}

// IsExpired reports whether the persisted credentials are past their deadline.
func (r Record) IsExpired() bool {
	return r.ExpiresAt.IsZero() || !time.Now().Before(r.ExpiresAt)
}

// Values serializes the record into the persisted key/value form:
// the raw token, the JSON-encoded user, and the expiry as epoch milliseconds.
func (r Record) Values() (map[string]string, error) {
	userJSON, err := json.Marshal(r.User)
	if err != nil {
		return nil, errors.Join(ErrEncodeRecord, err)
	}
	return map[string]string{
		KeyToken:  r.Token,
		KeyUser:   string(userJSON),
		KeyExpiry: strconv.FormatInt(r.ExpiresAt.UnixMilli(), 10),
	}, nil
}

// RecordFromValues rebuilds a record from the persisted key/value form.
// A missing or empty key means the stored state is partial and yields
// ErrNotFound so callers treat it as no session at all.
func RecordFromValues(values map[string]string) (Record, error) {
	token := values[KeyToken]
	userJSON := values[KeyUser]
	expiry := values[KeyExpiry]
	if token == "" || userJSON == "" || expiry == "" {
		return Record{}, ErrNotFound
	}

	var user User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return Record{}, errors.Join(ErrDecodeRecord, err)
	}

	millis, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return Record{}, errors.Join(ErrDecodeRecord, err)
	}

	return Record{
		Token:     token,
		User:      user,
		ExpiresAt: time.UnixMilli(millis),
	}, nil
}

// Store is the durable credential persistence interface. The session manager
// is the only writer; implementations must be safe for concurrent reads.
type Store interface {
	// Load returns the persisted credential record.
	// Returns ErrNotFound when no record, or only a partial one, exists.
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, record Record) error
	// Clear removes any persisted credentials. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
