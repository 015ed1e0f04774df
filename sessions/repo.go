package sessions

import (
	"context"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Repo stores sessions by login session id (the value of the session cookie).
// Get returns errors.ErrNoSession when nothing is stored under the id.
type Repo interface {
	Upsert(ctx context.Context, sessionID string, session Session) error
	Get(ctx context.Context, sessionID string) (Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// Store holds the one current session of a caller. Get returns nil, nil when
// there is no session.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, session *Session) error
	Clear(ctx context.Context) error
}

// Key derives the storage key for a login session id so raw cookie values are
// never used as keys at rest.
func Key(sessionID string) string {
	sum := blake2b.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}
