package sessions

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireSession is the stored form of a Session; times are epoch seconds.
type wireSession struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// Marshal encodes a session for storage outside the process.
func Marshal(s Session) ([]byte, error) {
	w := wireSession{
		UserID:       s.UserID,
		Email:        s.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		IDToken:      s.IDToken,
		ExpiresAt:    unixOrZero(s.ExpiresAt),
		CreatedAt:    unixOrZero(s.CreatedAt),
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("[sessions Marshal] %w", err)
	}
	return b, nil
}

// Unmarshal decodes a session produced by Marshal.
func Unmarshal(b []byte) (Session, error) {
	var w wireSession
	if err := json.Unmarshal(b, &w); err != nil {
		return Session{}, fmt.Errorf("[sessions Unmarshal] %w", err)
	}
	return Session{
		UserID:       w.UserID,
		Email:        w.Email,
		AccessToken:  w.AccessToken,
		RefreshToken: w.RefreshToken,
		IDToken:      w.IDToken,
		ExpiresAt:    timeOrZero(w.ExpiresAt),
		CreatedAt:    timeOrZero(w.CreatedAt),
	}, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
