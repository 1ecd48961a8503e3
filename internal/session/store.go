package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

var (
	// ErrNotFound covers both unknown and expired sessions; callers cannot
	// tell the two apart.
	ErrNotFound        = errors.New("session: not found")
	ErrAlreadyTerminal = errors.New("session: already terminal")
)

// LoginSession is one pending login handshake from an editor client. It
// transitions pending -> completed or pending -> error exactly once;
// terminal states are immutable.
type LoginSession struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	Token     string    `json:"token,omitempty"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store holds login handshake state. Complete and Fail use compare-and-set
// transitions: concurrent completion attempts must not both succeed.
type Store interface {
	Create(ctx context.Context) (string, error)
	Complete(ctx context.Context, sessionID, token, username string) error
	Fail(ctx context.Context, sessionID string) error
	Get(ctx context.Context, sessionID string) (*LoginSession, error)
}

// NewID generates a cryptographically random session identifier.
// 32 bytes = 256 bits of entropy.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
