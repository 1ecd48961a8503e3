package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoUpstreamIdentity = errors.New("auth: no upstream identity")
	ErrBadCredentials     = errors.New("auth: bad credentials")
)

// Credentials carries whatever a request presented: either an identity
// injected by the front-facing authentication layer, or a raw
// username/password pair from the direct login path.
type Credentials struct {
	RemoteUser string
	Username   string
	Password   string
}

// Verifier answers "who is this user". Implementations return a normalized
// username or an error; they never issue tokens themselves.
type Verifier interface {
	Verify(ctx context.Context, creds Credentials) (string, error)
}

// UpstreamVerifier trusts the remote-user field propagated by the reverse
// proxy. Presence of the field is proof of identity.
type UpstreamVerifier struct{}

func NewUpstreamVerifier() *UpstreamVerifier { return &UpstreamVerifier{} }

func (v *UpstreamVerifier) Verify(_ context.Context, creds Credentials) (string, error) {
	u := strings.ToLower(strings.TrimSpace(creds.RemoteUser))
	if u == "" {
		return "", ErrNoUpstreamIdentity
	}
	return u, nil
}

const minPasswordLen = 4

// DevVerifier accepts any syntactically valid username/password pair. It
// performs no real credential check and must only be constructed when the
// dev-mode flag is set at process start.
type DevVerifier struct{}

func NewDevVerifier() *DevVerifier { return &DevVerifier{} }

func (v *DevVerifier) Verify(_ context.Context, creds Credentials) (string, error) {
	u := strings.ToLower(strings.TrimSpace(creds.Username))
	if u == "" || len(strings.TrimSpace(creds.Password)) < minPasswordLen {
		return "", ErrBadCredentials
	}
	return u, nil
}
