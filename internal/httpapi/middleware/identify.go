package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cs15tutor/tutor/internal/auth"
)

const (
	UsernameKey = "auth_username"
	PlatformKey = "auth_platform"

	// RemoteUserHeader carries the identity injected by the front-facing
	// authentication layer.
	RemoteUserHeader = "X-Remote-User"
)

// Identify resolves the caller's identity from a bearer token or from the
// upstream-injected header. It never aborts: the web client and the editor
// client surface auth failures differently, so enforcement belongs to the
// handlers.
func Identify(issuer *auth.Issuer, upstream auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token := strings.TrimPrefix(h, "Bearer ")
			if username, err := issuer.Verify(token); err == nil {
				c.Set(UsernameKey, username)
				c.Set(PlatformKey, "vscode")
				c.Next()
				return
			}
		}

		creds := auth.Credentials{RemoteUser: c.GetHeader(RemoteUserHeader)}
		if username, err := upstream.Verify(c.Request.Context(), creds); err == nil {
			c.Set(UsernameKey, username)
			c.Set(PlatformKey, "web")
		}
		c.Next()
	}
}

// Identity returns the authenticated username and platform, if any.
func Identity(c *gin.Context) (username, platform string, ok bool) {
	v, found := c.Get(UsernameKey)
	if !found {
		return "", "", false
	}
	username, ok = v.(string)
	if !ok || username == "" {
		return "", "", false
	}
	if p, found := c.Get(PlatformKey); found {
		platform, _ = p.(string)
	}
	return username, platform, true
}
