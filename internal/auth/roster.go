package auth

import (
	"regexp"
	"strings"
)

// loginNamePattern matches a plausible university login name.
var loginNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,15}$`)

// Roster decides whether an authenticated user may use the tutor at all.
// In dev mode any well-formed login name is allowed.
type Roster struct {
	allowed map[string]struct{}
	devMode bool
}

func NewRoster(usernames []string, devMode bool) *Roster {
	allowed := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		allowed[strings.ToLower(strings.TrimSpace(u))] = struct{}{}
	}
	return &Roster{allowed: allowed, devMode: devMode}
}

func (r *Roster) Allowed(username string) bool {
	u := strings.ToLower(strings.TrimSpace(username))
	if _, ok := r.allowed[u]; ok {
		return true
	}
	return r.devMode && loginNamePattern.MatchString(u)
}
