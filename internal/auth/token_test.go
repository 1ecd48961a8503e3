package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIssueVerify_RoundTrip(t *testing.T) {
	iss := NewIssuer("test-secret", 24*time.Hour)

	tok, err := iss.Issue("Mkazer01")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != "mkazer01" {
		t.Fatalf("expected normalized username mkazer01, got %q", got)
	}
}

func TestVerify_Expired(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)

	tok, err := iss.Issue("student")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Move the clock past expiry.
	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := iss.Verify(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := iss.Verify(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("token %q: expected ErrTokenMalformed, got %v", tok, err)
		}
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := NewIssuer("secret-a", time.Hour).Issue("student")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer("secret-b", time.Hour).Verify(tok); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for wrong secret, got %v", err)
	}
}

func TestUpstreamVerifier(t *testing.T) {
	v := NewUpstreamVerifier()

	u, err := v.Verify(context.Background(), Credentials{RemoteUser: " Vhenao01 "})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if u != "vhenao01" {
		t.Fatalf("expected vhenao01, got %q", u)
	}

	if _, err := v.Verify(context.Background(), Credentials{}); !errors.Is(err, ErrNoUpstreamIdentity) {
		t.Fatalf("expected ErrNoUpstreamIdentity, got %v", err)
	}
}

func TestDevVerifier(t *testing.T) {
	v := NewDevVerifier()

	u, err := v.Verify(context.Background(), Credentials{Username: "dev_user", Password: "anything"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if u != "dev_user" {
		t.Fatalf("expected dev_user, got %q", u)
	}

	cases := []Credentials{
		{Username: "", Password: "anything"},
		{Username: "dev_user", Password: ""},
		{Username: "dev_user", Password: "ab"},
	}
	for _, creds := range cases {
		if _, err := v.Verify(context.Background(), creds); !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("creds %+v: expected ErrBadCredentials, got %v", creds, err)
		}
	}
}

func TestRoster(t *testing.T) {
	r := NewRoster([]string{"vhenao01", "Agomez08"}, false)

	if !r.Allowed("VHENAO01") {
		t.Fatal("listed user should be allowed")
	}
	if r.Allowed("stranger1") {
		t.Fatal("unlisted user should be denied outside dev mode")
	}

	dev := NewRoster(nil, true)
	if !dev.Allowed("stranger1") {
		t.Fatal("dev mode should allow well-formed login names")
	}
	if dev.Allowed("!!bad!!") {
		t.Fatal("dev mode should still reject malformed login names")
	}
}
