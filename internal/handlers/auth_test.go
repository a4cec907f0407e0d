package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/qrtrack/apiserver/types"
)

func TestRegisterAndMe(t *testing.T) {
	server := newTestServer(t)
	token := registerUser(t, server.URL, "you@example.com")

	resp := doJSON(t, http.MethodGet, server.URL+"/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}

	var user types.User
	decodeBody(t, resp, &user)
	if user.Email != "you@example.com" {
		t.Fatalf("me returned %q", user.Email)
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	server := newTestServer(t)
	registerUser(t, server.URL, " You@Example.COM ")

	// Login with the canonical form must succeed.
	resp := doJSON(t, http.MethodPost, server.URL+"/auth/login", "",
		LoginRequest{Email: "you@example.com", Password: "secret123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login after normalized register: status %d", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	server := newTestServer(t)

	cases := []struct {
		name string
		body any
	}{
		{"invalid email", RegisterRequest{Email: "not-an-email", Password: "secret123"}},
		{"short password", RegisterRequest{Email: "you@example.com", Password: "short"}},
		{"malformed body", "{not json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, server.URL+"/auth/register", "", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	server := newTestServer(t)
	registerUser(t, server.URL, "you@example.com")

	resp := doJSON(t, http.MethodPost, server.URL+"/auth/register", "",
		RegisterRequest{Email: "you@example.com", Password: "secret123"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409", resp.StatusCode)
	}

	var apiErr ErrorResponse
	decodeBody(t, resp, &apiErr)
	if apiErr.Error != "email already registered" {
		t.Fatalf("unexpected error %q", apiErr.Error)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	server := newTestServer(t)
	registerUser(t, server.URL, "you@example.com")

	cases := []struct {
		name string
		body LoginRequest
	}{
		{"wrong password", LoginRequest{Email: "you@example.com", Password: "wrong-password"}},
		{"unknown email", LoginRequest{Email: "nobody@example.com", Password: "secret123"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, server.URL+"/auth/login", "", tc.body)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status %d, want 401", resp.StatusCode)
			}

			var apiErr ErrorResponse
			decodeBody(t, resp, &apiErr)
			if apiErr.Error != "invalid credentials" {
				t.Fatalf("unexpected error %q", apiErr.Error)
			}
		})
	}
}

func TestLoginIssuesWorkingToken(t *testing.T) {
	server := newTestServer(t)
	registerUser(t, server.URL, "you@example.com")

	resp := doJSON(t, http.MethodPost, server.URL+"/auth/login", "",
		LoginRequest{Email: "you@example.com", Password: "secret123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}

	var auth AuthResponse
	decodeBody(t, resp, &auth)

	me := doJSON(t, http.MethodGet, server.URL+"/auth/me", auth.Token, nil)
	if me.StatusCode != http.StatusOK {
		t.Fatalf("me with login token: status %d", me.StatusCode)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	server := newTestServer(t)
	registerUser(t, server.URL, "you@example.com")

	expired, err := issueToken(1, []byte(testSecret), -time.Minute)
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}
	wrongKey, err := issueToken(1, []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("issue foreign token: %v", err)
	}

	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
		{"expired token", expired},
		{"wrong signing key", wrongKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodGet, server.URL+"/auth/me", tc.token, nil)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestTokenSubjectRoundTrip(t *testing.T) {
	token, err := issueToken(42, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	subject, err := parseTokenSubject(token, []byte(testSecret))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if subject != "42" {
		t.Fatalf("subject = %q, want 42", subject)
	}
}
