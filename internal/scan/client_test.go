package scan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newBackendStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var creds credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Password != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errorResponse{Error: "invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(tokenResponse{Token: "test-token"})
	})
	mux.HandleFunc("/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		serveScan(w, r, "scanned")
	})
	mux.HandleFunc("/scan/activate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		serveScan(w, r, "active")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func serveScan(w http.ResponseWriter, r *http.Request, status string) {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errorResponse{Error: "unauthorized"})
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScannedURL == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "empty scan payload"})
		return
	}

	var resp scanResponse
	resp.DestinationURL = "https://app.example.com/qrcodes/" + req.ScannedURL
	resp.QR.ID = req.ScannedURL
	resp.QR.Status = status
	json.NewEncoder(w).Encode(resp)
}

func TestClientLoginAndResolve(t *testing.T) {
	server := newBackendStub(t)
	client := NewClient(server.URL, nil)

	if err := client.Login(context.Background(), "you@example.com", "secret123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if client.Tokens().Get() != "test-token" {
		t.Fatalf("token not stored: %q", client.Tokens().Get())
	}

	result, err := client.Resolve(context.Background(), "token-1", "activate")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.QRID != "token-1" || result.Status != "active" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.DestinationURL != "https://app.example.com/qrcodes/token-1" {
		t.Fatalf("unexpected destination: %q", result.DestinationURL)
	}
}

func TestClientBadCredentials(t *testing.T) {
	server := newBackendStub(t)
	client := NewClient(server.URL, nil)

	err := client.Login(context.Background(), "you@example.com", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClientPurgesTokenOnUnauthorized(t *testing.T) {
	server := newBackendStub(t)
	client := NewClient(server.URL, nil)
	client.Tokens().Set("stale-token")

	_, err := client.Resolve(context.Background(), "token-1", "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if client.Tokens().Get() != "" {
		t.Fatal("stale token not purged after 401")
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	server := newBackendStub(t)
	client := NewClient(server.URL, nil)
	client.Tokens().Set("test-token")

	_, err := client.Resolve(context.Background(), "", "")
	if err == nil || err.Error() != "/scan: empty scan payload" {
		t.Fatalf("expected decoded API error, got %v", err)
	}
}
