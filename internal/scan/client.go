package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUnauthorized is returned when the backend rejects the token. The
// stored token is purged before it is returned; the caller must log in
// again.
var ErrUnauthorized = errors.New("unauthorized")

// TokenStore is the single place the session token lives.
type TokenStore struct {
	mu    sync.Mutex
	token string
}

func (t *TokenStore) Set(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

func (t *TokenStore) Get() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

func (t *TokenStore) Clear() {
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
}

// Client talks to the backend API. It implements Resolver.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenStore
}

func NewClient(baseURL string, tokens *TokenStore) *Client {
	if tokens == nil {
		tokens = &TokenStore{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
	}
}

// Tokens exposes the client's token store.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type scanRequest struct {
	ScannedURL string `json:"scannedUrl"`
}

type scanResponse struct {
	DestinationURL string `json:"destinationUrl"`
	QR             struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"qr"`
}

// Login authenticates and stores the issued token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp tokenResponse
	if err := c.post(ctx, "/auth/login", credentialsRequest{Email: email, Password: password}, &resp); err != nil {
		return err
	}
	c.tokens.Set(resp.Token)
	return nil
}

// Register creates an account and stores the issued token.
func (c *Client) Register(ctx context.Context, email, password string) error {
	var resp tokenResponse
	if err := c.post(ctx, "/auth/register", credentialsRequest{Email: email, Password: password}, &resp); err != nil {
		return err
	}
	c.tokens.Set(resp.Token)
	return nil
}

// Resolve posts decoded text for resolution. An empty action means a
// generic scan.
func (c *Client) Resolve(ctx context.Context, decodedText, action string) (Result, error) {
	path := "/scan"
	if action != "" {
		path += "/" + url.PathEscape(action)
	}

	var resp scanResponse
	if err := c.post(ctx, path, scanRequest{ScannedURL: decodedText}, &resp); err != nil {
		return Result{}, err
	}
	return Result{
		QRID:           resp.QR.ID,
		Status:         resp.QR.Status,
		DestinationURL: resp.DestinationURL,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.Get(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Clear()
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", path, apiErr.Error)
		}
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
