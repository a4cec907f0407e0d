package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/qrtrack/apiserver/internal/services"
	"github.com/qrtrack/apiserver/internal/store"
	"github.com/qrtrack/apiserver/types"
)

const testSecret = "test-secret"

// fakeUserRepo is an in-memory services.UserRepository.
type fakeUserRepo struct {
	byEmail map[string]types.User
	nextID  int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]types.User), nextID: 1}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if _, exists := r.byEmail[user.Email]; exists {
		return types.User{}, store.ErrConflict
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.byEmail[user.Email] = user
	return user, nil
}

// fakeQRRepo is an in-memory services.QRRepository preserving insertion
// order.
type fakeQRRepo struct {
	codes []types.QRCode
}

func (r *fakeQRRepo) CreateBatch(ctx context.Context, codes []types.QRCode) ([]types.QRCode, error) {
	for _, c := range codes {
		for _, existing := range r.codes {
			if existing.ID == c.ID {
				return nil, store.ErrConflict
			}
		}
	}
	r.codes = append(r.codes, codes...)
	return codes, nil
}

func (r *fakeQRRepo) List(ctx context.Context, offset, limit int) ([]types.QRCode, int, error) {
	total := len(r.codes)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return r.codes[offset:end], total, nil
}

func (r *fakeQRRepo) Get(ctx context.Context, id string) (types.QRCode, error) {
	for _, c := range r.codes {
		if c.ID == id {
			return c, nil
		}
	}
	return types.QRCode{}, store.ErrNotFound
}

func (r *fakeQRRepo) UpdateStatus(ctx context.Context, id, status string) (types.QRCode, error) {
	for i := range r.codes {
		if r.codes[i].ID == id {
			r.codes[i].Status = status
			return r.codes[i], nil
		}
	}
	return types.QRCode{}, store.ErrNotFound
}

func (r *fakeQRRepo) DeleteAll(ctx context.Context) (int64, error) {
	n := int64(len(r.codes))
	r.codes = nil
	return n, nil
}

// fakeScanLog is an in-memory services.ScanLog.
type fakeScanLog struct {
	events []types.ScanEvent
}

func (l *fakeScanLog) Append(ctx context.Context, event types.ScanEvent) (types.ScanEvent, error) {
	event.ID = int64(len(l.events) + 1)
	l.events = append(l.events, event)
	return event, nil
}

func (l *fakeScanLog) ListByQR(ctx context.Context, qrID string, limit int) ([]types.ScanEvent, error) {
	var out []types.ScanEvent
	for _, e := range l.events {
		if e.QRID == qrID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func stubRender(id string) (string, error) {
	return "data:image/png;base64,stub-" + id, nil
}

// newTestServer wires the full route tree the way the server does, with
// in-memory repositories.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	userService := services.NewUserService(newFakeUserRepo())
	qrService := services.NewQRService(&fakeQRRepo{}, stubRender)
	scanService := services.NewScanService(qrService, &fakeScanLog{}, nil, "https://app.example.com")

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testSecret)
	})
	r.Route("/qrcodes", func(r chi.Router) {
		QRRouter(r, qrService, scanService, RequireAuth(testSecret))
	})
	r.Route("/scan", func(r chi.Router) {
		ScanRouter(r, scanService, RequireAuth(testSecret))
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

// doJSON issues a request with an optional bearer token and JSON body.
func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	switch payload := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(payload)
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// registerUser creates an account and returns its token.
func registerUser(t *testing.T, serverURL, email string) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, serverURL+"/auth/register", "",
		RegisterRequest{Email: email, Password: "secret123"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d", resp.StatusCode)
	}

	var auth AuthResponse
	decodeBody(t, resp, &auth)
	if auth.Token == "" {
		t.Fatal("register returned no token")
	}
	return auth.Token
}
