package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"collabhub/api/internal/authpw"
	"collabhub/api/internal/config"
	"collabhub/api/internal/search"
	"collabhub/api/internal/session"
	"collabhub/api/internal/store"
	"collabhub/api/internal/upload"
	"collabhub/api/internal/util"
)

type testEnv struct {
	t        *testing.T
	store    *store.MemoryStore
	sessions *session.MemoryStore
	files    *upload.MemoryStorage
	service  *Service
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	sessions := session.NewMemoryStore()
	files := upload.NewMemoryStorage()
	log := zaptest.NewLogger(t)

	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		CORSOrigin: "*",
	}
	svc := New(cfg, Deps{
		Store:     st,
		Sessions:  sessions,
		Passwords: authpw.NewService(st).WithCost(bcrypt.MinCost),
		Search:    search.NewService(nil, search.NewScan(ProjectSource(st.ListAllProjects)), nil, log),
		Files:     files,
		Logger:    log,
	})
	svc.notify = func(fn func()) { fn() }

	return &testEnv{
		t:        t,
		store:    st,
		sessions: sessions,
		files:    files,
		service:  svc,
		handler:  NewHTTPServer(svc, cfg.CORSOrigin).Handler(),
	}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// register signs a user up over HTTP and returns the access token and id.
func (e *testEnv) register(name, email string) (string, string) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    email,
		"password": "correct-horse",
		"name":     name,
	})
	expectStatus(e.t, rr, http.StatusCreated)
	payload := decode(e.t, rr)
	return payload["accessToken"].(string), payload["userId"].(string)
}

// admin stores an active admin directly and logs in as it.
func (e *testEnv) admin(name, email string) (string, string) {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		e.t.Fatalf("hash password: %v", err)
	}
	user := store.User{
		ID:           util.NewID("usr"),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         store.SystemRoleAdmin,
		Active:       true,
	}
	if err := e.store.CreateUser(context.Background(), user); err != nil {
		e.t.Fatalf("create admin: %v", err)
	}
	rr := e.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": "correct-horse"})
	expectStatus(e.t, rr, http.StatusOK)
	return decode(e.t, rr)["accessToken"].(string), user.ID
}

func (e *testEnv) createProject(token, title string) string {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/projects", token, map[string]any{"title": title, "tags": []string{"go"}})
	expectStatus(e.t, rr, http.StatusCreated)
	return decode(e.t, rr)["id"].(string)
}

func (e *testEnv) invite(token, projectID, receiverID, role string) string {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/collaborations", token, map[string]any{
		"projectId":  projectID,
		"receiverId": receiverID,
		"role":       role,
	})
	expectStatus(e.t, rr, http.StatusCreated)
	return decode(e.t, rr)["id"].(string)
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, rr.Code, rr.Body.String())
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	if got := decode(t, rr)["code"]; got != code {
		t.Fatalf("expected code %s, got %v", code, got)
	}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func items(t *testing.T, rr *httptest.ResponseRecorder) []any {
	t.Helper()
	list, ok := decode(t, rr)["items"].([]any)
	if !ok {
		t.Fatalf("expected items array, body=%s", rr.Body.String())
	}
	return list
}
