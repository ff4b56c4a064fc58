package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterReturnsSessionAndProfile(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "  Avery@Example.com ",
		"password": "correct-horse",
		"name":     "Avery",
	})
	expectStatus(t, rr, http.StatusCreated)
	payload := decode(t, rr)
	for _, key := range []string{"accessToken", "refreshToken", "userId"} {
		if value, _ := payload[key].(string); value == "" {
			t.Fatalf("expected %s in %v", key, payload)
		}
	}
	if payload["role"] != "user" {
		t.Fatalf("expected system role user, got %v", payload["role"])
	}

	rr = env.do(http.MethodGet, "/api/me", payload["accessToken"].(string), nil)
	expectStatus(t, rr, http.StatusOK)
	me := decode(t, rr)
	if me["email"] != "avery@example.com" {
		t.Fatalf("expected normalized email, got %v", me["email"])
	}
	if _, leaked := me["passwordHash"]; leaked {
		t.Fatalf("profile must not expose the password hash")
	}
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.register("Avery", "avery@example.com")

	rr := env.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "AVERY@example.com", "password": "correct-horse", "name": "Other",
	})
	expectError(t, rr, http.StatusConflict, "EMAIL_EXISTS")

	rr = env.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "short@example.com", "password": "short", "name": "Short",
	})
	expectError(t, rr, http.StatusBadRequest, "VALIDATION_ERROR")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"email":`))
	raw := httptest.NewRecorder()
	env.handler.ServeHTTP(raw, req)
	expectError(t, raw, http.StatusBadRequest, "INVALID_BODY")
}

func TestLoginWithWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register("Avery", "avery@example.com")

	rr := env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "avery@example.com", "password": "wrong-password"})
	expectError(t, rr, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	rr = env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "nobody@example.com", "password": "wrong-password"})
	expectError(t, rr, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	rr = env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "avery@example.com", "password": "correct-horse"})
	expectStatus(t, rr, http.StatusOK)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "avery@example.com", "password": "correct-horse", "name": "Avery",
	})
	expectStatus(t, rr, http.StatusCreated)
	first := decode(t, rr)
	oldRefresh := first["refreshToken"].(string)

	rr = env.do(http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": oldRefresh})
	expectStatus(t, rr, http.StatusOK)
	second := decode(t, rr)
	newRefresh := second["refreshToken"].(string)
	if newRefresh == oldRefresh {
		t.Fatalf("expected a rotated refresh token")
	}

	rr = env.do(http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": oldRefresh})
	expectError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")

	rr = env.do(http.MethodPost, "/api/auth/logout", second["accessToken"].(string), map[string]any{"refreshToken": newRefresh})
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": newRefresh})
	expectError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")

	rr = env.do(http.MethodPost, "/api/auth/refresh", "", map[string]any{})
	expectError(t, rr, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register("Avery", "avery@example.com")

	rr := env.do(http.MethodPut, "/api/me", token, map[string]any{
		"name":   " Avery Q ",
		"bio":    "Builds things",
		"skills": []string{"go", " ", "go", "sql"},
	})
	expectStatus(t, rr, http.StatusOK)
	payload := decode(t, rr)
	if payload["name"] != "Avery Q" {
		t.Fatalf("expected trimmed name, got %v", payload["name"])
	}
	skills := payload["skills"].([]any)
	if len(skills) != 2 || skills[0] != "go" || skills[1] != "sql" {
		t.Fatalf("expected cleaned skills [go sql], got %v", skills)
	}

	rr = env.do(http.MethodPut, "/api/me", token, map[string]any{"name": "  "})
	expectError(t, rr, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestUserDirectoryHidesInactiveFromNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.admin("Root", "root@example.com")
	userToken, _ := env.register("Avery", "avery@example.com")
	_, blakeID := env.register("Blake", "blake@example.com")

	expectStatus(t, env.do(http.MethodPost, "/api/admin/users/"+blakeID+"/deactivate", adminToken, nil), http.StatusOK)

	rr := env.do(http.MethodGet, "/api/users?includeInactive=true", userToken, nil)
	expectStatus(t, rr, http.StatusOK)
	if got := len(items(t, rr)); got != 2 {
		t.Fatalf("expected 2 active users for a non-admin, got %d", got)
	}

	rr = env.do(http.MethodGet, "/api/users?includeInactive=true", adminToken, nil)
	expectStatus(t, rr, http.StatusOK)
	if got := len(items(t, rr)); got != 3 {
		t.Fatalf("expected 3 users for an admin, got %d", got)
	}
}
