package app

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"collabhub/api/internal/assist"
	"collabhub/api/internal/auth"
	"collabhub/api/internal/authpw"
	"collabhub/api/internal/collab"
	"collabhub/api/internal/export"
	"collabhub/api/internal/session"
	"collabhub/api/internal/store"
	"collabhub/api/internal/upload"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"domain", domainError(http.StatusTeapot, "TEAPOT", "short and stout", nil), http.StatusTeapot, "TEAPOT"},
		{"validation", collab.ValidationError.New("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"forbidden", collab.Forbidden.New("no"), http.StatusForbidden, "FORBIDDEN"},
		{"not found", collab.NotFound.Wrap(store.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"bare store not found", fmt.Errorf("get upload: %w", store.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", collab.Conflict.Wrap(store.ErrDuplicate), http.StatusConflict, "CONFLICT"},
		{"invalid state", collab.InvalidState.New("pending to removed"), http.StatusConflict, "INVALID_STATE"},
		{"stale state", collab.InvalidState.Wrap(store.ErrStaleState), http.StatusConflict, "INVALID_STATE"},
		{"policy", collab.PolicyViolation.New("last admin"), http.StatusUnprocessableEntity, "POLICY_VIOLATION"},
		{"bad signup", fmt.Errorf("%w: password too short", authpw.ErrInvalidInput), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"email taken", authpw.ErrEmailTaken, http.StatusConflict, "EMAIL_EXISTS"},
		{"credentials", authpw.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"disabled", authpw.ErrAccountDisabled, http.StatusForbidden, "ACCOUNT_DISABLED"},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"refresh missing", session.ErrSessionNotFound, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"no storage", upload.ErrNotConfigured, http.StatusServiceUnavailable, "UPLOADS_UNAVAILABLE"},
		{"no assist", assist.ErrNotConfigured, http.StatusServiceUnavailable, "SUGGESTIONS_UNAVAILABLE"},
		{"no chromium", fmt.Errorf("%w: chromium not installed", export.ErrPDFDependencyMissing), http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "SERVER_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code, _, _ := mapError(tc.err)
			if status != tc.status || code != tc.code {
				t.Fatalf("expected %d %s, got %d %s", tc.status, tc.code, status, code)
			}
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	want := store.Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC), ID: "msg_abc.def"}
	got, err := decodeCursor(encodeCursor(want))
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if zero, err := decodeCursor(""); err != nil || !zero.IsZero() {
		t.Fatalf("expected zero cursor for empty input, got %+v %v", zero, err)
	}
	for _, raw := range []string{"nodot", "abc.msg_1", "123."} {
		if _, err := decodeCursor(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestCleanList(t *testing.T) {
	got := cleanList([]string{" go ", "", "sql", "go", "  "})
	if len(got) != 2 || got[0] != "go" || got[1] != "sql" {
		t.Fatalf("expected [go sql], got %v", got)
	}
	if got := cleanList(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{0: defaultPageSize, -3: defaultPageSize, 5: 5, 1000: maxPageSize}
	for in, want := range cases {
		if got := clampLimit(in); got != want {
			t.Fatalf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
