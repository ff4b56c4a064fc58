package app

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/zeebo/errs"

	"collabhub/api/internal/collab"
	"collabhub/api/internal/store"
)

func TestInvalidInputCarriesValidationClass(t *testing.T) {
	err := fmt.Errorf("update profile: %w", invalidInput("name is required", nil))
	if !collab.ValidationError.Has(err) {
		t.Fatalf("expected validation class on %v", err)
	}
	domainErr, ok := classified(err)
	if !ok {
		t.Fatal("expected classified error")
	}
	if domainErr.Status != http.StatusBadRequest || domainErr.Code != "VALIDATION_ERROR" || domainErr.Message != "name is required" {
		t.Fatalf("unexpected rendering: %+v", domainErr)
	}
	if domainErr.Class != &collab.ValidationError {
		t.Fatal("expected the validation class to be recorded")
	}
}

func TestClassifiedRecordsClassForStoreSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		class  *errs.Class
		status int
	}{
		{"missing row", fmt.Errorf("get upload: %w", store.ErrNotFound), &collab.NotFound, http.StatusNotFound},
		{"duplicate", fmt.Errorf("insert member: %w", store.ErrDuplicate), &collab.Conflict, http.StatusConflict},
		{"stale", store.ErrStaleState, &collab.InvalidState, http.StatusConflict},
		{"last admin", store.ErrLastActiveAdmin, &collab.PolicyViolation, http.StatusUnprocessableEntity},
		{"class wins over sentinel", collab.Conflict.Wrap(store.ErrNotFound), &collab.Conflict, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			domainErr, ok := classified(tc.err)
			if !ok {
				t.Fatalf("expected %v to be classified", tc.err)
			}
			if domainErr.Class != tc.class || domainErr.Status != tc.status {
				t.Fatalf("unexpected rendering: %+v", domainErr)
			}
			if !errors.Is(domainErr, tc.err) {
				t.Fatal("expected the cause to stay reachable")
			}
		})
	}
}

func TestNotFoundHidesDetail(t *testing.T) {
	domainErr, ok := classified(collab.NotFound.New("user u_123 is inactive"))
	if !ok || domainErr.Message != "Not found" {
		t.Fatalf("unexpected rendering: %+v", domainErr)
	}
}

func TestClassifiedLeavesUnknownErrors(t *testing.T) {
	if _, ok := classified(errors.New("boom")); ok {
		t.Fatal("expected unknown error to stay unclassified")
	}
}
