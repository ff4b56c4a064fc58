package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zeebo/errs"

	"collabhub/api/internal/collab"
	"collabhub/api/internal/store"
)

// DomainError is an error with a fixed HTTP rendering. Class is the collab
// class it belongs to, if any; Class.Has reports true through Unwrap.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Class   *errs.Class
	cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// invalidInput is a ValidationError raised by the service layer itself.
func invalidInput(message string, details any) *DomainError {
	return &DomainError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
		Class:   &collab.ValidationError,
		cause:   collab.ValidationError.New("%s", message),
	}
}

// classResponses renders the collab taxonomy. Store sentinels that reach the
// service unclassified render as the class collab would give them.
var classResponses = []struct {
	class    *errs.Class
	sentinel error
	status   int
	code     string
}{
	{&collab.ValidationError, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
	{&collab.Forbidden, nil, http.StatusForbidden, "FORBIDDEN"},
	{&collab.NotFound, store.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{&collab.InvalidState, store.ErrStaleState, http.StatusConflict, "INVALID_STATE"},
	{&collab.Conflict, store.ErrDuplicate, http.StatusConflict, "CONFLICT"},
	{&collab.PolicyViolation, store.ErrLastActiveAdmin, http.StatusUnprocessableEntity, "POLICY_VIOLATION"},
}

// classified returns err as a DomainError when it already is one or when it
// belongs to the collab taxonomy. An explicit class wins over a wrapped
// store sentinel.
func classified(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	for _, r := range classResponses {
		if r.class.Has(err) {
			return classResponse(err, r.class, r.status, r.code), true
		}
	}
	for _, r := range classResponses {
		if r.sentinel != nil && errors.Is(err, r.sentinel) {
			return classResponse(err, r.class, r.status, r.code), true
		}
	}
	return nil, false
}

func classResponse(err error, class *errs.Class, status int, code string) *DomainError {
	message := err.Error()
	if status == http.StatusNotFound {
		message = "Not found"
	}
	return &DomainError{Status: status, Code: code, Message: message, Class: class, cause: err}
}
