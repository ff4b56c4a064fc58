// Package collab owns the collaboration lifecycle: who may invite whom onto a
// project, how those requests move between states, what access an accepted
// request grants, and the rule that the system never runs out of active
// administrators.
package collab

import (
	"errors"

	"github.com/zeebo/errs"

	"collabhub/api/internal/store"
)

var (
	NotFound        = errs.Class("not found")
	Forbidden       = errs.Class("forbidden")
	Conflict        = errs.Class("conflict")
	InvalidState    = errs.Class("invalid state")
	PolicyViolation = errs.Class("policy violation")
	ValidationError = errs.Class("validation")
)

// classify lifts store sentinels into the domain taxonomy. Errors that are
// already classified, and infrastructure failures, pass through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return NotFound.Wrap(err)
	case errors.Is(err, store.ErrDuplicate):
		return Conflict.Wrap(err)
	case errors.Is(err, store.ErrStaleState):
		return InvalidState.Wrap(err)
	case errors.Is(err, store.ErrLastActiveAdmin):
		return PolicyViolation.Wrap(err)
	default:
		return err
	}
}
