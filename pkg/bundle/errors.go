package bundle

import (
	"errors"
	"fmt"
)

// ErrBundleAlreadyOpen is returned by Begin when a bundle is already
// open — invariant I1 (§4.11): begin/canApplyBundle/appliedBundle/
// sendDocUpdateForBundle/finishedBundle never interleave across two
// concurrent bundles.
var ErrBundleAlreadyOpen = errors.New("bundle: a bundle is already open")

// ErrWrongState is wrapped by every lifecycle method invoked outside
// the state it requires.
var ErrWrongState = errors.New("bundle: controller is not in the required state")

// ErrOwnerRequired is the ACL_DENY-equivalent for §4.11's rule: a
// bundle containing a deliberate rule change may only be committed by
// the document owner.
type ErrOwnerRequired struct{}

func (ErrOwnerRequired) Error() string {
	return "bundle: only the document owner may commit a rule change"
}

// ApiError is the generic "400 ApiError" wire error (§6, §7) —
// used when a sandboxed ACL-table commit fails CheckDocEntities.
type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func wrongState(op string) error {
	return fmt.Errorf("%s: %w", op, ErrWrongState)
}
