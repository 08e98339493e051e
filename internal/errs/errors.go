package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	// ErrUnprocessable is used for semantic failures with no dedicated sentinel (HTTP 422)
	ErrUnprocessable = errors.New("unprocessable")
)

// Chart of accounts.
var (
	// ErrParentNotFound indicates a parent_id that does not resolve to an account.
	ErrParentNotFound = errors.New("parent_not_found")
	// ErrParentNotSynthetic indicates the chosen parent is a posting account (account/analytic).
	ErrParentNotSynthetic = errors.New("parent_not_synthetic")
	// ErrHasChildren blocks deleting (or de-synthesizing) an account other accounts point to.
	ErrHasChildren = errors.New("has_children")
	// ErrCycle indicates a parent change that would make an account its own descendant.
	ErrCycle = errors.New("cycle")
	// ErrNotPostable indicates a ledger line against a group/subgroup or inactive account.
	ErrNotPostable = errors.New("not_postable")
	// ErrInUse indicates an account still referenced by journal lines.
	ErrInUse = errors.New("in_use")
)

// Payment conditions, sales and receivables.
var (
	// ErrPercentageMismatch indicates installment percentages that do not sum to 100.
	ErrPercentageMismatch = errors.New("percentage_mismatch")
	// ErrMissingCondition indicates a payment condition that cannot be resolved.
	ErrMissingCondition = errors.New("missing_condition")
	// ErrNoItems indicates a sale with no line items or a zero total.
	ErrNoItems = errors.New("no_items")
	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid_transition")
)
