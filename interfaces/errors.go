package interfaces

import "errors"

var (
	// ErrInvalidState is returned when an operation is attempted from a
	// status that does not permit it. Wrapping errors name the actual and
	// expected status.
	ErrInvalidState = errors.New("operation not permitted in current status")

	// ErrDuplicateRequest is returned when request creation is blocked by
	// an existing active request for the same (user, survey).
	ErrDuplicateRequest = errors.New("active recovery request already exists")

	// ErrSameApprover is returned when secondary approval is attempted by
	// the same identity that gave primary approval.
	ErrSameApprover = errors.New("secondary approver must differ from primary approver")

	// ErrNotFound is returned when a referenced request, survey, or vault
	// component does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientShares is returned when fewer than the threshold
	// number of distinct custodian shares is supplied.
	ErrInsufficientShares = errors.New("insufficient custodian shares")

	// ErrShareDecode is returned for malformed share encodings or
	// wrong-length secret input to the secret sharer.
	ErrShareDecode = errors.New("malformed share encoding")
)
