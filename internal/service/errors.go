package service

import "errors"

// Error taxonomy shared by all services. Handlers map these to HTTP codes
// with errors.Is; everything else is treated as a server error.
var (
	// ErrInvalidArgument indicates malformed or missing input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates an unknown account, member, transaction or
	// notification.
	ErrNotFound = errors.New("not found")

	// ErrNotAMember indicates the acting address is not a current member of
	// the account.
	ErrNotAMember = errors.New("not an account member")

	// ErrInvalidState indicates the operation is not legal for the
	// transaction's current status.
	ErrInvalidState = errors.New("invalid transaction state")

	// ErrAlreadyActed indicates the member has already voted on the
	// transaction.
	ErrAlreadyActed = errors.New("member has already acted on this transaction")

	// ErrSelfApproval indicates a proposer tried to approve their own
	// transaction.
	ErrSelfApproval = errors.New("proposer cannot approve own transaction")

	// ErrQuorumNotMet indicates the approval count is below the account
	// threshold.
	ErrQuorumNotMet = errors.New("approval quorum not met")

	// ErrAlreadyExists indicates a store uniqueness violation (duplicate
	// account address, transaction id or lock id).
	ErrAlreadyExists = errors.New("already exists")

	// ErrStoreUnavailable wraps opaque store failures. Never interpreted by
	// the services.
	ErrStoreUnavailable = errors.New("store unavailable")
)
