package interfaces

import (
	"context"
	"time"
)

// RequestTx is the view of a single recovery request inside a store
// transaction. The request snapshot may be mutated freely; staged audit
// entries and the mutated request commit together when the transaction
// function returns nil, and are discarded otherwise.
type RequestTx interface {
	// Request returns the mutable request snapshot.
	Request() *RecoveryRequest

	// Entries returns the request's audit chain, ordered by timestamp,
	// including entries staged earlier in this transaction.
	Entries() []*AuditEntry

	// Append stages a new audit entry. The entry's hash fields must
	// already be computed against the current chain tail.
	Append(entry *AuditEntry)
}

// Store is the durable persistence collaborator for recovery requests and
// their audit chains. Implementations must serialize MutateRequest calls
// per request so state preconditions are checked against a consistent
// snapshot and the audit chain never forks.
type Store interface {
	// CreateRequest persists a new request together with its initial
	// audit entry, atomically rejecting creation with ErrDuplicateRequest
	// if an active request already exists for the same (user, survey).
	CreateRequest(ctx context.Context, req *RecoveryRequest, submitted *AuditEntry) error

	// GetRequest returns a copy of the identified request, or ErrNotFound.
	GetRequest(ctx context.Context, id RequestID) (*RecoveryRequest, error)

	// MutateRequest runs fn under the per-request lock. Returns
	// ErrNotFound if the request does not exist; otherwise returns fn's
	// error, committing only on nil.
	MutateRequest(ctx context.Context, id RequestID, fn func(tx RequestTx) error) error

	// ExpiredTimeDelays lists requests in IN_TIME_DELAY whose
	// time_delay_until is at or before now.
	ExpiredTimeDelays(ctx context.Context, now time.Time) ([]RequestID, error)

	// AuditEntries returns the request's audit chain ordered by timestamp.
	// Reading never fails on a broken chain; verification is diagnostic.
	AuditEntries(ctx context.Context, id RequestID) ([]*AuditEntry, error)

	// GetSurvey returns the referenced survey, or ErrNotFound.
	GetSurvey(ctx context.Context, id SurveyID) (*Survey, error)
}

// Notifier delivers workflow notifications. Calls are fire-and-forget:
// delivery failures are logged by the caller and never roll back the
// triggering state transition.
type Notifier interface {
	NotifyAdmins(ctx context.Context, req *RecoveryRequest) error
	NotifyUserApproved(ctx context.Context, req *RecoveryRequest) error
	NotifyUserRejected(ctx context.Context, req *RecoveryRequest) error
	NotifyUserReady(ctx context.Context, req *RecoveryRequest) error
	NotifyUserCancelled(ctx context.Context, req *RecoveryRequest) error
}

// VaultHealth describes the key vault's availability.
type VaultHealth struct {
	Initialized bool
	Sealed      bool
	Standby     bool
	Version     string
}

// KeyVault retrieves the vault-held key components used by platform
// recovery. Implemented against HashiCorp Vault in the keyvault package.
type KeyVault interface {
	// GetVaultComponent returns the 64-byte vault-held component for the
	// given identifier, or ErrNotFound.
	GetVaultComponent(ctx context.Context, id ComponentID) ([]byte, error)

	// HealthCheck reports whether the vault is initialized, sealed, or in
	// standby, along with its version.
	HealthCheck(ctx context.Context) (VaultHealth, error)
}

// KeyEscrow stores a user's re-wrapped survey key material after platform
// recovery. The blob is sealed; escrow implementations never see plaintext
// key material.
type KeyEscrow interface {
	StoreWrappedKey(ctx context.Context, user UserID, survey SurveyID, blob []byte) error
}
