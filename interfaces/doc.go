// Package interfaces defines the core types and contracts for the survey key
// recovery system. It provides the boundary between the recovery state
// machine, the audit chain, the platform recovery executor, and their
// external collaborators (persistence, notifications, key vault) without
// implementation details.
//
// # Recovery Workflow
//
// A recovery request moves through a dual-control, time-delayed workflow:
//
//	PENDING_VERIFICATION -> AWAITING_PRIMARY -> AWAITING_SECONDARY
//	    -> IN_TIME_DELAY -> READY_FOR_EXECUTION -> COMPLETED
//
// with terminal side branches REJECTED and CANCELLED reachable from any
// non-terminal state, and a separate platform-initiated path
// PENDING_PLATFORM_RECOVERY -> COMPLETED.
//
// # Audit Chain
//
// Every state transition appends an AuditEntry. Entries for one
// request form a hash chain: each entry's PreviousHash equals the EntryHash
// of its predecessor, and the first entry's PreviousHash is the empty
// string. The chain makes retroactive tampering detectable.
//
// # Concurrency Contract
//
// Per-request state transitions and audit appends are serialized through
// Store.MutateRequest: the supplied function runs under a per-request lock
// against a consistent snapshot, and its staged changes commit atomically.
// Different requests may be processed fully in parallel.
//
// # Error Taxonomy
//
// The package declares the sentinel errors shared across components
// (ErrInvalidState, ErrDuplicateRequest, ErrSameApprover, ErrNotFound,
// ErrInsufficientShares, ErrShareDecode). Implementations wrap them with
// contextual detail; callers match with errors.Is.
package interfaces
