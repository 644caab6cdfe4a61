// Package recovery implements the dual-control, time-delayed recovery
// request state machine.
//
// A request moves through the workflow exclusively via Service methods:
//
//	Create              -> PENDING_VERIFICATION
//	ApprovePrimary      -> AWAITING_SECONDARY
//	ApproveSecondary    -> IN_TIME_DELAY (starts the mandatory cooldown)
//	CheckTimeDelayComplete -> READY_FOR_EXECUTION (once the cooldown expires)
//
// Reject and Cancel branch to the terminal REJECTED and CANCELLED states
// from any non-terminal state. CreatePlatformRecovery opens the separate
// PENDING_PLATFORM_RECOVERY path executed by the platform package.
//
// The state machine enforces the structural invariants regardless of
// caller: state preconditions, approver distinctness, and
// duplicate-request rejection. Caller-level authorization (who may invoke
// which operation) belongs to the API layer; the administrative capability
// of an actor is an explicit bit on interfaces.Actor, never inferred here.
//
// Every mutating method appends exactly one audit entry inside the store's
// per-request transaction and fires the matching notification.
// Notification failures are logged and never roll back a transition.
//
// The Sweeper periodically promotes expired IN_TIME_DELAY requests. It is
// safe to run concurrently with user-initiated cancels and rejects on the
// same request: whichever operation acquires the per-request lock first
// wins, and the loser observes the new state and fails its precondition
// cleanly.
package recovery
