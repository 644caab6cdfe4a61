package interfaces

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RequestID is the opaque, stable identity of a recovery request.
type RequestID string

// String returns the request ID as a string.
func (id RequestID) String() string {
	return string(id)
}

// RequestCode is the human-shareable correlation code for a recovery
// request, e.g. "REC-4F21A9C0". It is derived from the request ID at
// creation and never changes.
type RequestCode string

// RequestCodePrefix is the fixed prefix of every request code.
const RequestCodePrefix = "REC-"

// String returns the request code as a string.
func (c RequestCode) String() string {
	return string(c)
}

// Validate checks that the code has the REC- prefix and an 8-character
// correlation suffix.
func (c RequestCode) Validate() error {
	if !strings.HasPrefix(string(c), RequestCodePrefix) {
		return fmt.Errorf("request code must start with %q", RequestCodePrefix)
	}
	if len(c) != len(RequestCodePrefix)+8 {
		return errors.New("request code suffix must be 8 characters")
	}
	return nil
}

// UserID identifies the account recovering access.
type UserID string

// SurveyID identifies the survey whose key material is being recovered.
type SurveyID string

// ComponentID identifies a vault-held key component.
type ComponentID string

// RequestStatus is the lifecycle state of a recovery request.
type RequestStatus string

const (
	// StatusPendingVerification is the initial state of a user-created
	// request, before any administrator has acted on it.
	StatusPendingVerification RequestStatus = "pending_verification"

	// StatusAwaitingPrimary indicates the request passed verification and
	// awaits the first administrative approval.
	StatusAwaitingPrimary RequestStatus = "awaiting_primary"

	// StatusAwaitingSecondary indicates the primary approval was recorded
	// and a second, distinct administrator must approve.
	StatusAwaitingSecondary RequestStatus = "awaiting_secondary"

	// StatusInTimeDelay indicates dual approval is complete and the
	// mandatory cooldown window is running.
	StatusInTimeDelay RequestStatus = "in_time_delay"

	// StatusReadyForExecution indicates the cooldown expired and the
	// recovery may be executed.
	StatusReadyForExecution RequestStatus = "ready_for_execution"

	// StatusCompleted is terminal: the recovery was executed.
	StatusCompleted RequestStatus = "completed"

	// StatusRejected is terminal: an administrator rejected the request.
	StatusRejected RequestStatus = "rejected"

	// StatusCancelled is terminal: the owning user or an administrator
	// cancelled the request.
	StatusCancelled RequestStatus = "cancelled"

	// StatusPendingPlatformRecovery is the initial state of the
	// platform-initiated emergency path, executed by operators with
	// custodian shares.
	StatusPendingPlatformRecovery RequestStatus = "pending_platform_recovery"
)

// Terminal reports whether the status permits no further transitions. Audit
// entries may still be appended to a terminal request.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// String returns the status as a string.
func (s RequestStatus) String() string {
	return string(s)
}

// EventType tags an audit entry with the transition that produced it.
type EventType string

const (
	EventRequestSubmitted          EventType = "request_submitted"
	EventPrimaryApproval           EventType = "primary_approval"
	EventSecondaryApproval         EventType = "secondary_approval"
	EventRejection                 EventType = "rejection"
	EventCancellation              EventType = "cancellation"
	EventTimeDelayComplete         EventType = "time_delay_complete"
	EventPlatformRecoveryRequested EventType = "platform_recovery_requested"
	EventPlatformRecoveryExecuted  EventType = "platform_recovery_executed"
)

// ActorType classifies who performed an audited action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorAdmin  ActorType = "admin"
	ActorSystem ActorType = "system"
)

// Severity grades an audit entry.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Details is the structured key-value payload attached to an audit entry or
// supplied as user context at request creation.
type Details map[string]any

// Clone returns a shallow copy of the details map. A nil receiver clones to
// nil.
func (d Details) Clone() Details {
	if d == nil {
		return nil
	}
	out := make(Details, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Actor is the identity performing a recovery operation. Administrative
// capability is an explicit bit supplied by the caller; the core never
// consults an identity system to derive it.
type Actor struct {
	ID              string
	Email           string
	IsAdministrator bool

	system bool
}

// SystemActor is the actor recorded for transitions performed by the
// platform itself, such as the time-delay sweep.
var SystemActor = Actor{ID: "system", system: true}

// Type derives the audit actor classification from the actor's capability.
func (a Actor) Type() ActorType {
	switch {
	case a.system:
		return ActorSystem
	case a.IsAdministrator:
		return ActorAdmin
	default:
		return ActorUser
	}
}

// Survey is the resource a recovery request targets. Only the fields the
// core needs are modeled; the full survey entity lives outside this module.
type Survey struct {
	ID      SurveyID
	Name    string
	OwnerID UserID
}

// RecoveryRequest is the central entity of the recovery workflow. It is
// mutated exclusively through the transition operations of the recovery
// package and is never physically deleted.
type RecoveryRequest struct {
	ID          RequestID
	RequestCode RequestCode

	UserID    UserID
	UserEmail string
	SurveyID  SurveyID

	Status      RequestStatus
	UserContext Details

	// Platform-recovery path only.
	RequestedBy   string
	Justification string

	PrimaryApprover   string
	SecondaryApprover string
	RejectedBy        string

	TimeDelayHours int
	TimeDelayUntil *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the request occupies a non-terminal state. At most
// one active request may exist per (user, survey).
func (r *RecoveryRequest) Active() bool {
	return !r.Status.Terminal()
}

// Clone returns a deep copy of the request, safe to hand to callers while
// the store retains the original.
func (r *RecoveryRequest) Clone() *RecoveryRequest {
	out := *r
	out.UserContext = r.UserContext.Clone()
	if r.TimeDelayUntil != nil {
		t := *r.TimeDelayUntil
		out.TimeDelayUntil = &t
	}
	return &out
}

// AuditEntry is one link of a request's tamper-evident audit chain.
type AuditEntry struct {
	RequestID  RequestID
	EventType  EventType
	ActorType  ActorType
	ActorID    string
	ActorEmail string
	Severity   Severity
	Details    Details
	Timestamp  time.Time

	// PreviousHash is the EntryHash of the immediately preceding entry for
	// the same request, or "" for the first entry.
	PreviousHash string

	// EntryHash is the hex SHA-256 digest over the entry's canonical
	// content concatenated with PreviousHash.
	EntryHash string
}

// Clone returns a deep copy of the audit entry.
func (e *AuditEntry) Clone() *AuditEntry {
	out := *e
	out.Details = e.Details.Clone()
	return &out
}
