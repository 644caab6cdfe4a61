package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/checktick/survey-key-recovery/audit"
	"github.com/checktick/survey-key-recovery/interfaces"
)

// Policy holds the workflow's configurable constants. These are policy,
// not structural invariants; the defaults are preserved for compatibility
// with existing deployments.
type Policy struct {
	// TimeDelayHours is the default cooldown applied between dual
	// approval and execution eligibility.
	TimeDelayHours int

	// ShareCount and ShareThreshold govern custodian component splitting.
	ShareCount     int
	ShareThreshold int
}

// DefaultPolicy returns the documented defaults: a 24 hour cooldown and a
// 3-of-4 custodian share scheme.
func DefaultPolicy() Policy {
	return Policy{TimeDelayHours: 24, ShareCount: 4, ShareThreshold: 3}
}

// Service drives recovery request transitions. All mutations run inside
// the store's per-request transaction together with their audit append, so
// concurrent transition attempts on one request serialize and the audit
// chain never forks.
type Service struct {
	store    interfaces.Store
	notifier interfaces.Notifier
	log      *slog.Logger
	policy   Policy
	now      func() time.Time
}

// NewService creates a recovery service. notifier may be nil, in which
// case transitions proceed without notifications.
func NewService(store interfaces.Store, notifier interfaces.Notifier, log *slog.Logger, policy Policy) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log,
		policy:   policy,
		now:      time.Now,
	}
}

// WithClock overrides the service's time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// newRequestCode derives the immutable human-shareable correlation code
// from the request identity.
func newRequestCode(id uuid.UUID) interfaces.RequestCode {
	hexID := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return interfaces.RequestCode(interfaces.RequestCodePrefix + hexID[:8])
}

// Create opens a recovery request for the actor's own survey. It fails
// with interfaces.ErrNotFound if the survey does not exist or is not
// visible to the actor, and with interfaces.ErrDuplicateRequest if an
// active request already exists for the (user, survey) pair.
func (s *Service) Create(ctx context.Context, actor interfaces.Actor, surveyID interfaces.SurveyID, userContext interfaces.Details) (*interfaces.RecoveryRequest, error) {
	survey, err := s.store.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if survey.OwnerID != interfaces.UserID(actor.ID) && !actor.IsAdministrator {
		return nil, fmt.Errorf("%w: survey %s", interfaces.ErrNotFound, surveyID)
	}

	now := s.now()
	id := uuid.New()
	req := &interfaces.RecoveryRequest{
		ID:             interfaces.RequestID(id.String()),
		RequestCode:    newRequestCode(id),
		UserID:         interfaces.UserID(actor.ID),
		UserEmail:      actor.Email,
		SurveyID:       surveyID,
		Status:         interfaces.StatusPendingVerification,
		UserContext:    userContext.Clone(),
		TimeDelayHours: s.policy.TimeDelayHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	submitted := audit.NewEntry(req.ID, interfaces.EventRequestSubmitted, actor,
		interfaces.SeverityInfo, userContext, "", now)

	if err := s.store.CreateRequest(ctx, req, submitted); err != nil {
		return nil, err
	}

	s.log.Info("Recovery request created",
		slog.String("request_code", req.RequestCode.String()),
		slog.String("survey_id", string(surveyID)),
		slog.String("user_id", actor.ID))

	s.notify(ctx, "admin_alert", req, s.notifierOrNil().NotifyAdmins)
	return req.Clone(), nil
}

// CreatePlatformRecovery opens the emergency platform-level path on behalf
// of a user who has lost all credentials. Only an administrator may request
// it; the justification is mandatory and recorded.
func (s *Service) CreatePlatformRecovery(ctx context.Context, admin interfaces.Actor, userID interfaces.UserID, userEmail string, surveyID interfaces.SurveyID, justification string) (*interfaces.RecoveryRequest, error) {
	if !admin.IsAdministrator {
		return nil, errors.New("platform recovery may only be requested by an administrator")
	}
	if justification == "" {
		return nil, errors.New("platform recovery requires a justification")
	}
	if _, err := s.store.GetSurvey(ctx, surveyID); err != nil {
		return nil, err
	}

	now := s.now()
	id := uuid.New()
	req := &interfaces.RecoveryRequest{
		ID:             interfaces.RequestID(id.String()),
		RequestCode:    newRequestCode(id),
		UserID:         userID,
		UserEmail:      userEmail,
		SurveyID:       surveyID,
		Status:         interfaces.StatusPendingPlatformRecovery,
		RequestedBy:    admin.ID,
		Justification:  justification,
		TimeDelayHours: s.policy.TimeDelayHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	requested := audit.NewEntry(req.ID, interfaces.EventPlatformRecoveryRequested, admin,
		interfaces.SeverityWarning, interfaces.Details{"justification": justification}, "", now)

	if err := s.store.CreateRequest(ctx, req, requested); err != nil {
		return nil, err
	}

	s.log.Warn("Platform recovery request created",
		slog.String("request_code", req.RequestCode.String()),
		slog.String("user_id", string(userID)),
		slog.String("requested_by", admin.ID))

	return req.Clone(), nil
}

// ApprovePrimary records the first administrative approval. Accepted from
// PENDING_VERIFICATION or AWAITING_PRIMARY.
func (s *Service) ApprovePrimary(ctx context.Context, id interfaces.RequestID, admin interfaces.Actor, reason string) error {
	return s.store.MutateRequest(ctx, id, func(tx interfaces.RequestTx) error {
		req := tx.Request()
		switch req.Status {
		case interfaces.StatusPendingVerification, interfaces.StatusAwaitingPrimary:
		default:
			return fmt.Errorf("%w: primary approval requires %s, request is %s",
				interfaces.ErrInvalidState, interfaces.StatusAwaitingPrimary, req.Status)
		}

		now := s.now()
		req.PrimaryApprover = admin.ID
		req.Status = interfaces.StatusAwaitingSecondary
		req.UpdatedAt = now

		tx.Append(audit.NewEntry(id, interfaces.EventPrimaryApproval, admin,
			interfaces.SeverityInfo, interfaces.Details{"reason": reason},
			audit.LastHash(tx.Entries()), now))
		return nil
	})
}

// ApproveSecondary records the second approval, which must come from a
// different administrator than the primary, and starts the mandatory
// cooldown window.
func (s *Service) ApproveSecondary(ctx context.Context, id interfaces.RequestID, admin interfaces.Actor, reason string) error {
	var approved *interfaces.RecoveryRequest

	err := s.store.MutateRequest(ctx, id, func(tx interfaces.RequestTx) error {
		req := tx.Request()
		if req.Status != interfaces.StatusAwaitingSecondary {
			return fmt.Errorf("%w: secondary approval requires %s, request is %s",
				interfaces.ErrInvalidState, interfaces.StatusAwaitingSecondary, req.Status)
		}
		if admin.ID == req.PrimaryApprover {
			return fmt.Errorf("%w: %s already gave primary approval",
				interfaces.ErrSameApprover, admin.ID)
		}

		now := s.now()
		until := now.Add(time.Duration(req.TimeDelayHours) * time.Hour)
		req.SecondaryApprover = admin.ID
		req.Status = interfaces.StatusInTimeDelay
		req.TimeDelayUntil = &until
		req.UpdatedAt = now

		tx.Append(audit.NewEntry(id, interfaces.EventSecondaryApproval, admin,
			interfaces.SeverityInfo, interfaces.Details{
				"reason":           reason,
				"time_delay_until": until.UTC().Format(time.RFC3339),
			},
			audit.LastHash(tx.Entries()), now))

		approved = req.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, "user_approved", approved, s.notifierOrNil().NotifyUserApproved)
	return nil
}

// Reject terminates a request from any non-terminal state.
func (s *Service) Reject(ctx context.Context, id interfaces.RequestID, admin interfaces.Actor, reason string) error {
	var rejected *interfaces.RecoveryRequest

	err := s.store.MutateRequest(ctx, id, func(tx interfaces.RequestTx) error {
		req := tx.Request()
		if req.Status.Terminal() {
			return fmt.Errorf("%w: cannot reject a request in terminal status %s",
				interfaces.ErrInvalidState, req.Status)
		}

		now := s.now()
		req.Status = interfaces.StatusRejected
		req.RejectedBy = admin.ID
		req.UpdatedAt = now

		tx.Append(audit.NewEntry(id, interfaces.EventRejection, admin,
			interfaces.SeverityInfo, interfaces.Details{"reason": reason},
			audit.LastHash(tx.Entries()), now))

		rejected = req.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, "user_rejected", rejected, s.notifierOrNil().NotifyUserRejected)
	return nil
}

// Cancel terminates a request from any non-terminal state. The owning user
// or any administrator may cancel; the audit actor type is derived from
// the actor's administrative capability.
func (s *Service) Cancel(ctx context.Context, id interfaces.RequestID, actor interfaces.Actor, reason string) error {
	var cancelled *interfaces.RecoveryRequest

	err := s.store.MutateRequest(ctx, id, func(tx interfaces.RequestTx) error {
		req := tx.Request()
		if !actor.IsAdministrator && actor.ID != string(req.UserID) {
			return fmt.Errorf("%w: recovery request %s", interfaces.ErrNotFound, id)
		}
		if req.Status.Terminal() {
			return fmt.Errorf("%w: cannot cancel a request in terminal status %s",
				interfaces.ErrInvalidState, req.Status)
		}

		now := s.now()
		req.Status = interfaces.StatusCancelled
		req.UpdatedAt = now

		tx.Append(audit.NewEntry(id, interfaces.EventCancellation, actor,
			interfaces.SeverityInfo, interfaces.Details{"reason": reason},
			audit.LastHash(tx.Entries()), now))

		cancelled = req.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, "user_cancelled", cancelled, s.notifierOrNil().NotifyUserCancelled)
	return nil
}

// errDelayNotComplete aborts the transaction without committing when the
// cooldown has not yet expired, keeping the no-transition path free of
// side effects.
var errDelayNotComplete = errors.New("time delay not complete")

// CheckTimeDelayComplete promotes an IN_TIME_DELAY request whose cooldown
// has expired to READY_FOR_EXECUTION and reports whether it did so. It is
// idempotent: for a request in any other state, or one whose delay is
// still running, it returns false with no side effects, so a periodic
// sweep may call it repeatedly.
func (s *Service) CheckTimeDelayComplete(ctx context.Context, id interfaces.RequestID) (bool, error) {
	var ready *interfaces.RecoveryRequest

	err := s.store.MutateRequest(ctx, id, func(tx interfaces.RequestTx) error {
		req := tx.Request()
		if req.Status != interfaces.StatusInTimeDelay || req.TimeDelayUntil == nil {
			return errDelayNotComplete
		}

		now := s.now()
		if now.Before(*req.TimeDelayUntil) {
			return errDelayNotComplete
		}

		req.Status = interfaces.StatusReadyForExecution
		req.UpdatedAt = now

		tx.Append(audit.NewEntry(id, interfaces.EventTimeDelayComplete, interfaces.SystemActor,
			interfaces.SeverityInfo, interfaces.Details{
				"time_delay_until": req.TimeDelayUntil.UTC().Format(time.RFC3339),
			},
			audit.LastHash(tx.Entries()), now))

		ready = req.Clone()
		return nil
	})
	if errors.Is(err, errDelayNotComplete) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.log.Info("Recovery time delay complete",
		slog.String("request_id", id.String()))
	s.notify(ctx, "user_ready", ready, s.notifierOrNil().NotifyUserReady)
	return true, nil
}

// Get returns the identified request.
func (s *Service) Get(ctx context.Context, id interfaces.RequestID) (*interfaces.RecoveryRequest, error) {
	return s.store.GetRequest(ctx, id)
}

// AuditEntries returns the request's audit chain in order.
func (s *Service) AuditEntries(ctx context.Context, id interfaces.RequestID) ([]*interfaces.AuditEntry, error) {
	return s.store.AuditEntries(ctx, id)
}

// notifierOrNil lets transition code reference a notifier method without a
// nil check at every call site.
func (s *Service) notifierOrNil() interfaces.Notifier {
	if s.notifier == nil {
		return nopNotifier{}
	}
	return s.notifier
}

// notify delivers a fire-and-forget notification. Failures are logged and
// never surfaced to the caller: a completed transition's correctness does
// not depend on delivery.
func (s *Service) notify(ctx context.Context, kind string, req *interfaces.RecoveryRequest, fn func(context.Context, *interfaces.RecoveryRequest) error) {
	if req == nil {
		return
	}
	if err := fn(ctx, req); err != nil {
		s.log.Warn("Notification delivery failed",
			slog.String("kind", kind),
			slog.String("request_code", req.RequestCode.String()),
			"err", err)
	}
}

type nopNotifier struct{}

func (nopNotifier) NotifyAdmins(context.Context, *interfaces.RecoveryRequest) error        { return nil }
func (nopNotifier) NotifyUserApproved(context.Context, *interfaces.RecoveryRequest) error  { return nil }
func (nopNotifier) NotifyUserRejected(context.Context, *interfaces.RecoveryRequest) error  { return nil }
func (nopNotifier) NotifyUserReady(context.Context, *interfaces.RecoveryRequest) error     { return nil }
func (nopNotifier) NotifyUserCancelled(context.Context, *interfaces.RecoveryRequest) error { return nil }
