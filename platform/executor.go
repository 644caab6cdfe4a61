package platform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/checktick/survey-key-recovery/audit"
	"github.com/checktick/survey-key-recovery/interfaces"
	"github.com/checktick/survey-key-recovery/recovery"
	"github.com/checktick/survey-key-recovery/shamir"
)

// Executor performs platform recovery executions.
type Executor struct {
	store  interfaces.Store
	vault  interfaces.KeyVault
	escrow interfaces.KeyEscrow
	log    *slog.Logger
	policy recovery.Policy
	now    func() time.Time
}

// NewExecutor creates an executor.
func NewExecutor(store interfaces.Store, vault interfaces.KeyVault, escrow interfaces.KeyEscrow, log *slog.Logger, policy recovery.Policy) *Executor {
	return &Executor{
		store:  store,
		vault:  vault,
		escrow: escrow,
		log:    log,
		policy: policy,
		now:    time.Now,
	}
}

// WithClock overrides the executor's time source.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute runs a platform recovery. It reconstructs the custodian
// component from the supplied shares, derives the key-encryption key with
// the vault-held component, wraps it under newPassword, escrows the
// wrapped blob, and completes the request. The whole execution runs inside
// the request's store transaction: on any failure the request stays in
// PENDING_PLATFORM_RECOVERY with no escrow write recorded as committed.
//
// approvedBy names the administrator who authorized this execution and is
// recorded in the audit entry alongside the share count and a fingerprint
// of the reconstructed component.
func (e *Executor) Execute(ctx context.Context, id interfaces.RequestID, encodedShares []string, newPassword string, approvedBy interfaces.Actor) error {
	shares, err := shamir.ParseShares(encodedShares)
	if err != nil {
		return err
	}

	return e.store.MutateRequest(ctx, id, func(tx interfaces.RequestTx) error {
		req := tx.Request()
		if req.Status != interfaces.StatusPendingPlatformRecovery {
			return fmt.Errorf("%w: platform recovery requires %s, request is %s",
				interfaces.ErrInvalidState, interfaces.StatusPendingPlatformRecovery, req.Status)
		}
		if len(shares) < e.policy.ShareThreshold {
			return fmt.Errorf("%w: %d shares supplied, %d required",
				interfaces.ErrInsufficientShares, len(shares), e.policy.ShareThreshold)
		}

		custodian, err := shamir.Reconstruct(shares)
		if err != nil {
			return err
		}
		defer Wipe(custodian)

		vaultComponent, err := e.vault.GetVaultComponent(ctx, interfaces.ComponentID(req.SurveyID))
		if err != nil {
			return fmt.Errorf("failed to fetch vault component: %w", err)
		}
		defer Wipe(vaultComponent)

		kek, err := DeriveKEK(custodian, vaultComponent, req.UserID, req.SurveyID)
		if err != nil {
			return err
		}
		defer Wipe(kek)

		blob, err := WrapKey(kek, newPassword)
		if err != nil {
			return err
		}

		if err := e.escrow.StoreWrappedKey(ctx, req.UserID, req.SurveyID, blob); err != nil {
			return fmt.Errorf("failed to escrow wrapped key: %w", err)
		}

		fingerprint := sha256.Sum256(custodian)

		now := e.now()
		req.Status = interfaces.StatusCompleted
		req.UpdatedAt = now

		tx.Append(audit.NewEntry(id, interfaces.EventPlatformRecoveryExecuted, approvedBy,
			interfaces.SeverityCritical, interfaces.Details{
				"approved_by":           approvedBy.ID,
				"share_count":           len(shares),
				"component_fingerprint": hex.EncodeToString(fingerprint[:8]),
			},
			audit.LastHash(tx.Entries()), now))

		e.log.Warn("Platform recovery executed",
			slog.String("request_code", req.RequestCode.String()),
			slog.String("user_id", string(req.UserID)),
			slog.String("survey_id", string(req.SurveyID)),
			slog.String("approved_by", approvedBy.ID),
			slog.Int("share_count", len(shares)))
		return nil
	})
}
