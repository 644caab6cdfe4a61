package platform

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checktick/survey-key-recovery/audit"
	"github.com/checktick/survey-key-recovery/interfaces"
	"github.com/checktick/survey-key-recovery/recovery"
	"github.com/checktick/survey-key-recovery/shamir"
	"github.com/checktick/survey-key-recovery/storage"
)

type stubVault struct {
	component []byte
	err       error
}

func (v *stubVault) GetVaultComponent(context.Context, interfaces.ComponentID) ([]byte, error) {
	if v.err != nil {
		return nil, v.err
	}
	out := make([]byte, len(v.component))
	copy(out, v.component)
	return out, nil
}

func (v *stubVault) HealthCheck(context.Context) (interfaces.VaultHealth, error) {
	return interfaces.VaultHealth{Initialized: true}, nil
}

type stubEscrow struct {
	user   interfaces.UserID
	survey interfaces.SurveyID
	blob   []byte
	err    error
}

func (e *stubEscrow) StoreWrappedKey(_ context.Context, user interfaces.UserID, survey interfaces.SurveyID, blob []byte) error {
	if e.err != nil {
		return e.err
	}
	e.user = user
	e.survey = survey
	e.blob = append([]byte(nil), blob...)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type executorFixture struct {
	store    *storage.MemoryStore
	executor *Executor
	vault    *stubVault
	escrow   *stubEscrow
	req      *interfaces.RecoveryRequest
	shares   []string
	secret   []byte
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()

	store := storage.NewMemoryStore()
	store.AddSurvey(&interfaces.Survey{ID: "survey-1", Name: "Staff wellbeing", OwnerID: "alice"})

	svc := recovery.NewService(store, nil, testLogger(), recovery.DefaultPolicy())
	admin := interfaces.Actor{ID: "admin-1", Email: "admin-1@example.com", IsAdministrator: true}
	req, err := svc.CreatePlatformRecovery(context.Background(), admin,
		"alice", "alice@example.com", "survey-1", "user lost all credentials")
	require.NoError(t, err)

	secret := make([]byte, shamir.SecretSize)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	split, err := shamir.Split(secret, 3, 4)
	require.NoError(t, err)
	encoded := make([]string, len(split))
	for i, s := range split {
		encoded[i] = s.String()
	}

	vaultComponent := make([]byte, 64)
	_, err = rand.Read(vaultComponent)
	require.NoError(t, err)

	vault := &stubVault{component: vaultComponent}
	escrow := &stubEscrow{}
	executor := NewExecutor(store, vault, escrow, testLogger(), recovery.DefaultPolicy())

	return &executorFixture{
		store:    store,
		executor: executor,
		vault:    vault,
		escrow:   escrow,
		req:      req,
		shares:   encoded,
		secret:   secret,
	}
}

func adminActor(id string) interfaces.Actor {
	return interfaces.Actor{ID: id, Email: id + "@example.com", IsAdministrator: true}
}

func TestExecuteSuccess(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	err := f.executor.Execute(ctx, f.req.ID, f.shares[:3], "new password", adminActor("admin-2"))
	require.NoError(t, err)

	got, err := f.store.GetRequest(ctx, f.req.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusCompleted, got.Status)

	// The escrowed blob unwraps to the KEK derived from both components.
	assert.Equal(t, interfaces.UserID("alice"), f.escrow.user)
	assert.Equal(t, interfaces.SurveyID("survey-1"), f.escrow.survey)
	kek, err := DeriveKEK(f.secret, f.vault.component, "alice", "survey-1")
	require.NoError(t, err)
	unwrapped, err := UnwrapKey(f.escrow.blob, "new password")
	require.NoError(t, err)
	assert.Equal(t, kek, unwrapped)

	entries, err := f.store.AuditEntries(ctx, f.req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	last := entries[len(entries)-1]
	assert.Equal(t, interfaces.EventPlatformRecoveryExecuted, last.EventType)
	assert.Equal(t, interfaces.SeverityCritical, last.Severity)
	assert.Equal(t, "admin-2", last.Details["approved_by"])
	assert.NotContains(t, last.Details, "component", "audit must never hold key material")
	assert.True(t, audit.VerifyEntries(entries))
}

func TestExecuteAnyShareSubsetWorks(t *testing.T) {
	f := newExecutorFixture(t)

	// Shares 2..4 instead of 1..3.
	err := f.executor.Execute(context.Background(), f.req.ID, f.shares[1:4], "new password", adminActor("admin-2"))
	require.NoError(t, err)

	kek, err := DeriveKEK(f.secret, f.vault.component, "alice", "survey-1")
	require.NoError(t, err)
	unwrapped, err := UnwrapKey(f.escrow.blob, "new password")
	require.NoError(t, err)
	assert.Equal(t, kek, unwrapped)
}

func TestExecuteInsufficientShares(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	err := f.executor.Execute(ctx, f.req.ID, f.shares[:2], "new password", adminActor("admin-2"))
	assert.ErrorIs(t, err, interfaces.ErrInsufficientShares)

	got, err := f.store.GetRequest(ctx, f.req.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusPendingPlatformRecovery, got.Status, "failed execution must not transition")
	assert.Nil(t, f.escrow.blob)
}

func TestExecuteMalformedShare(t *testing.T) {
	f := newExecutorFixture(t)

	err := f.executor.Execute(context.Background(), f.req.ID,
		[]string{"not hex", f.shares[1], f.shares[2]}, "new password", adminActor("admin-2"))
	assert.ErrorIs(t, err, interfaces.ErrShareDecode)
}

func TestExecuteWrongStatus(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.executor.Execute(ctx, f.req.ID, f.shares[:3], "new password", adminActor("admin-2")))

	err := f.executor.Execute(ctx, f.req.ID, f.shares[:3], "new password", adminActor("admin-2"))
	require.ErrorIs(t, err, interfaces.ErrInvalidState)
	assert.Contains(t, err.Error(), string(interfaces.StatusCompleted), "error must name the actual status")
}

func TestExecuteUnknownRequest(t *testing.T) {
	f := newExecutorFixture(t)
	err := f.executor.Execute(context.Background(), "missing", f.shares[:3], "new password", adminActor("admin-2"))
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestExecuteEscrowFailureRollsBack(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	f.escrow.err = assert.AnError

	err := f.executor.Execute(ctx, f.req.ID, f.shares[:3], "new password", adminActor("admin-2"))
	assert.ErrorIs(t, err, assert.AnError)

	got, err := f.store.GetRequest(ctx, f.req.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusPendingPlatformRecovery, got.Status)

	entries, err := f.store.AuditEntries(ctx, f.req.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed execution must not append audit entries")
}

func TestExecuteVaultFailureRollsBack(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()
	f.vault.err = assert.AnError

	err := f.executor.Execute(ctx, f.req.ID, f.shares[:3], "new password", adminActor("admin-2"))
	assert.ErrorIs(t, err, assert.AnError)

	got, err := f.store.GetRequest(ctx, f.req.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusPendingPlatformRecovery, got.Status)
}
