package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checktick/survey-key-recovery/audit"
	"github.com/checktick/survey-key-recovery/interfaces"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return store, dir
}

func TestFileStoreCreatesLayout(t *testing.T) {
	_, dir := newTestFileStore(t)
	for _, sub := range []string{"surveys", "requests"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	req, submitted := newTestRequest("bbbbbbbb-0000-0000-0000-000000000001", "alice", "survey-1")
	req.UserContext = interfaces.Details{"reason": "lost password"}
	require.NoError(t, store.CreateRequest(ctx, req, submitted))

	err := store.MutateRequest(ctx, req.ID, func(tx interfaces.RequestTx) error {
		tx.Request().Status = interfaces.StatusAwaitingSecondary
		tx.Request().PrimaryApprover = "admin-1"
		tx.Append(audit.NewEntry(req.ID, interfaces.EventPrimaryApproval,
			interfaces.Actor{ID: "admin-1", IsAdministrator: true},
			interfaces.SeverityInfo, nil, audit.LastHash(tx.Entries()), time.Now().UTC()))
		return nil
	})
	require.NoError(t, err)

	// A second store over the same directory sees everything, and the
	// audit chain still verifies after the JSON round trip.
	reopened, err := NewFileStore(dir, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)

	got, err := reopened.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusAwaitingSecondary, got.Status)
	assert.Equal(t, "admin-1", got.PrimaryApprover)
	assert.Equal(t, "lost password", got.UserContext["reason"])

	entries, err := reopened.AuditEntries(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, audit.VerifyEntries(entries), "persisted chain must verify")
}

func TestFileStoreEmptyDetailsChainVerifies(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	// A submitted entry carrying an empty (non-nil) details map loses the
	// map on the JSON round trip; the chain must verify regardless.
	req, _ := newTestRequest("bbbbbbbb-0000-0000-0000-000000000001", "alice", "survey-1")
	submitted := audit.NewEntry(req.ID, interfaces.EventRequestSubmitted,
		interfaces.Actor{ID: "alice", Email: req.UserEmail},
		interfaces.SeverityInfo, interfaces.Details{}, "", time.Now().UTC())
	require.NoError(t, store.CreateRequest(ctx, req, submitted))

	reopened, err := NewFileStore(dir, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)

	entries, err := reopened.AuditEntries(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, audit.VerifyEntries(entries),
		"persisted chain with empty details must still verify")
}

func TestFileStoreDuplicateActive(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	req, submitted := newTestRequest("bbbbbbbb-0000-0000-0000-000000000001", "alice", "survey-1")
	require.NoError(t, store.CreateRequest(ctx, req, submitted))

	dup, dupSubmitted := newTestRequest("bbbbbbbb-0000-0000-0000-000000000002", "alice", "survey-1")
	assert.ErrorIs(t, store.CreateRequest(ctx, dup, dupSubmitted), interfaces.ErrDuplicateRequest)

	require.NoError(t, store.MutateRequest(ctx, req.ID, func(tx interfaces.RequestTx) error {
		tx.Request().Status = interfaces.StatusRejected
		return nil
	}))
	assert.NoError(t, store.CreateRequest(ctx, dup, dupSubmitted))
}

func TestFileStoreCommitLeavesNoTempFiles(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	req, submitted := newTestRequest("bbbbbbbb-0000-0000-0000-000000000001", "alice", "survey-1")
	require.NoError(t, store.CreateRequest(ctx, req, submitted))
	require.NoError(t, store.MutateRequest(ctx, req.ID, func(tx interfaces.RequestTx) error {
		tx.Request().Status = interfaces.StatusAwaitingPrimary
		tx.Append(audit.NewEntry(req.ID, interfaces.EventPrimaryApproval,
			interfaces.Actor{ID: "admin-1", IsAdministrator: true},
			interfaces.SeverityInfo, nil, audit.LastHash(tx.Entries()), time.Now().UTC()))
		return nil
	}))

	files, err := os.ReadDir(filepath.Join(dir, "requests", string(req.ID)))
	require.NoError(t, err)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{"request.json", "audit.json"}, names,
		"committed writes must leave only the renamed files behind")
}

func TestFileStoreMutateRollback(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	req, submitted := newTestRequest("bbbbbbbb-0000-0000-0000-000000000001", "alice", "survey-1")
	require.NoError(t, store.CreateRequest(ctx, req, submitted))

	err := store.MutateRequest(ctx, req.ID, func(tx interfaces.RequestTx) error {
		tx.Request().Status = interfaces.StatusCompleted
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusPendingVerification, got.Status)
}

func TestFileStoreExpiredTimeDelays(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	req, submitted := newTestRequest("bbbbbbbb-0000-0000-0000-000000000001", "alice", "survey-1")
	req.Status = interfaces.StatusInTimeDelay
	past := now.Add(-time.Minute)
	req.TimeDelayUntil = &past
	require.NoError(t, store.CreateRequest(ctx, req, submitted))

	other, otherSubmitted := newTestRequest("bbbbbbbb-0000-0000-0000-000000000002", "bob", "survey-2")
	require.NoError(t, store.CreateRequest(ctx, other, otherSubmitted))

	ids, err := store.ExpiredTimeDelays(ctx, now)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, req.ID, ids[0])
}

func TestFileStoreSurveys(t *testing.T) {
	store, _ := newTestFileStore(t)

	require.NoError(t, store.PutSurvey(&interfaces.Survey{ID: "survey-1", Name: "Staff wellbeing", OwnerID: "alice"}))

	survey, err := store.GetSurvey(context.Background(), "survey-1")
	require.NoError(t, err)
	assert.Equal(t, "Staff wellbeing", survey.Name)

	_, err = store.GetSurvey(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
