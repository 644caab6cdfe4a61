package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checktick/survey-key-recovery/audit"
	"github.com/checktick/survey-key-recovery/interfaces"
)

func newTestRequest(id, user, survey string) (*interfaces.RecoveryRequest, *interfaces.AuditEntry) {
	now := time.Now().UTC()
	req := &interfaces.RecoveryRequest{
		ID:             interfaces.RequestID(id),
		RequestCode:    interfaces.RequestCode("REC-" + id[:8]),
		UserID:         interfaces.UserID(user),
		UserEmail:      user + "@example.com",
		SurveyID:       interfaces.SurveyID(survey),
		Status:         interfaces.StatusPendingVerification,
		TimeDelayHours: 24,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	actor := interfaces.Actor{ID: user, Email: req.UserEmail}
	submitted := audit.NewEntry(req.ID, interfaces.EventRequestSubmitted, actor,
		interfaces.SeverityInfo, nil, "", now)
	return req, submitted
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	req, submitted := newTestRequest("aaaaaaaa-0000-0000-0000-000000000001", "alice", "survey-1")
	require.NoError(t, store.CreateRequest(ctx, req, submitted))

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, interfaces.StatusPendingVerification, got.Status)

	// Returned value is a copy, not the stored record.
	got.Status = interfaces.StatusCompleted
	again, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusPendingVerification, again.Status)

	entries, err := store.AuditEntries(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, interfaces.EventRequestSubmitted, entries[0].EventType)
}

func TestMemoryStoreGetRequestNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetRequest(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	_, err = store.AuditEntries(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestMemoryStoreDuplicateActive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	req, submitted := newTestRequest("aaaaaaaa-0000-0000-0000-000000000001", "alice", "survey-1")
	require.NoError(t, store.CreateRequest(ctx, req, submitted))

	dup, dupSubmitted := newTestRequest("aaaaaaaa-0000-0000-0000-000000000002", "alice", "survey-1")
	err := store.CreateRequest(ctx, dup, dupSubmitted)
	assert.ErrorIs(t, err, interfaces.ErrDuplicateRequest)

	// A different survey for the same user is fine.
	other, otherSubmitted := newTestRequest("aaaaaaaa-0000-0000-0000-000000000003", "alice", "survey-2")
	assert.NoError(t, store.CreateRequest(ctx, other, otherSubmitted))

	// Once the first request is terminal a new one may be created.
	require.NoError(t, store.MutateRequest(ctx, req.ID, func(tx interfaces.RequestTx) error {
		tx.Request().Status = interfaces.StatusCancelled
		return nil
	}))
	assert.NoError(t, store.CreateRequest(ctx, dup, dupSubmitted))
}

func TestMemoryStoreMutateCommit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	req, submitted := newTestRequest("aaaaaaaa-0000-0000-0000-000000000001", "alice", "survey-1")
	require.NoError(t, store.CreateRequest(ctx, req, submitted))

	err := store.MutateRequest(ctx, req.ID, func(tx interfaces.RequestTx) error {
		tx.Request().Status = interfaces.StatusAwaitingSecondary
		tx.Request().PrimaryApprover = "admin-1"
		entry := audit.NewEntry(req.ID, interfaces.EventPrimaryApproval,
			interfaces.Actor{ID: "admin-1", IsAdministrator: true},
			interfaces.SeverityInfo, nil, audit.LastHash(tx.Entries()), time.Now().UTC())
		tx.Append(entry)
		return nil
	})
	require.NoError(t, err)

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusAwaitingSecondary, got.Status)
	assert.Equal(t, "admin-1", got.PrimaryApprover)

	entries, err := store.AuditEntries(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].EntryHash, entries[1].PreviousHash)
	assert.True(t, audit.VerifyEntries(entries), "committed chain must verify")
}

func TestMemoryStoreMutateRollback(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	req, submitted := newTestRequest("aaaaaaaa-0000-0000-0000-000000000001", "alice", "survey-1")
	require.NoError(t, store.CreateRequest(ctx, req, submitted))

	boom := assert.AnError
	err := store.MutateRequest(ctx, req.ID, func(tx interfaces.RequestTx) error {
		tx.Request().Status = interfaces.StatusCompleted
		tx.Append(audit.NewEntry(req.ID, interfaces.EventCancellation,
			interfaces.SystemActor, interfaces.SeverityInfo, nil,
			audit.LastHash(tx.Entries()), time.Now().UTC()))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusPendingVerification, got.Status, "failed mutation must not persist")

	entries, err := store.AuditEntries(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed mutation must not append entries")
}

func TestMemoryStoreExpiredTimeDelays(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	expired, _ := newTestRequest("aaaaaaaa-0000-0000-0000-000000000001", "alice", "survey-1")
	expired.Status = interfaces.StatusInTimeDelay
	past := now.Add(-time.Hour)
	expired.TimeDelayUntil = &past

	pending, _ := newTestRequest("aaaaaaaa-0000-0000-0000-000000000002", "bob", "survey-2")
	pending.Status = interfaces.StatusInTimeDelay
	future := now.Add(time.Hour)
	pending.TimeDelayUntil = &future

	fresh, _ := newTestRequest("aaaaaaaa-0000-0000-0000-000000000003", "carol", "survey-3")

	for _, req := range []*interfaces.RecoveryRequest{expired, pending, fresh} {
		_, submitted := newTestRequest(string(req.ID), string(req.UserID), string(req.SurveyID))
		require.NoError(t, store.CreateRequest(ctx, req, submitted))
	}

	ids, err := store.ExpiredTimeDelays(ctx, now)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, expired.ID, ids[0])
}

func TestMemoryStoreSurveys(t *testing.T) {
	store := NewMemoryStore()
	store.AddSurvey(&interfaces.Survey{ID: "survey-1", Name: "Staff wellbeing", OwnerID: "alice"})

	survey, err := store.GetSurvey(context.Background(), "survey-1")
	require.NoError(t, err)
	assert.Equal(t, interfaces.UserID("alice"), survey.OwnerID)

	_, err = store.GetSurvey(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
