package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// MemoryStore is an in-process Store implementation. Requests are guarded
// individually so transitions on different requests proceed in parallel
// while transitions on one request serialize.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[interfaces.RequestID]*memRecord
	surveys  map[interfaces.SurveyID]*interfaces.Survey
}

type memRecord struct {
	mu      sync.Mutex
	req     *interfaces.RecoveryRequest
	entries []*interfaces.AuditEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[interfaces.RequestID]*memRecord),
		surveys:  make(map[interfaces.SurveyID]*interfaces.Survey),
	}
}

// AddSurvey registers a survey so recovery requests may reference it.
func (s *MemoryStore) AddSurvey(survey *interfaces.Survey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *survey
	s.surveys[survey.ID] = &cp
}

// GetSurvey implements interfaces.Store.
func (s *MemoryStore) GetSurvey(_ context.Context, id interfaces.SurveyID) (*interfaces.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	survey, ok := s.surveys[id]
	if !ok {
		return nil, fmt.Errorf("%w: survey %s", interfaces.ErrNotFound, id)
	}
	cp := *survey
	return &cp, nil
}

// CreateRequest implements interfaces.Store. The duplicate-active check
// and the insertion happen under one lock, so two concurrent creations for
// the same (user, survey) cannot both succeed.
func (s *MemoryStore) CreateRequest(_ context.Context, req *interfaces.RecoveryRequest, submitted *interfaces.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.requests {
		rec.mu.Lock()
		duplicate := rec.req.UserID == req.UserID &&
			rec.req.SurveyID == req.SurveyID &&
			rec.req.Active()
		rec.mu.Unlock()
		if duplicate {
			return fmt.Errorf("%w: user %s, survey %s",
				interfaces.ErrDuplicateRequest, req.UserID, req.SurveyID)
		}
	}
	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}

	s.requests[req.ID] = &memRecord{
		req:     req.Clone(),
		entries: []*interfaces.AuditEntry{submitted.Clone()},
	}
	return nil
}

func (s *MemoryStore) record(id interfaces.RequestID) (*memRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: recovery request %s", interfaces.ErrNotFound, id)
	}
	return rec, nil
}

// GetRequest implements interfaces.Store.
func (s *MemoryStore) GetRequest(_ context.Context, id interfaces.RequestID) (*interfaces.RecoveryRequest, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.req.Clone(), nil
}

// MutateRequest implements interfaces.Store.
func (s *MemoryStore) MutateRequest(_ context.Context, id interfaces.RequestID, fn func(tx interfaces.RequestTx) error) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	tx := &memTx{req: rec.req.Clone()}
	tx.existing = make([]*interfaces.AuditEntry, len(rec.entries))
	for i, e := range rec.entries {
		tx.existing[i] = e.Clone()
	}

	if err := fn(tx); err != nil {
		return err
	}

	rec.req = tx.req
	for _, e := range tx.staged {
		rec.entries = append(rec.entries, e.Clone())
	}
	return nil
}

// AuditEntries implements interfaces.Store.
func (s *MemoryStore) AuditEntries(_ context.Context, id interfaces.RequestID) ([]*interfaces.AuditEntry, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	out := make([]*interfaces.AuditEntry, len(rec.entries))
	for i, e := range rec.entries {
		out[i] = e.Clone()
	}
	return out, nil
}

// ExpiredTimeDelays implements interfaces.Store.
func (s *MemoryStore) ExpiredTimeDelays(_ context.Context, now time.Time) ([]interfaces.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []interfaces.RequestID
	for id, rec := range s.requests {
		rec.mu.Lock()
		expired := rec.req.Status == interfaces.StatusInTimeDelay &&
			rec.req.TimeDelayUntil != nil &&
			!rec.req.TimeDelayUntil.After(now)
		rec.mu.Unlock()
		if expired {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// memTx is the transaction view handed to MutateRequest functions.
type memTx struct {
	req      *interfaces.RecoveryRequest
	existing []*interfaces.AuditEntry
	staged   []*interfaces.AuditEntry
}

func (t *memTx) Request() *interfaces.RecoveryRequest { return t.req }

func (t *memTx) Entries() []*interfaces.AuditEntry {
	out := make([]*interfaces.AuditEntry, 0, len(t.existing)+len(t.staged))
	out = append(out, t.existing...)
	out = append(out, t.staged...)
	return out
}

func (t *memTx) Append(entry *interfaces.AuditEntry) {
	t.staged = append(t.staged, entry)
}
