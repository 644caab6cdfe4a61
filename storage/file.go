package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// FileStore is a Store implementation persisting requests, audit chains,
// and surveys as JSON files under a base directory:
//
//	<base>/surveys/<survey-id>.json
//	<base>/requests/<request-id>/request.json
//	<base>/requests/<request-id>/audit.json
//
// Locking is in-process (one lock per request plus a store lock for
// creation), which suits the operator CLI's single-process usage. Files are
// replaced via temp-file renames, audit chain before request, so a crash
// mid-commit never yields a truncated file or a visible transition without
// its audit entry.
type FileStore struct {
	baseDir string
	log     *slog.Logger

	mu    sync.Mutex
	locks map[interfaces.RequestID]*sync.Mutex
}

// NewFileStore creates a file store rooted at baseDir, creating the
// directory layout if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "surveys"), filepath.Join(baseDir, "requests")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return &FileStore{
		baseDir: baseDir,
		log:     log,
		locks:   make(map[interfaces.RequestID]*sync.Mutex),
	}, nil
}

func (s *FileStore) surveyPath(id interfaces.SurveyID) string {
	return filepath.Join(s.baseDir, "surveys", string(id)+".json")
}

func (s *FileStore) requestDir(id interfaces.RequestID) string {
	return filepath.Join(s.baseDir, "requests", string(id))
}

func (s *FileStore) requestLock(id interfaces.RequestID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// PutSurvey persists a survey record.
func (s *FileStore) PutSurvey(survey *interfaces.Survey) error {
	return writeJSON(s.surveyPath(survey.ID), survey)
}

// GetSurvey implements interfaces.Store.
func (s *FileStore) GetSurvey(_ context.Context, id interfaces.SurveyID) (*interfaces.Survey, error) {
	var survey interfaces.Survey
	if err := readJSON(s.surveyPath(id), &survey); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: survey %s", interfaces.ErrNotFound, id)
		}
		return nil, err
	}
	return &survey, nil
}

// CreateRequest implements interfaces.Store.
func (s *FileStore) CreateRequest(ctx context.Context, req *interfaces.RecoveryRequest, submitted *interfaces.AuditEntry) error {
	// The store lock makes the duplicate scan and directory creation
	// atomic with respect to concurrent creations.
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listRequestIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		existing, err := s.loadRequest(id)
		if err != nil {
			return err
		}
		if existing.UserID == req.UserID && existing.SurveyID == req.SurveyID && existing.Active() {
			return fmt.Errorf("%w: user %s, survey %s",
				interfaces.ErrDuplicateRequest, req.UserID, req.SurveyID)
		}
	}

	dir := s.requestDir(req.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create request directory: %w", err)
	}
	// Audit before request: a crash between the two writes must never
	// leave a visible request without its audit record.
	if err := writeJSON(filepath.Join(dir, "audit.json"), entriesToJSON([]*interfaces.AuditEntry{submitted})); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "request.json"), requestToJSON(req)); err != nil {
		return err
	}

	s.log.Debug("Recovery request persisted",
		slog.String("request_id", req.ID.String()),
		slog.String("path", dir))
	return nil
}

// GetRequest implements interfaces.Store.
func (s *FileStore) GetRequest(_ context.Context, id interfaces.RequestID) (*interfaces.RecoveryRequest, error) {
	return s.loadRequest(id)
}

// MutateRequest implements interfaces.Store.
func (s *FileStore) MutateRequest(_ context.Context, id interfaces.RequestID, fn func(tx interfaces.RequestTx) error) error {
	lock := s.requestLock(id)
	lock.Lock()
	defer lock.Unlock()

	req, err := s.loadRequest(id)
	if err != nil {
		return err
	}
	entries, err := s.loadEntries(id)
	if err != nil {
		return err
	}

	tx := &memTx{req: req, existing: entries}
	if err := fn(tx); err != nil {
		return err
	}

	// Audit before request: a crash between the two writes must never
	// leave a committed transition without its audit entry.
	if len(tx.staged) > 0 {
		if err := writeJSON(filepath.Join(s.requestDir(id), "audit.json"), entriesToJSON(tx.Entries())); err != nil {
			return err
		}
	}
	return writeJSON(filepath.Join(s.requestDir(id), "request.json"), requestToJSON(tx.req))
}

// AuditEntries implements interfaces.Store.
func (s *FileStore) AuditEntries(_ context.Context, id interfaces.RequestID) ([]*interfaces.AuditEntry, error) {
	if _, err := s.loadRequest(id); err != nil {
		return nil, err
	}
	return s.loadEntries(id)
}

// ExpiredTimeDelays implements interfaces.Store.
func (s *FileStore) ExpiredTimeDelays(_ context.Context, now time.Time) ([]interfaces.RequestID, error) {
	s.mu.Lock()
	ids, err := s.listRequestIDs()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var expired []interfaces.RequestID
	for _, id := range ids {
		req, err := s.loadRequest(id)
		if err != nil {
			return nil, err
		}
		if req.Status == interfaces.StatusInTimeDelay &&
			req.TimeDelayUntil != nil &&
			!req.TimeDelayUntil.After(now) {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (s *FileStore) listRequestIDs() ([]interfaces.RequestID, error) {
	dirEntries, err := os.ReadDir(filepath.Join(s.baseDir, "requests"))
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	ids := make([]interfaces.RequestID, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			ids = append(ids, interfaces.RequestID(de.Name()))
		}
	}
	return ids, nil
}

func (s *FileStore) loadRequest(id interfaces.RequestID) (*interfaces.RecoveryRequest, error) {
	var dto requestJSON
	if err := readJSON(filepath.Join(s.requestDir(id), "request.json"), &dto); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: recovery request %s", interfaces.ErrNotFound, id)
		}
		return nil, err
	}
	return dto.toRequest(), nil
}

func (s *FileStore) loadEntries(id interfaces.RequestID) ([]*interfaces.AuditEntry, error) {
	var dtos []entryJSON
	if err := readJSON(filepath.Join(s.requestDir(id), "audit.json"), &dtos); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]*interfaces.AuditEntry, len(dtos))
	for i := range dtos {
		entries[i] = dtos[i].toEntry()
	}
	return entries, nil
}

// writeJSON writes through a temp file and a rename so a crash mid-write
// never leaves a truncated file at path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
