package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// hashHexLen is the length of a hex-encoded 256-bit digest.
const hashHexLen = 64

// NewEntry builds an audit entry linked to the current chain tail, with
// EntryHash computed over the canonical content. previousHash must be the
// EntryHash of the request's most recent entry, or "" if none exists;
// LastHash derives it from an ordered entry slice.
func NewEntry(requestID interfaces.RequestID, event interfaces.EventType, actor interfaces.Actor, severity interfaces.Severity, details interfaces.Details, previousHash string, now time.Time) *interfaces.AuditEntry {
	entry := &interfaces.AuditEntry{
		RequestID:    requestID,
		EventType:    event,
		ActorType:    actor.Type(),
		ActorID:      actor.ID,
		ActorEmail:   actor.Email,
		Severity:     severity,
		Details:      details.Clone(),
		Timestamp:    now.UTC(),
		PreviousHash: previousHash,
	}
	entry.EntryHash = computeHash(entry)
	return entry
}

// LastHash returns the EntryHash of the final entry in an ordered chain, or
// "" for an empty chain.
func LastHash(entries []*interfaces.AuditEntry) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[len(entries)-1].EntryHash
}

// computeHash digests the canonical serialization of the entry. The
// serialization is a JSON object, which encoding/json emits with sorted
// keys, making the digest deterministic across runs and implementations.
func computeHash(e *interfaces.AuditEntry) string {
	// Nil and empty details hash identically: encodings that omit empty
	// maps must not change the digest on a load round trip.
	var details map[string]any
	if len(e.Details) > 0 {
		details = map[string]any(e.Details)
	}

	canonical := map[string]any{
		"request_id":    string(e.RequestID),
		"event_type":    string(e.EventType),
		"actor_type":    string(e.ActorType),
		"actor_id":      e.ActorID,
		"actor_email":   e.ActorEmail,
		"severity":      string(e.Severity),
		"details":       details,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"previous_hash": e.PreviousHash,
	}

	// Marshaling a map of JSON-safe values cannot fail.
	payload, err := json.Marshal(canonical)
	if err != nil {
		panic(fmt.Sprintf("audit: canonical serialization failed: %v", err))
	}

	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}

// VerifyEntries recomputes the hash chain over an ordered entry sequence.
// It returns false on any linkage break, recomputed-hash mismatch,
// malformed digest, or out-of-order timestamps. An empty chain is valid.
func VerifyEntries(entries []*interfaces.AuditEntry) bool {
	previousHash := ""
	var previousTime time.Time

	for _, e := range entries {
		if e.PreviousHash != previousHash {
			return false
		}
		if len(e.EntryHash) != hashHexLen {
			return false
		}
		if e.Timestamp.Before(previousTime) {
			return false
		}
		if computeHash(e) != e.EntryHash {
			return false
		}
		previousHash = e.EntryHash
		previousTime = e.Timestamp
	}
	return true
}

// Chain verifies persisted audit chains against a store.
type Chain struct {
	store interfaces.Store
	log   *slog.Logger
}

// NewChain creates a chain verifier over the given store.
func NewChain(store interfaces.Store, log *slog.Logger) *Chain {
	return &Chain{store: store, log: log}
}

// Verify loads the request's entries and confirms the hash chain. A broken
// chain yields (false, nil): verification is diagnostic and never blocks
// reading the entries themselves.
func (c *Chain) Verify(ctx context.Context, id interfaces.RequestID) (bool, error) {
	entries, err := c.store.AuditEntries(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to load audit entries: %w", err)
	}

	ok := VerifyEntries(entries)
	if !ok {
		c.log.Warn("Audit chain verification failed",
			slog.String("request_id", id.String()),
			slog.Int("entries", len(entries)))
	}
	return ok, nil
}
