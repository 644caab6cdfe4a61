package storage

import (
	"time"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// requestJSON is the on-disk representation of a recovery request.
type requestJSON struct {
	ID                string             `json:"id"`
	RequestCode       string             `json:"request_code"`
	UserID            string             `json:"user_id"`
	UserEmail         string             `json:"user_email"`
	SurveyID          string             `json:"survey_id"`
	Status            string             `json:"status"`
	UserContext       interfaces.Details `json:"user_context,omitempty"`
	RequestedBy       string             `json:"requested_by,omitempty"`
	Justification     string             `json:"justification,omitempty"`
	PrimaryApprover   string             `json:"primary_approver,omitempty"`
	SecondaryApprover string             `json:"secondary_approver,omitempty"`
	RejectedBy        string             `json:"rejected_by,omitempty"`
	TimeDelayHours    int                `json:"time_delay_hours"`
	TimeDelayUntil    *time.Time         `json:"time_delay_until,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func requestToJSON(req *interfaces.RecoveryRequest) *requestJSON {
	return &requestJSON{
		ID:                req.ID.String(),
		RequestCode:       string(req.RequestCode),
		UserID:            string(req.UserID),
		UserEmail:         req.UserEmail,
		SurveyID:          string(req.SurveyID),
		Status:            string(req.Status),
		UserContext:       req.UserContext.Clone(),
		RequestedBy:       req.RequestedBy,
		Justification:     req.Justification,
		PrimaryApprover:   req.PrimaryApprover,
		SecondaryApprover: req.SecondaryApprover,
		RejectedBy:        req.RejectedBy,
		TimeDelayHours:    req.TimeDelayHours,
		TimeDelayUntil:    req.TimeDelayUntil,
		CreatedAt:         req.CreatedAt,
		UpdatedAt:         req.UpdatedAt,
	}
}

func (d *requestJSON) toRequest() *interfaces.RecoveryRequest {
	return &interfaces.RecoveryRequest{
		ID:                interfaces.RequestID(d.ID),
		RequestCode:       interfaces.RequestCode(d.RequestCode),
		UserID:            interfaces.UserID(d.UserID),
		UserEmail:         d.UserEmail,
		SurveyID:          interfaces.SurveyID(d.SurveyID),
		Status:            interfaces.RequestStatus(d.Status),
		UserContext:       d.UserContext.Clone(),
		RequestedBy:       d.RequestedBy,
		Justification:     d.Justification,
		PrimaryApprover:   d.PrimaryApprover,
		SecondaryApprover: d.SecondaryApprover,
		RejectedBy:        d.RejectedBy,
		TimeDelayHours:    d.TimeDelayHours,
		TimeDelayUntil:    d.TimeDelayUntil,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// entryJSON is the on-disk representation of one audit chain entry.
// Timestamps are stored as RFC 3339 with nanoseconds so the entry hash
// recomputes identically after a load.
type entryJSON struct {
	RequestID    string             `json:"request_id"`
	EventType    string             `json:"event_type"`
	ActorType    string             `json:"actor_type"`
	ActorID      string             `json:"actor_id"`
	ActorEmail   string             `json:"actor_email"`
	Severity     string             `json:"severity"`
	Details      interfaces.Details `json:"details,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
	PreviousHash string             `json:"previous_hash"`
	EntryHash    string             `json:"entry_hash"`
}

func entryToJSON(e *interfaces.AuditEntry) entryJSON {
	return entryJSON{
		RequestID:    e.RequestID.String(),
		EventType:    string(e.EventType),
		ActorType:    string(e.ActorType),
		ActorID:      e.ActorID,
		ActorEmail:   e.ActorEmail,
		Severity:     string(e.Severity),
		Details:      e.Details.Clone(),
		Timestamp:    e.Timestamp,
		PreviousHash: e.PreviousHash,
		EntryHash:    e.EntryHash,
	}
}

func (d *entryJSON) toEntry() *interfaces.AuditEntry {
	return &interfaces.AuditEntry{
		RequestID:    interfaces.RequestID(d.RequestID),
		EventType:    interfaces.EventType(d.EventType),
		ActorType:    interfaces.ActorType(d.ActorType),
		ActorID:      d.ActorID,
		ActorEmail:   d.ActorEmail,
		Severity:     interfaces.Severity(d.Severity),
		Details:      d.Details.Clone(),
		Timestamp:    d.Timestamp.UTC(),
		PreviousHash: d.PreviousHash,
		EntryHash:    d.EntryHash,
	}
}

func entriesToJSON(entries []*interfaces.AuditEntry) []entryJSON {
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = entryToJSON(e)
	}
	return out
}
