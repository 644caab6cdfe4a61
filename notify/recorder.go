package notify

import (
	"context"
	"sync"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// Recorder is a Notifier for tests. It records every notification and can
// be told to fail, since delivery failures must never abort a transition.
type Recorder struct {
	mu     sync.Mutex
	events []string
	Err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Events returns the recorded notification kinds in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) record(kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind)
	return r.Err
}

func (r *Recorder) NotifyAdmins(context.Context, *interfaces.RecoveryRequest) error {
	return r.record("admins")
}

func (r *Recorder) NotifyUserApproved(context.Context, *interfaces.RecoveryRequest) error {
	return r.record("approved")
}

func (r *Recorder) NotifyUserRejected(context.Context, *interfaces.RecoveryRequest) error {
	return r.record("rejected")
}

func (r *Recorder) NotifyUserReady(context.Context, *interfaces.RecoveryRequest) error {
	return r.record("ready")
}

func (r *Recorder) NotifyUserCancelled(context.Context, *interfaces.RecoveryRequest) error {
	return r.record("cancelled")
}
