package notify

import (
	"context"
	"log/slog"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// LogNotifier implements interfaces.Notifier by emitting structured log
// records. Deployments that deliver mail wrap or replace it.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier that logs through the given logger.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) emit(msg string, req *interfaces.RecoveryRequest) {
	n.log.Info(msg,
		slog.String("request_id", req.ID.String()),
		slog.String("request_code", req.RequestCode.String()),
		slog.String("survey_id", string(req.SurveyID)),
		slog.String("user_email", req.UserEmail),
		slog.String("status", req.Status.String()),
	)
}

func (n *LogNotifier) NotifyAdmins(_ context.Context, req *interfaces.RecoveryRequest) error {
	n.emit("Recovery request awaiting administrator review", req)
	return nil
}

func (n *LogNotifier) NotifyUserApproved(_ context.Context, req *interfaces.RecoveryRequest) error {
	n.emit("Recovery request approved, time delay started", req)
	return nil
}

func (n *LogNotifier) NotifyUserRejected(_ context.Context, req *interfaces.RecoveryRequest) error {
	n.emit("Recovery request rejected", req)
	return nil
}

func (n *LogNotifier) NotifyUserReady(_ context.Context, req *interfaces.RecoveryRequest) error {
	n.emit("Recovery request ready for execution", req)
	return nil
}

func (n *LogNotifier) NotifyUserCancelled(_ context.Context, req *interfaces.RecoveryRequest) error {
	n.emit("Recovery request cancelled", req)
	return nil
}
