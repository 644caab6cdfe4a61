// Package notify provides Notifier implementations for the recovery
// workflow. The default LogNotifier writes structured log records instead
// of sending mail, which fits the operator CLI where the mail system lives
// in the surrounding platform. A Recorder is provided for tests.
package notify
