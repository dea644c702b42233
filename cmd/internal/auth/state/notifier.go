package state

import "log/slog"

// Notifier carries user-facing outcome messages out of the mutation service.
// The rendering layer plugs in its own implementation; the default just logs.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Success(msg string) {
	n.Log.Info("notify.success", "msg", msg)
}

func (n LogNotifier) Error(msg string) {
	n.Log.Warn("notify.error", "msg", msg)
}
