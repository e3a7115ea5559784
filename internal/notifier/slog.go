package notifier

import (
	"context"
	"log/slog"
)

type SLogNotifier struct {
	Logger *slog.Logger
}

var _ Notifier = &SLogNotifier{}

func (s SLogNotifier) Notify(msg Message) {
	level := slog.LevelInfo
	if msg.Level == Warning {
		level = slog.LevelWarn
	}
	s.Logger.Log(context.Background(), level, msg.Title, "text", msg.Text)
}
