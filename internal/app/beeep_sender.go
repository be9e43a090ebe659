package app

import (
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/skobkin/wedgego/internal/notifications"
)

// BeeepSender delivers notifications through the desktop notification daemon
// without a GUI toolkit. It backs the headless debug binary.
type BeeepSender struct {
	logger *slog.Logger
	notify func(title, message string) error
}

func NewBeeepSender(logger *slog.Logger) *BeeepSender {
	if logger == nil {
		logger = slog.Default()
	}
	beeep.AppName = Name

	return &BeeepSender{
		logger: logger,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (s *BeeepSender) Send(payload notifications.Payload) {
	if s == nil || s.notify == nil {
		return
	}

	payload, ok := payload.Normalize()
	if !ok {
		return
	}
	if err := s.notify(payload.Title, payload.Content); err != nil {
		s.logger.Warn("desktop notification failed", "title", payload.Title, "error", err)
	}
}
