// Package notify delivers "your turn is near" messages to patients.
// Delivery failures are surfaced to the caller but are never fatal to
// queue advancement; duplicates are tolerable.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, contact, message string) error
}

// LogNotifier writes messages to the log instead of sending them.
// Used in development and as the fallback when no channel is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Send(_ context.Context, contact, message string) error {
	n.Logger.Info("notification",
		zap.String("contact", contact),
		zap.String("message", message),
	)
	return nil
}

// Multi fans a message out to every configured channel. It reports
// success if at least one channel accepted the message.
type Multi struct {
	Notifiers []Notifier
}

func (m *Multi) Send(ctx context.Context, contact, message string) error {
	var errs []error
	delivered := false
	for _, n := range m.Notifiers {
		if err := n.Send(ctx, contact, message); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return errors.Join(errs...)
}
