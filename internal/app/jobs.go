package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"clinic-queue-api/internal/queue"
	"clinic-queue-api/internal/session"
)

// StartJobs schedules the recurring background work: the look-ahead
// notification pass every five minutes and the session sweep hourly.
// Both are explicit jobs here rather than timers hidden in request
// handlers.
func StartJobs(q *queue.Service, authority *session.Authority, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc("*/5 * * * *", func() {
		q.NotifyAll(context.Background())
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc("@hourly", func() {
		authority.Sweep(context.Background())
	}); err != nil {
		return nil, err
	}

	c.Start()
	logger.Info("background jobs started")
	return c, nil
}
