/**
 * @description
 * Scheduled job implementations for the claim-service.
 */
package app

import (
	"context"
	"log/slog"
	"time"
)

// SubscriptionSweeper finalizes subscriptions whose paid period has lapsed.
type SubscriptionSweeper interface {
	CancelLapsed(ctx context.Context) (int64, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	subscriptions SubscriptionSweeper
	logger        *slog.Logger
	timeout       time.Duration
}

// NewJobs creates a new Jobs runner.
func NewJobs(subscriptions SubscriptionSweeper, logger *slog.Logger) *Jobs {
	return &Jobs{
		subscriptions: subscriptions,
		logger:        logger,
		timeout:       time.Minute,
	}
}

// CancelLapsedSubscriptions moves subscriptions flagged cancel-at-period-end to
// canceled once their period end has passed. Provider-backed rows are normally
// finalized by webhook; this covers simulated rows and missed callbacks.
func (j *Jobs) CancelLapsedSubscriptions() {
	j.logger.Info("starting lapsed subscription sweep")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	count, err := j.subscriptions.CancelLapsed(ctx)
	if err != nil {
		j.logger.Error("failed to cancel lapsed subscriptions", "error", err)
		return
	}
	if count == 0 {
		j.logger.Info("no lapsed subscriptions to cancel")
		return
	}

	j.logger.Info("lapsed subscription sweep finished", "canceled", count)
}
