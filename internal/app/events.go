package app

import (
	"context"
	"log/slog"
)

// publishEvent publishes best effort; a broker failure never fails the caller's request.
func publishEvent(ctx context.Context, publisher EventPublisher, logger *slog.Logger, routingKey string, body interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, routingKey, body); err != nil {
		logger.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}
