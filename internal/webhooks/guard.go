package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/paquetebot/paquetebot-backend/pkg/enums"
	"github.com/paquetebot/paquetebot-backend/pkg/logger"
	"github.com/paquetebot/paquetebot-backend/pkg/metrics"
	"github.com/paquetebot/paquetebot-backend/pkg/redis"
)

// DeliveryGuard drops webhook redeliveries. Both platforms retry deliveries
// on timeout, and a retried "confirm" tap must not create a second draft, so
// each delivery id is claimed with SetNX before processing.
type DeliveryGuard struct {
	store   redis.IdempotencyStore
	ttl     time.Duration
	logg    *logger.Logger
	metrics *metrics.BotMetrics
}

func NewDeliveryGuard(store redis.IdempotencyStore, ttl time.Duration, logg *logger.Logger, botMetrics *metrics.BotMetrics) (*DeliveryGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &DeliveryGuard{store: store, ttl: ttl, logg: logg, metrics: botMetrics}, nil
}

// ShouldProcess claims the delivery id and reports whether this is its first
// arrival. Deliveries without an id, and redis failures, are processed: the
// intake machine tolerates a duplicate turn, a silently dropped one it does
// not.
func (g *DeliveryGuard) ShouldProcess(ctx context.Context, channel enums.Channel, deliveryID string) bool {
	if deliveryID == "" {
		return true
	}

	key := g.store.IdempotencyKey("webhook:"+channel.String(), deliveryID)
	claimed, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		g.logg.Error(ctx, "webhook dedup check failed, processing anyway", err)
		return true
	}
	if !claimed {
		g.logg.Warn(g.logg.WithFields(ctx, map[string]any{"channel": channel.String(), "delivery_id": deliveryID}), "duplicate webhook delivery dropped")
		g.metrics.IncWebhookDropped(channel.String())
		return false
	}
	return true
}

// Release drops the claim for a delivery whose processing failed, so the
// platform's redelivery is treated as a first arrival.
func (g *DeliveryGuard) Release(ctx context.Context, channel enums.Channel, deliveryID string) {
	if deliveryID == "" {
		return
	}
	key := g.store.IdempotencyKey("webhook:"+channel.String(), deliveryID)
	if err := g.store.Del(ctx, key); err != nil {
		g.logg.Error(ctx, "webhook dedup release failed", err)
	}
}
