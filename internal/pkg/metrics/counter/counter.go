// Package counter keeps lightweight operational counters for the webhook
// channel in Redis. Counters are best-effort: failures are returned but the
// callers never let them block an acknowledgment to the provider.
package counter

import (
	"context"
	"strconv"

	"github.com/marcwilhelm/echowave/internal/pkg/cache"
)

const (
	webhookReceivedKey  = "billing:counters:webhook_received"
	webhookDuplicateKey = "billing:counters:webhook_duplicate"
	tokensCreditedKey   = "billing:counters:tokens_credited"
)

// AddWebhookReceived increments the received counter for an event type.
func AddWebhookReceived(eventType string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookReceivedKey, eventType, 1).Err()
}

// AddWebhookDuplicate increments the duplicate-delivery counter for an event type.
func AddWebhookDuplicate(eventType string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookDuplicateKey, eventType, 1).Err()
}

// AddTokensCredited adds the credited quantity to the running total.
func AddTokensCredited(qty int64) error {
	ctx := context.Background()
	return cache.GetClient().IncrBy(ctx, tokensCreditedKey, qty).Err()
}

// Snapshot returns the current counter values for an event type plus the
// credited-token total.
func Snapshot(eventType string) (received, duplicate, credited int64) {
	ctx := context.Background()
	client := cache.GetClient()
	if v, err := client.HGet(ctx, webhookReceivedKey, eventType).Result(); err == nil {
		received, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, err := client.HGet(ctx, webhookDuplicateKey, eventType).Result(); err == nil {
		duplicate, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, err := client.Get(ctx, tokensCreditedKey).Result(); err == nil {
		credited, _ = strconv.ParseInt(v, 10, 64)
	}
	return received, duplicate, credited
}
