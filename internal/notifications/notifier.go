// Package notifications publishes notification payloads to Redis pub/sub
// channels so downstream consumers (mobile push, dashboards) can pick them
// up. Publishing is best-effort and nil-client safe; the dispatch flow never
// depends on it.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Payload is the wire shape published for one notification.
type Payload struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	RequestID uint   `json:"request_id,omitempty"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload Payload) error {
	if n.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, UserChannel(userID), raw).Err()
}

// PublishOps broadcasts an operational event (e.g. SLA breach) to the
// shared ops channel in addition to per-admin channels.
func (n *Notifier) PublishOps(ctx context.Context, payload Payload) error {
	if n.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, OpsChannel, raw).Err()
}

// OpsChannel carries operational broadcasts for admin dashboards.
const OpsChannel = "notifications:ops"

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}
