package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	BranchListKeyPrefix = "branches:category:%d"
	RequestKeyPrefix    = "request:%s"
)

const (
	BranchListTTL = 5 * time.Minute
	RequestTTL    = 2 * time.Minute
)

func BranchListKey(categoryID uint) string {
	return fmt.Sprintf(BranchListKeyPrefix, categoryID)
}

func RequestKey(number string) string {
	return fmt.Sprintf(RequestKeyPrefix, number)
}

// GetJSON loads and unmarshals a cached value into dest. Returns false on a
// miss, a nil client or a decode problem.
func GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if client == nil {
		return false
	}
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// SetJSON stores a value as JSON with a TTL. Failures are silent; the cache
// is an optimization, not a source of truth.
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	client.Set(ctx, key, raw, ttl)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateBranchList(ctx context.Context, categoryID uint) {
	Invalidate(ctx, BranchListKey(categoryID))
}

func InvalidateRequest(ctx context.Context, number string) {
	Invalidate(ctx, RequestKey(number))
}
