// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// eventKeyPrefix namespaces per-run event lists in Redis.
	eventKeyPrefix = "hotelsync:sync:events:"

	// eventListTTL keeps finished run histories around long enough for
	// dashboards to read them.
	eventListTTL = 24 * time.Hour
)

// RedisPublisher mirrors run events into a per-run Redis list so external
// dashboards can follow progress without holding an SSE connection.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates an event publisher backed by Redis.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish appends the event to the run's list and refreshes its TTL.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := eventKeyPrefix + event.RunID
	pipe := p.rdb.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.Expire(ctx, key, eventListTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis RPUSH: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
