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

package sedna

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mindops/hotelsync/internal/models"
)

// retryPolicy retries transient failures with exponential backoff. Protocol,
// auth and validation failures are permanent and returned immediately.
type retryPolicy struct {
	attempts    int
	minInterval time.Duration
}

func newRetryPolicy(attempts int) retryPolicy {
	if attempts < 1 {
		attempts = 3
	}
	return retryPolicy{attempts: attempts, minInterval: 500 * time.Millisecond}
}

// do runs op, retrying transient errors up to the attempt bound.
func (p retryPolicy) do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.minInterval
	bo.MaxElapsedTime = 0

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !models.KindOf(err).Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.attempts-1)), ctx))
}
