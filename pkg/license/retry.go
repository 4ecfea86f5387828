// Copyright 2025 venslabs
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

package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RateLimitError is returned when the license host refuses a request because of rate limiting.
type RateLimitError struct {
	StatusCode int
	// Reset is the time the limit resets, when the host reported it.
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return fmt.Sprintf("rate limited (status code: %d)", e.StatusCode)
	}
	return fmt.Sprintf("rate limited (status code: %d), resets at %s", e.StatusCode, e.Reset.Format(time.RFC3339))
}

// RetryOnRateLimit calls fn up to maxRetry times while it fails with a RateLimitError.
// Between attempts it waits interval, or until the reported reset when that comes sooner.
func RetryOnRateLimit(ctx context.Context, interval time.Duration, maxRetry int, fn func(context.Context) error) error {
	var err error
	began := time.Now()
	for i := 0; i < maxRetry; i++ {
		err = fn(ctx)
		if !isRateLimit(err) {
			return err
		}
		if i == maxRetry-1 {
			break
		}
		wait := retryWait(err, interval, time.Now())
		slog.InfoContext(ctx, "Detected rate limit. Sleeping.", "interval", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	elapsed := time.Since(began)
	return fmt.Errorf("still hitting rate limit, after retrying %d times in %v: %w", maxRetry, elapsed, err)
}

func retryWait(err error, interval time.Duration, now time.Time) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && !rl.Reset.IsZero() {
		if until := rl.Reset.Sub(now); until < interval {
			return max(until, 0)
		}
	}
	return interval
}

func isRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
