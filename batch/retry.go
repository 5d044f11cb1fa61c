// Copyright 2025 Poiesic Systems
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

package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryWithBackoff calls operation until it succeeds or maxAttempts calls
// have failed, sleeping baseDelay, 2*baseDelay, 4*baseDelay and so on between
// calls. A batch is retried as a unit, so one flaky provider response does
// not drop the whole batch.
//
// Cancellation of ctx stops the loop at once. If an attempt was in flight,
// the returned error wraps both ctx.Err() and that attempt's error.
// Otherwise the error of the final attempt is returned.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = operation(); err == nil {
			if attempt > 1 {
				slog.Debug("batch call recovered", "attempt", attempt)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		if attempt == maxAttempts {
			return err
		}

		delay := baseDelay << (attempt - 1)
		slog.Debug("batch call failed", "attempt", attempt, "max_attempts", maxAttempts, "retry_in", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
