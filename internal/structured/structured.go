// Package structured wraps an llm.Completer with the parse/validate/retry
// contract: the model's raw output is stripped of markdown fences, decoded as
// JSON into a target type, and validated; any failure retries the entire
// completion call with exponential backoff until the attempt budget runs out.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/linnemanlabs/sift/internal/llm"
)

// RetryPolicy bounds the retry loop. Backoff doubles from InitialDelay and
// is capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy mirrors the upstream contract: 3 total attempts,
// 1s initial delay, capped at 6s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     6 * time.Second,
	}
}

// Validator is implemented by target schemas: required fields present, enum
// fields in their closed sets, numeric fields within declared bounds.
type Validator interface {
	Validate() error
}

// Error is the terminal failure after the attempt budget is exhausted.
// It is never produced mid-loop; callers seeing it know no further retry
// will happen at this layer.
type Error struct {
	Attempts uint
	Last     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("structured completion failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *Error) Unwrap() error { return e.Last }

// Complete calls the completer with prompt, decodes the response into T, and
// validates it. A completion error, decode error, or validation error all
// trigger a fresh completion call under policy. PT exists only to require
// that *T implements Validator.
func Complete[T any, PT interface {
	*T
	Validator
}](ctx context.Context, c llm.Completer, prompt string, policy RetryPolicy) (*T, error) {
	var attempts uint

	operation := func() (*T, error) {
		attempts++

		raw, err := c.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("complete: %w", err)
		}

		out := new(T)
		if err := json.Unmarshal([]byte(StripFences(raw)), out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if err := PT(out).Validate(); err != nil {
			return nil, fmt.Errorf("validate response: %w", err)
		}
		return out, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialDelay
	bo.MaxInterval = policy.MaxDelay
	bo.Multiplier = 2

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(policy.MaxAttempts),
	)
	if err != nil {
		return nil, &Error{Attempts: attempts, Last: err}
	}
	return out, nil
}

// StripFences removes a markdown code fence wrapper the model sometimes adds
// around JSON output. Input without fences passes through unchanged.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
