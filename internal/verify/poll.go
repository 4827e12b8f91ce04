package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrPollTimeout is returned by Eventually when the condition did not hold
// before the deadline. It is distinct from a value mismatch.
var ErrPollTimeout = errors.New("poll timed out")

// Poll bounds a poll-until-condition loop.
type Poll struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Probe reads the remote state once and reports whether the expected
// condition holds. A returned error stops polling immediately, unless the
// poll deadline caused it.
type Probe func(ctx context.Context) (bool, error)

var errNotYet = errors.New("condition not met")

// Eventually runs probe until it reports true, the probe fails, or
// p.Timeout elapses. The probe always runs at least once.
func Eventually(ctx context.Context, p Poll, probe Probe) error {
	if p.Interval <= 0 {
		p.Interval = 250 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	attempts := 0
	op := func() error {
		attempts++
		ok, err := probe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return errNotYet
			}
			return backoff.Permanent(err)
		}
		if !ok {
			return errNotYet
		}
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.Interval), ctx)
	err := backoff.Retry(op, b)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNotYet), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s (%d attempts)", ErrPollTimeout, p.Timeout, attempts)
	default:
		return err
	}
}
