package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"ridemate/internal/repositories/interfaces"
	"ridemate/pkg/logger"
)

type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, Backoff: 20 * time.Millisecond}
}

// atomicRunner executes read-validate-write cycles as transactions and
// repeats the whole cycle when the store reports a write conflict. A unique
// index violation is retried too: the next read sees the winner's document.
type atomicRunner struct {
	tx     interfaces.Transactor
	policy RetryPolicy
	logger *logger.Logger
}

func (r *atomicRunner) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := r.tx.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= r.policy.MaxRetries {
			r.logger.WithContext(ctx).WithField("operation", op).
				Warnf("Giving up after %d attempts with write conflicts", attempt+1)
			return &AppError{
				Kind:    KindConflict,
				Message: "The resource was modified concurrently, please retry",
				Err:     err,
			}
		}

		r.logger.WithContext(ctx).WithField("operation", op).Debugf("Write conflict on attempt %d, retrying", attempt+1)
		if err := sleepWithJitter(ctx, r.policy.Backoff, attempt); err != nil {
			return err
		}
	}
}

func sleepWithJitter(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		return ctx.Err()
	}
	wait := base*time.Duration(attempt+1) + time.Duration(rand.Int64N(int64(base)))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryable(err error) bool {
	return errors.Is(err, interfaces.ErrWriteConflict) || errors.Is(err, interfaces.ErrDuplicate)
}
