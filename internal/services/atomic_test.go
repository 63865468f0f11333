package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ridemate/internal/repositories/interfaces"
	"ridemate/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passthroughTx struct {
	calls int
}

func (p *passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

func TestAtomicRunnerRetriesConflicts(t *testing.T) {
	tx := &passthroughTx{}
	r := &atomicRunner{tx: tx, policy: RetryPolicy{MaxRetries: 3, Backoff: time.Millisecond}, logger: logger.NewDiscard()}

	attempts := 0
	err := r.run(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return interfaces.ErrWriteConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, tx.calls)
}

func TestAtomicRunnerGivesUpWithConflictError(t *testing.T) {
	r := &atomicRunner{tx: &passthroughTx{}, policy: RetryPolicy{MaxRetries: 2}, logger: logger.NewDiscard()}

	attempts := 0
	err := r.run(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		return interfaces.ErrWriteConflict
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, interfaces.ErrWriteConflict)
	assert.Equal(t, 3, attempts)
}

func TestAtomicRunnerLogsRequestOnGiveUp(t *testing.T) {
	log, err := logger.NewLogger(&logger.Config{Level: logger.WarnLevel, Format: "json"})
	require.NoError(t, err)
	var buf bytes.Buffer
	log.SetOutput(&buf)

	r := &atomicRunner{tx: &passthroughTx{}, policy: RetryPolicy{MaxRetries: 1}, logger: log}
	ctx := context.WithValue(context.Background(), logger.RequestIDKey, "req-7")
	err = r.run(ctx, "join_ride", func(ctx context.Context) error {
		return interfaces.ErrWriteConflict
	})
	require.ErrorIs(t, err, ErrConflict)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-7", entry["request_id"])
	assert.Equal(t, "join_ride", entry["operation"])
	assert.Equal(t, "Giving up after 2 attempts with write conflicts", entry["message"])
}

func TestAtomicRunnerDoesNotRetryDomainErrors(t *testing.T) {
	r := &atomicRunner{tx: &passthroughTx{}, policy: DefaultRetryPolicy(), logger: logger.NewDiscard()}

	attempts := 0
	boom := errors.New("boom")
	err := r.run(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestAtomicRunnerStopsOnCancel(t *testing.T) {
	r := &atomicRunner{tx: &passthroughTx{}, policy: RetryPolicy{MaxRetries: 5, Backoff: time.Hour}, logger: logger.NewDiscard()}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := r.run(ctx, "test", func(ctx context.Context) error {
		attempts++
		cancel()
		return interfaces.ErrWriteConflict
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestAppErrorMatching(t *testing.T) {
	err := NewCapacityError("No available seats")
	assert.ErrorIs(t, err, ErrCapacity)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, &AppError{Kind: KindCapacity, Message: "No available seats"})
	assert.NotErrorIs(t, err, &AppError{Kind: KindCapacity, Message: "other"})

	wrapped := errors.Join(errors.New("context"), err)
	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindCapacity, appErr.Kind)
}
