package mongodb

import (
	"context"
	"errors"
	"fmt"

	"ridemate/internal/repositories/interfaces"
	"ridemate/pkg/database"
)

type transactor struct {
	db *database.MongoDB
}

func NewTransactor(db *database.MongoDB) interfaces.Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := t.db.WithTransaction(ctx, fn)
	if err == nil || errors.Is(err, interfaces.ErrWriteConflict) {
		return err
	}
	if isWriteConflict(err) {
		return fmt.Errorf("transaction aborted: %w: %v", interfaces.ErrWriteConflict, err)
	}
	return err
}
