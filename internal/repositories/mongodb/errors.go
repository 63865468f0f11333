package mongodb

import (
	"errors"
	"fmt"

	"ridemate/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/mongo"
)

const writeConflictCode = 112

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(writeConflictCode)
	}
	return false
}

// wrapWriteError maps driver errors on writes to the repository sentinels.
func wrapWriteError(action string, err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("failed to %s: %w", action, interfaces.ErrDuplicate)
	case isWriteConflict(err):
		return fmt.Errorf("failed to %s: %w: %v", action, interfaces.ErrWriteConflict, err)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}
