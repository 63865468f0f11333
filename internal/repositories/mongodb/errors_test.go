package mongodb

import (
	"errors"
	"testing"

	"ridemate/internal/repositories/interfaces"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestWrapWriteError(t *testing.T) {
	duplicate := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	conflict := mongo.CommandError{Code: writeConflictCode, Name: "WriteConflict"}
	transient := mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}
	other := errors.New("connection reset")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"duplicate key", duplicate, interfaces.ErrDuplicate},
		{"write conflict code", conflict, interfaces.ErrWriteConflict},
		{"transient transaction label", transient, interfaces.ErrWriteConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapWriteError("update ride", tt.err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), "failed to update ride")
		})
	}

	err := wrapWriteError("update ride", other)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, interfaces.ErrDuplicate)
	assert.NotErrorIs(t, err, interfaces.ErrWriteConflict)
}

func TestIsWriteConflict(t *testing.T) {
	assert.True(t, isWriteConflict(mongo.CommandError{Code: writeConflictCode}))
	assert.False(t, isWriteConflict(mongo.CommandError{Code: 11000}))
	assert.False(t, isWriteConflict(errors.New("plain")))
}
