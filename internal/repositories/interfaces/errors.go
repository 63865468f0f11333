package interfaces

import (
	"context"
	"errors"

	"ridemate/internal/models"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrWriteConflict = errors.New("write conflict")
	ErrDuplicate     = errors.New("duplicate document")
)

// Transactor runs fn as one atomic unit. A call made with a context that
// already carries a transaction joins it instead of starting a new one.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ChangeFeed streams committed writes matching a query until cancel is called
// or ctx is done.
type ChangeFeed interface {
	Subscribe(ctx context.Context, query models.SubscriptionQuery) (<-chan models.ChangeEvent, func(), error)
}
