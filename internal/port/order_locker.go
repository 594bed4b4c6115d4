package port

import "context"

// ReleaseFunc gives a held lock back.
type ReleaseFunc func(ctx context.Context) error

type OrderLocker interface {
	// Lock blocks until the order is exclusively held or the wait runs out,
	// returns domain.ErrOrderLocked in the latter case
	Lock(ctx context.Context, orderID int64) (ReleaseFunc, error)
}
