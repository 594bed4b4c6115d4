package port

import "context"

type IdempotencyStore interface {
	// Reserve claims key, returns false if it was already claimed
	Reserve(ctx context.Context, key string) (bool, error)

	// Bind records the order created under a reserved key
	Bind(ctx context.Context, key string, orderID int64) error

	// Resolve returns the order bound to key, or 0 while none is bound yet
	Resolve(ctx context.Context, key string) (int64, error)

	// Release drops a reservation whose request failed
	Release(ctx context.Context, key string) error
}
