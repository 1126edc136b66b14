package repository

import "context"

// Repository is the lookup and update pair shared by the history tables.
// Inserts differ per table (upsert for runs, batches for events) and live on
// the concrete repositories.
type Repository[T any] interface {
	GetByID(ctx context.Context, id string) (*T, error)
	UpdateByID(ctx context.Context, id string, arg *T) (*T, error)
}
