package repository

import (
	"context"

	"edu-arena/internal/rendezvous"
)

// Registry stores which peer id is served at which URL. Ids are unique across
// the whole namespace; a second Register for a live id fails with
// rendezvous.ErrIDTaken.
type Registry interface {
	Register(ctx context.Context, reg rendezvous.Registration) error
	Lookup(ctx context.Context, id string) (rendezvous.Registration, error)
	Release(ctx context.Context, id, token string) error
	List(ctx context.Context) ([]rendezvous.Registration, error)
}
