package service

import (
	"context"

	"github.com/gatherly/meetsync/pkg/pgstore"
)

// PgStore adapts pgstore's concrete claim types to the Store interface.
// The explicit nil checks keep an empty queue from turning into a typed
// nil inside the interface value.
type PgStore struct {
	store *pgstore.Store
}

func NewPgStore(store *pgstore.Store) PgStore {
	return PgStore{store: store}
}

func (s PgStore) DequeueMeetingTask(ctx context.Context) (Claim, error) {
	claim, err := s.store.DequeueMeetingTask(ctx)
	if err != nil || claim == nil {
		return nil, err
	}
	return claim, nil
}

func (s PgStore) DequeueAutoEndTask(ctx context.Context) (AutoEndClaim, error) {
	claim, err := s.store.DequeueAutoEndTask(ctx)
	if err != nil || claim == nil {
		return nil, err
	}
	return claim, nil
}
