package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/screenscape/sync-server-go/internal/model"
	"github.com/screenscape/sync-server-go/internal/store"
)

type SyncSessionRepository interface {
	// Save writes the session; ttl is the remaining lifetime, not the full one.
	Save(ctx context.Context, syncToken string, session *model.SyncSession, ttl time.Duration) error
	FindByToken(ctx context.Context, syncToken string) (*model.SyncSession, error)
	Delete(ctx context.Context, syncToken string) error
}

type syncSessionRepo struct {
	store store.Store
}

func NewSyncSessionRepository(st store.Store) SyncSessionRepository {
	return &syncSessionRepo{store: st}
}

func (r *syncSessionRepo) Save(ctx context.Context, syncToken string, session *model.SyncSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode sync session: %w", err)
	}
	return r.store.Put(ctx, store.SyncSessionKey(syncToken), data, ttl)
}

func (r *syncSessionRepo) FindByToken(ctx context.Context, syncToken string) (*model.SyncSession, error) {
	data, err := r.store.Get(ctx, store.SyncSessionKey(syncToken))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session model.SyncSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode sync session: %w", err)
	}
	return &session, nil
}

func (r *syncSessionRepo) Delete(ctx context.Context, syncToken string) error {
	return r.store.Delete(ctx, store.SyncSessionKey(syncToken))
}
