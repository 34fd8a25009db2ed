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

type DeviceSessionRepository interface {
	Create(ctx context.Context, tokenHash string, session *model.DeviceSession, ttl time.Duration) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.DeviceSession, error)
	Delete(ctx context.Context, tokenHash string) error
}

type deviceSessionRepo struct {
	store store.Store
}

func NewDeviceSessionRepository(st store.Store) DeviceSessionRepository {
	return &deviceSessionRepo{store: st}
}

func (r *deviceSessionRepo) Create(ctx context.Context, tokenHash string, session *model.DeviceSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode device session: %w", err)
	}
	return r.store.Put(ctx, store.DeviceSessionKey(tokenHash), data, ttl)
}

func (r *deviceSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.DeviceSession, error) {
	data, err := r.store.Get(ctx, store.DeviceSessionKey(tokenHash))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session model.DeviceSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode device session: %w", err)
	}
	return &session, nil
}

func (r *deviceSessionRepo) Delete(ctx context.Context, tokenHash string) error {
	return r.store.Delete(ctx, store.DeviceSessionKey(tokenHash))
}
