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

type LinkSessionRepository interface {
	// Reserve stores the session under code unless a live session already owns it.
	Reserve(ctx context.Context, code string, session *model.LinkSession, ttl time.Duration) (bool, error)
	FindByCode(ctx context.Context, code string) (*model.LinkSession, error)
	Delete(ctx context.Context, code string) error
}

type linkSessionRepo struct {
	store store.Store
}

func NewLinkSessionRepository(st store.Store) LinkSessionRepository {
	return &linkSessionRepo{store: st}
}

func (r *linkSessionRepo) Reserve(ctx context.Context, code string, session *model.LinkSession, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("encode link session: %w", err)
	}
	return r.store.PutIfAbsent(ctx, store.LinkCodeKey(code), data, ttl)
}

func (r *linkSessionRepo) FindByCode(ctx context.Context, code string) (*model.LinkSession, error) {
	data, err := r.store.Get(ctx, store.LinkCodeKey(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session model.LinkSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode link session: %w", err)
	}
	return &session, nil
}

func (r *linkSessionRepo) Delete(ctx context.Context, code string) error {
	return r.store.Delete(ctx, store.LinkCodeKey(code))
}
