package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/screenscape/sync-server-go/internal/model"
	"github.com/screenscape/sync-server-go/internal/store"
)

type UserDataRepository interface {
	Create(ctx context.Context, guestID string, data *model.UserData, retention time.Duration) error
	FindByGuestID(ctx context.Context, guestID string) (*model.UserData, error)
	// UpdateSections replaces the given top-level sections in place and
	// returns the new lastUpdated. Returns store.ErrNotFound for unknown guests.
	UpdateSections(ctx context.Context, guestID string, sections map[string]json.RawMessage, now time.Time, retention time.Duration) (int64, error)
}

type userDataRepo struct {
	store store.Store
}

func NewUserDataRepository(st store.Store) UserDataRepository {
	return &userDataRepo{store: st}
}

func (r *userDataRepo) Create(ctx context.Context, guestID string, data *model.UserData, retention time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode user data: %w", err)
	}
	return r.store.Put(ctx, store.UserDataKey(guestID), raw, retention)
}

func (r *userDataRepo) FindByGuestID(ctx context.Context, guestID string) (*model.UserData, error) {
	raw, err := r.store.Get(ctx, store.UserDataKey(guestID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data model.UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode user data: %w", err)
	}
	return &data, nil
}

// Read-modify-write without versioning: concurrent writers are last-write-wins.
func (r *userDataRepo) UpdateSections(
	ctx context.Context,
	guestID string,
	sections map[string]json.RawMessage,
	now time.Time,
	retention time.Duration,
) (int64, error) {
	key := store.UserDataKey(guestID)

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}

	for name, value := range sections {
		raw, err = sjson.SetRawBytes(raw, name, value)
		if err != nil {
			return 0, fmt.Errorf("set %s: %w", name, err)
		}
	}

	lastUpdated := model.NextUpdateStamp(gjson.GetBytes(raw, "lastUpdated").Int(), now)
	raw, err = sjson.SetBytes(raw, "lastUpdated", lastUpdated)
	if err != nil {
		return 0, fmt.Errorf("set lastUpdated: %w", err)
	}

	if err := r.store.Put(ctx, key, raw, retention); err != nil {
		return 0, err
	}
	return lastUpdated, nil
}
