package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/screenscape/sync-server-go/internal/errors"
	"github.com/screenscape/sync-server-go/internal/model"
	"github.com/screenscape/sync-server-go/internal/repository"
	"github.com/screenscape/sync-server-go/internal/sse"
	"github.com/screenscape/sync-server-go/internal/store"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, guestID string, event sse.Event) error {
	args := m.Called(ctx, guestID, event)
	return args.Error(0)
}

const testGuestID = "guest_123e4567-e89b-12d3-a456-426614174000"

func newTestUserDataService(t *testing.T, publisher EventPublisher) (*UserDataService, *testClock) {
	t.Helper()
	repo := repository.NewUserDataRepository(store.NewMemoryStore())
	clock := newTestClock()
	require.NoError(t, repo.Create(context.Background(), testGuestID, model.NewUserData("Phone", clock.Now()), time.Hour))

	svc := NewUserDataService(repo, publisher, time.Hour)
	svc.now = clock.Now
	return svc, clock
}

func TestUserDataService_Get(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestUserDataService(t, nil)

	data, err := svc.Get(ctx, testGuestID)
	require.NoError(t, err)
	assert.Equal(t, "Phone", data.DeviceName)
	assert.Equal(t, clock.Now().UnixMilli(), data.CreatedAt)

	_, err = svc.Get(ctx, "guest_missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestUserDataService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces sections and publishes an event", func(t *testing.T) {
		publisher := new(mockPublisher)
		publisher.On("Publish", mock.Anything, testGuestID, mock.MatchedBy(func(e sse.Event) bool {
			return e.Type == EventUserDataUpdated
		})).Return(nil).Once()

		svc, clock := newTestUserDataService(t, publisher)
		clock.Advance(time.Second)

		name := "Kitchen"
		lastUpdated, err := svc.Update(ctx, testGuestID, model.UserDataUpdate{
			DeviceName:  &name,
			Preferences: json.RawMessage(`{"theme":"dark"}`),
			Watchlist:   json.RawMessage(`["tt0111161"]`),
		})
		require.NoError(t, err)
		assert.Equal(t, clock.Now().UnixMilli(), lastUpdated)

		data, err := svc.Get(ctx, testGuestID)
		require.NoError(t, err)
		assert.Equal(t, "Kitchen", data.DeviceName)
		assert.Equal(t, lastUpdated, data.LastUpdated)
		assert.JSONEq(t, `{"theme":"dark"}`, string(data.Preferences))
		assert.JSONEq(t, `["tt0111161"]`, string(data.Watchlist))
		assert.JSONEq(t, `{}`, string(data.GameProgress))

		publisher.AssertExpectations(t)
	})

	t.Run("lastUpdated strictly increases on the same tick", func(t *testing.T) {
		svc, _ := newTestUserDataService(t, nil)

		first, err := svc.Update(ctx, testGuestID, model.UserDataUpdate{Preferences: json.RawMessage(`{"a":1}`)})
		require.NoError(t, err)
		second, err := svc.Update(ctx, testGuestID, model.UserDataUpdate{Preferences: json.RawMessage(`{"a":2}`)})
		require.NoError(t, err)
		assert.Greater(t, second, first)
	})

	t.Run("validates section shapes", func(t *testing.T) {
		svc, _ := newTestUserDataService(t, nil)

		_, err := svc.Update(ctx, testGuestID, model.UserDataUpdate{Preferences: json.RawMessage(`[]`)})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))

		_, err = svc.Update(ctx, testGuestID, model.UserDataUpdate{SearchHistory: json.RawMessage(`{}`)})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))

		_, err = svc.Update(ctx, testGuestID, model.UserDataUpdate{})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	})

	t.Run("unknown guest", func(t *testing.T) {
		svc, _ := newTestUserDataService(t, nil)

		_, err := svc.Update(ctx, "guest_missing", model.UserDataUpdate{Preferences: json.RawMessage(`{}`)})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("publish failure does not fail the update", func(t *testing.T) {
		publisher := new(mockPublisher)
		publisher.On("Publish", mock.Anything, testGuestID, mock.Anything).Return(errors.New("redis down"))

		svc, _ := newTestUserDataService(t, publisher)

		_, err := svc.Update(ctx, testGuestID, model.UserDataUpdate{Preferences: json.RawMessage(`{}`)})
		assert.NoError(t, err)
		publisher.AssertNumberOfCalls(t, "Publish", 1)
	})
}
