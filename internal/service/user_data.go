package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/screenscape/sync-server-go/internal/errors"
	"github.com/screenscape/sync-server-go/internal/metrics"
	"github.com/screenscape/sync-server-go/internal/model"
	"github.com/screenscape/sync-server-go/internal/reporting"
	"github.com/screenscape/sync-server-go/internal/repository"
	"github.com/screenscape/sync-server-go/internal/sse"
	"github.com/screenscape/sync-server-go/internal/store"
)

const EventUserDataUpdated = "userdata_updated"

type EventPublisher interface {
	Publish(ctx context.Context, guestID string, event sse.Event) error
}

type UserDataService struct {
	repo      repository.UserDataRepository
	publisher EventPublisher
	retention time.Duration

	now func() time.Time
}

// NewUserDataService accepts a nil publisher when no event stream is served.
func NewUserDataService(repo repository.UserDataRepository, publisher EventPublisher, retention time.Duration) *UserDataService {
	return &UserDataService{
		repo:      repo,
		publisher: publisher,
		retention: retention,
		now:       time.Now,
	}
}

func (s *UserDataService) Get(ctx context.Context, guestID string) (*model.UserData, error) {
	data, err := s.repo.FindByGuestID(ctx, guestID)
	if err != nil {
		reporting.CaptureException(ctx, err)
		return nil, apperrors.Storage(fmt.Errorf("find user data: %w", err))
	}
	if data == nil {
		return nil, apperrors.NotFound("user data")
	}
	return data, nil
}

// Update replaces the sections present in update and returns the new lastUpdated.
func (s *UserDataService) Update(ctx context.Context, guestID string, update model.UserDataUpdate) (int64, error) {
	sections := update.Sections()
	if len(sections) == 0 {
		return 0, apperrors.ValidationError("No sections to update")
	}
	for _, name := range model.ObjectSections {
		if raw, ok := sections[name]; ok {
			if err := requireObject(name, raw); err != nil {
				return 0, err
			}
		}
	}
	for _, name := range model.ListSections {
		if raw, ok := sections[name]; ok {
			if err := requireArray(name, raw); err != nil {
				return 0, err
			}
		}
	}

	lastUpdated, err := s.repo.UpdateSections(ctx, guestID, sections, s.now(), s.retention)
	if errors.Is(err, store.ErrNotFound) {
		return 0, apperrors.NotFound("user data")
	}
	if err != nil {
		reporting.CaptureException(ctx, err)
		return 0, apperrors.Storage(fmt.Errorf("update user data: %w", err))
	}

	metrics.UserDataWrites.Inc()

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	s.publish(ctx, guestID, lastUpdated, names)
	return lastUpdated, nil
}

func (s *UserDataService) publish(ctx context.Context, guestID string, lastUpdated int64, sections []string) {
	if s.publisher == nil {
		return
	}

	event, err := sse.NewEvent(EventUserDataUpdated, map[string]any{
		"lastUpdated": lastUpdated,
		"sections":    sections,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode user data event")
		return
	}

	if err := s.publisher.Publish(ctx, guestID, event); err != nil {
		log.Warn().Err(err).Str("guestId", guestID).Msg("failed to publish user data event")
	}
}
