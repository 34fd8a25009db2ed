package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	apperrors "github.com/screenscape/sync-server-go/internal/errors"
	"github.com/screenscape/sync-server-go/internal/metrics"
	"github.com/screenscape/sync-server-go/internal/model"
	"github.com/screenscape/sync-server-go/internal/reporting"
	"github.com/screenscape/sync-server-go/internal/repository"
	"github.com/screenscape/sync-server-go/internal/util"
)

// minStoreTTL keeps a store write from being taken as "no expiry" when the
// session is within a millisecond of its end.
const minStoreTTL = time.Millisecond

type SyncSessionResult struct {
	SyncToken   string `json:"syncToken"`
	LastUpdated int64  `json:"lastUpdated"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type PollParams struct {
	SyncToken       string
	DeviceToken     string
	LastKnownUpdate int64
}

// PollResult is empty (Changed false) when the caller is already up to date.
type PollResult struct {
	Changed     bool            `json:"-"`
	Preferences json.RawMessage `json:"preferences,omitempty"`
	LastUpdated int64           `json:"lastUpdated,omitempty"`
}

type SyncService struct {
	repo repository.SyncSessionRepository
	ttl  time.Duration

	now      func() time.Time
	newToken func() (string, error)
}

func NewSyncService(repo repository.SyncSessionRepository, ttl time.Duration) *SyncService {
	return &SyncService{
		repo:     repo,
		ttl:      ttl,
		now:      time.Now,
		newToken: util.GenerateToken,
	}
}

func (s *SyncService) CreateSession(ctx context.Context, preferences json.RawMessage) (*SyncSessionResult, error) {
	if len(preferences) == 0 {
		preferences = json.RawMessage(`{}`)
	}
	if err := requireObject("preferences", preferences); err != nil {
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to generate sync token", err)
	}

	now := s.now()
	session := &model.SyncSession{
		Preferences: preferences,
		LastUpdated: now.UnixMilli(),
		CreatedAt:   now.UnixMilli(),
	}
	if err := s.repo.Save(ctx, token, session, s.ttl); err != nil {
		reporting.CaptureException(ctx, err)
		return nil, apperrors.Storage(fmt.Errorf("save sync session: %w", err))
	}

	log.Info().Int64("lastUpdated", session.LastUpdated).Msg("sync session created")

	return &SyncSessionResult{
		SyncToken:   token,
		LastUpdated: session.LastUpdated,
		ExpiresIn:   int64(s.ttl / time.Second),
	}, nil
}

// PushPreferences replaces the session's preferences. The session keeps the
// lifetime it was created with.
func (s *SyncService) PushPreferences(ctx context.Context, syncToken string, preferences json.RawMessage) (int64, error) {
	if len(preferences) == 0 {
		return 0, apperrors.MissingRequired("preferences")
	}
	if err := requireObject("preferences", preferences); err != nil {
		return 0, err
	}

	session, now, err := s.loadLive(ctx, syncToken)
	if err != nil {
		return 0, err
	}

	session.Preferences = preferences
	session.LastUpdated = model.NextUpdateStamp(session.LastUpdated, now)

	remaining := session.ExpiresAt(s.ttl).Sub(now)
	if remaining < minStoreTTL {
		remaining = minStoreTTL
	}
	if err := s.repo.Save(ctx, syncToken, session, remaining); err != nil {
		reporting.CaptureException(ctx, err)
		return 0, apperrors.Storage(fmt.Errorf("save sync session: %w", err))
	}

	return session.LastUpdated, nil
}

// Poll reports whether the session changed after params.LastKnownUpdate.
// An expired session is deleted and reported as not found.
func (s *SyncService) Poll(ctx context.Context, params PollParams) (*PollResult, error) {
	if params.SyncToken == "" {
		return nil, apperrors.MissingRequired("syncToken")
	}
	if params.DeviceToken == "" {
		return nil, apperrors.MissingRequired("deviceToken")
	}

	session, _, err := s.loadLive(ctx, params.SyncToken)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			metrics.Polls.WithLabelValues(metrics.OutcomeNotFound).Inc()
		} else {
			metrics.Polls.WithLabelValues(metrics.OutcomeError).Inc()
		}
		return nil, err
	}

	if session.LastUpdated <= params.LastKnownUpdate {
		metrics.Polls.WithLabelValues(metrics.OutcomeUnchanged).Inc()
		return &PollResult{}, nil
	}

	metrics.Polls.WithLabelValues(metrics.OutcomeChanged).Inc()
	log.Debug().
		Str("device", util.TokenFingerprint(params.DeviceToken)).
		Int64("lastKnownUpdate", params.LastKnownUpdate).
		Int64("lastUpdated", session.LastUpdated).
		Msg("sync poll returned update")

	return &PollResult{
		Changed:     true,
		Preferences: session.Preferences,
		LastUpdated: session.LastUpdated,
	}, nil
}

func (s *SyncService) loadLive(ctx context.Context, syncToken string) (*model.SyncSession, time.Time, error) {
	now := s.now()
	if !util.IsValidToken(syncToken) {
		return nil, now, apperrors.NotFound("sync session")
	}

	session, err := s.repo.FindByToken(ctx, syncToken)
	if err != nil {
		reporting.CaptureException(ctx, err)
		return nil, now, apperrors.Storage(fmt.Errorf("find sync session: %w", err))
	}
	if session == nil {
		return nil, now, apperrors.NotFound("sync session")
	}

	if session.IsExpired(now, s.ttl) {
		if err := s.repo.Delete(ctx, syncToken); err != nil {
			log.Warn().Err(err).Msg("failed to delete expired sync session")
		}
		log.Info().Int64("createdAt", session.CreatedAt).Msg("sync session expired")
		return nil, now, apperrors.NotFound("sync session")
	}

	return session, now, nil
}

func requireObject(field string, raw json.RawMessage) error {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return apperrors.InvalidInput(field, "must be a JSON object")
	}
	return nil
}

func requireArray(field string, raw json.RawMessage) error {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsArray() {
		return apperrors.InvalidInput(field, "must be a JSON array")
	}
	return nil
}
