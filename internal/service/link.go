package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/screenscape/sync-server-go/internal/errors"
	"github.com/screenscape/sync-server-go/internal/metrics"
	"github.com/screenscape/sync-server-go/internal/model"
	"github.com/screenscape/sync-server-go/internal/reporting"
	"github.com/screenscape/sync-server-go/internal/repository"
	"github.com/screenscape/sync-server-go/internal/util"
)

const (
	// LinkCodeAlphabet leaves out I, L, O, S, 0, 1 and 5.
	LinkCodeAlphabet = "ABCDEFGHJKMNPQRTUVWXYZ2346789"
	LinkCodeLength   = 6
	MaxCodeAttempts  = 15

	DefaultIssuerDeviceName = "Device A"
	DefaultLinkedDeviceName = "Device B"
)

type LinkServiceConfig struct {
	CodeTTL           time.Duration
	DeviceSessionTTL  time.Duration
	UserDataRetention time.Duration
}

type LinkCodeResult struct {
	LinkCode  string `json:"linkCode"`
	GuestID   string `json:"guestId"`
	ExpiresIn int64  `json:"expiresIn"`
}

type LinkDeviceResult struct {
	GuestID      string          `json:"guestId"`
	SessionToken string          `json:"sessionToken"`
	DeviceName   string          `json:"deviceName"`
	UserData     *model.UserData `json:"userData"`
	LastUpdated  int64           `json:"lastUpdated"`
}

type LinkService struct {
	linkRepo   repository.LinkSessionRepository
	userRepo   repository.UserDataRepository
	deviceRepo repository.DeviceSessionRepository
	cfg        LinkServiceConfig

	now          func() time.Time
	generateCode func() (string, error)
	newGuestID   func() (string, error)
	newToken     func() (string, error)
}

func NewLinkService(
	linkRepo repository.LinkSessionRepository,
	userRepo repository.UserDataRepository,
	deviceRepo repository.DeviceSessionRepository,
	cfg LinkServiceConfig,
) *LinkService {
	return &LinkService{
		linkRepo:     linkRepo,
		userRepo:     userRepo,
		deviceRepo:   deviceRepo,
		cfg:          cfg,
		now:          time.Now,
		generateCode: GenerateLinkCode,
		newGuestID:   util.NewGuestID,
		newToken:     util.GenerateToken,
	}
}

// CreateLinkCode reserves a fresh code for a new guest identity and writes
// the guest's empty UserData. The reservation is undone if that write fails.
func (s *LinkService) CreateLinkCode(ctx context.Context, deviceName string) (*LinkCodeResult, error) {
	deviceName = strings.TrimSpace(deviceName)
	if deviceName == "" {
		deviceName = DefaultIssuerDeviceName
	}

	guestID, err := s.newGuestID()
	if err != nil {
		metrics.LinkCodesIssued.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to create guest identity", err)
	}

	now := s.now()
	session := &model.LinkSession{
		GuestID:    guestID,
		DeviceName: deviceName,
		CreatedAt:  now.UnixMilli(),
		ExpiresAt:  now.Add(s.cfg.CodeTTL).UnixMilli(),
	}

	code, err := s.reserveCode(ctx, session)
	if err != nil {
		metrics.LinkCodesIssued.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	if err := s.userRepo.Create(ctx, guestID, model.NewUserData(deviceName, now), s.cfg.UserDataRetention); err != nil {
		if delErr := s.linkRepo.Delete(ctx, code); delErr != nil {
			log.Error().
				Err(delErr).
				Str("code", util.MaskCode(code)).
				Str("guestId", guestID).
				Msg("rollback of link session failed, code stays orphaned until expiry")
		}
		reporting.CaptureException(ctx, err)
		metrics.LinkCodesIssued.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, apperrors.Storage(fmt.Errorf("create user data: %w", err))
	}

	metrics.LinkCodesIssued.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info().
		Str("code", util.MaskCode(code)).
		Str("guestId", guestID).
		Str("deviceName", deviceName).
		Int64("expiresAt", session.ExpiresAt).
		Msg("link code created")

	return &LinkCodeResult{
		LinkCode:  code,
		GuestID:   guestID,
		ExpiresIn: int64(s.cfg.CodeTTL / time.Second),
	}, nil
}

func (s *LinkService) reserveCode(ctx context.Context, session *model.LinkSession) (string, error) {
	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to generate link code", err)
		}

		reserved, err := s.linkRepo.Reserve(ctx, code, session, s.cfg.CodeTTL)
		if err != nil {
			reporting.CaptureException(ctx, err)
			return "", apperrors.Storage(fmt.Errorf("reserve link code: %w", err))
		}
		if reserved {
			return code, nil
		}

		metrics.LinkCodeCollisions.Inc()
		log.Debug().Int("attempt", attempt).Msg("link code collision, regenerating")
	}

	log.Warn().Int("attempts", MaxCodeAttempts).Msg("link code generation exhausted")
	return "", apperrors.CodeGenerationExhausted(MaxCodeAttempts)
}

// LinkDevice joins a device to the guest identity behind code. Codes are
// not consumed, so several devices may link within the validity window.
func (s *LinkService) LinkDevice(ctx context.Context, code, deviceName string) (*LinkDeviceResult, error) {
	code = util.NormalizeCode(code)
	if len(code) != LinkCodeLength {
		metrics.DevicesLinked.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, apperrors.InvalidInput("linkCode", fmt.Sprintf("must be %d characters", LinkCodeLength))
	}

	deviceName = strings.TrimSpace(deviceName)
	if deviceName == "" {
		deviceName = DefaultLinkedDeviceName
	}

	session, err := s.linkRepo.FindByCode(ctx, code)
	if err != nil {
		reporting.CaptureException(ctx, err)
		metrics.DevicesLinked.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, apperrors.Storage(fmt.Errorf("find link session: %w", err))
	}
	if session == nil {
		log.Info().Str("code", util.MaskCode(code)).Msg("link code not found")
		metrics.DevicesLinked.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return nil, apperrors.NotFound("link code")
	}

	now := s.now()
	if session.IsExpired(now) {
		if err := s.linkRepo.Delete(ctx, code); err != nil {
			log.Warn().Err(err).Str("code", util.MaskCode(code)).Msg("failed to delete expired link session")
		}
		log.Info().
			Str("code", util.MaskCode(code)).
			Str("guestId", session.GuestID).
			Msg("link code expired")
		metrics.DevicesLinked.WithLabelValues(metrics.OutcomeExpired).Inc()
		return nil, apperrors.NotFound("link code")
	}

	if !util.IsValidGuestID(session.GuestID) {
		inconsistency := apperrors.StorageInconsistency("link session carries a malformed guest id")
		reporting.CaptureException(ctx, inconsistency)
		log.Error().Str("code", util.MaskCode(code)).Msg("link session has a malformed guest id")
		metrics.DevicesLinked.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, inconsistency
	}

	userData, err := s.userRepo.FindByGuestID(ctx, session.GuestID)
	if err != nil {
		reporting.CaptureException(ctx, err)
		metrics.DevicesLinked.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, apperrors.Storage(fmt.Errorf("find user data: %w", err))
	}
	if userData == nil {
		inconsistency := apperrors.StorageInconsistency("user data missing for live link session")
		reporting.CaptureException(ctx, inconsistency)
		log.Error().Str("guestId", session.GuestID).Msg("link session has no user data")
		metrics.DevicesLinked.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, inconsistency
	}

	token, err := s.newToken()
	if err != nil {
		metrics.DevicesLinked.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to generate session token", err)
	}

	device := &model.DeviceSession{
		GuestID:    session.GuestID,
		DeviceName: deviceName,
		CreatedAt:  now.UnixMilli(),
		ExpiresAt:  now.Add(s.cfg.DeviceSessionTTL).UnixMilli(),
	}
	if err := s.deviceRepo.Create(ctx, util.HashToken(token), device, s.cfg.DeviceSessionTTL); err != nil {
		reporting.CaptureException(ctx, err)
		metrics.DevicesLinked.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, apperrors.Storage(fmt.Errorf("create device session: %w", err))
	}

	metrics.DevicesLinked.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info().
		Str("guestId", session.GuestID).
		Str("deviceName", deviceName).
		Msg("device linked")

	return &LinkDeviceResult{
		GuestID:      session.GuestID,
		SessionToken: token,
		DeviceName:   deviceName,
		UserData:     userData,
		LastUpdated:  userData.LastUpdated,
	}, nil
}

// GenerateLinkCode draws LinkCodeLength symbols from LinkCodeAlphabet using crypto/rand.
func GenerateLinkCode() (string, error) {
	base := big.NewInt(int64(len(LinkCodeAlphabet)))
	code := make([]byte, LinkCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		code[i] = LinkCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
