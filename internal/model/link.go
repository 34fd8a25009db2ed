package model

import (
	"encoding/json"
	"time"
)

// LinkSession is stored under a link code and maps it to a guest identity.
// It is never updated after creation.
type LinkSession struct {
	GuestID    string `json:"guestId"`
	DeviceName string `json:"deviceName"`
	CreatedAt  int64  `json:"createdAt"`
	ExpiresAt  int64  `json:"expiresAt"`
}

// IsExpired reports whether now is past the session's expiry instant.
func (s *LinkSession) IsExpired(now time.Time) bool {
	return now.UnixMilli() > s.ExpiresAt
}

// DeviceSession is persisted for every session token minted by the linker,
// keyed by the token's SHA-256 hash.
type DeviceSession struct {
	GuestID    string `json:"guestId"`
	DeviceName string `json:"deviceName"`
	CreatedAt  int64  `json:"createdAt"`
	ExpiresAt  int64  `json:"expiresAt"`
}

func (s *DeviceSession) IsExpired(now time.Time) bool {
	return now.UnixMilli() > s.ExpiresAt
}

// SyncSession holds the preferences shared through the polling endpoint.
type SyncSession struct {
	Preferences json.RawMessage `json:"preferences"`
	LastUpdated int64           `json:"lastUpdated"`
	CreatedAt   int64           `json:"createdAt"`
}

// ExpiresAt returns the instant the session stops being valid for the given lifetime.
func (s *SyncSession) ExpiresAt(ttl time.Duration) time.Time {
	return time.UnixMilli(s.CreatedAt).Add(ttl)
}

func (s *SyncSession) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.After(s.ExpiresAt(ttl))
}

// NextUpdateStamp returns a lastUpdated value strictly greater than prev,
// using now when the clock is already ahead.
func NextUpdateStamp(prev int64, now time.Time) int64 {
	ms := now.UnixMilli()
	if ms <= prev {
		return prev + 1
	}
	return ms
}
