package model

import (
	"encoding/json"
	"time"
)

// UserData sections that devices may replace.
const (
	SectionPreferences   = "preferences"
	SectionGameProgress  = "gameProgress"
	SectionUserSettings  = "userSettings"
	SectionWatchlist     = "watchlist"
	SectionSearchHistory = "searchHistory"
	SectionDeviceName    = "deviceName"
)

// ObjectSections hold JSON objects; ListSections hold ordered JSON arrays.
var (
	ObjectSections = []string{SectionPreferences, SectionGameProgress, SectionUserSettings}
	ListSections   = []string{SectionWatchlist, SectionSearchHistory}
)

type UserData struct {
	DeviceName    string          `json:"deviceName"`
	CreatedAt     int64           `json:"createdAt"`
	LastUpdated   int64           `json:"lastUpdated"`
	Preferences   json.RawMessage `json:"preferences"`
	GameProgress  json.RawMessage `json:"gameProgress"`
	UserSettings  json.RawMessage `json:"userSettings"`
	Watchlist     json.RawMessage `json:"watchlist"`
	SearchHistory json.RawMessage `json:"searchHistory"`
}

// NewUserData returns the empty initial state created alongside a link code.
func NewUserData(deviceName string, now time.Time) *UserData {
	ms := now.UnixMilli()
	return &UserData{
		DeviceName:    deviceName,
		CreatedAt:     ms,
		LastUpdated:   ms,
		Preferences:   json.RawMessage(`{}`),
		GameProgress:  json.RawMessage(`{}`),
		UserSettings:  json.RawMessage(`{}`),
		Watchlist:     json.RawMessage(`[]`),
		SearchHistory: json.RawMessage(`[]`),
	}
}

// UserDataUpdate carries the sections a device wants to replace. Nil fields are left untouched.
type UserDataUpdate struct {
	DeviceName    *string         `json:"deviceName,omitempty"`
	Preferences   json.RawMessage `json:"preferences,omitempty"`
	GameProgress  json.RawMessage `json:"gameProgress,omitempty"`
	UserSettings  json.RawMessage `json:"userSettings,omitempty"`
	Watchlist     json.RawMessage `json:"watchlist,omitempty"`
	SearchHistory json.RawMessage `json:"searchHistory,omitempty"`
}

// Sections flattens the update into section name -> raw JSON.
func (u UserDataUpdate) Sections() map[string]json.RawMessage {
	sections := make(map[string]json.RawMessage)
	if u.DeviceName != nil {
		name, _ := json.Marshal(*u.DeviceName)
		sections[SectionDeviceName] = name
	}
	add := func(name string, raw json.RawMessage) {
		if len(raw) > 0 {
			sections[name] = raw
		}
	}
	add(SectionPreferences, u.Preferences)
	add(SectionGameProgress, u.GameProgress)
	add(SectionUserSettings, u.UserSettings)
	add(SectionWatchlist, u.Watchlist)
	add(SectionSearchHistory, u.SearchHistory)
	return sections
}
