package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenscape/sync-server-go/internal/middleware"
	"github.com/screenscape/sync-server-go/internal/repository"
	"github.com/screenscape/sync-server-go/internal/service"
	"github.com/screenscape/sync-server-go/internal/sse"
	"github.com/screenscape/sync-server-go/internal/store"
)

type routerFixture struct {
	router http.Handler
	broker *sse.Broker
}

type fixtureOptions struct {
	store         store.Store
	linkRateLimit int
	healthCheck   func(ctx context.Context) error
}

func newRouterFixture(t *testing.T, opts fixtureOptions) *routerFixture {
	t.Helper()

	st := opts.store
	if st == nil {
		st = store.NewMemoryStore()
	}
	if opts.linkRateLimit == 0 {
		opts.linkRateLimit = 100
	}

	linkRepo := repository.NewLinkSessionRepository(st)
	userRepo := repository.NewUserDataRepository(st)
	deviceRepo := repository.NewDeviceSessionRepository(st)
	syncRepo := repository.NewSyncSessionRepository(st)

	broker := sse.NewBroker(nil)
	t.Cleanup(broker.Close)

	linkService := service.NewLinkService(linkRepo, userRepo, deviceRepo, service.LinkServiceConfig{
		CodeTTL:           15 * time.Minute,
		DeviceSessionTTL:  time.Hour,
		UserDataRetention: time.Hour,
	})
	syncService := service.NewSyncService(syncRepo, 15*time.Minute)
	userDataService := service.NewUserDataService(userRepo, broker, time.Hour)

	events := NewEventsHandler(broker)
	events.heartbeatInterval = 50 * time.Millisecond

	router := NewRouter(RouterDeps{
		Link:            NewLinkHandler(linkService),
		Sync:            NewSyncHandler(syncService),
		User:            NewUserHandler(userDataService),
		Events:          events,
		DeviceAuth:      middleware.NewDeviceAuthMiddleware(deviceRepo),
		LinkRateLimit:   middleware.NewIPRateLimitMiddleware(middleware.NewMemoryRateLimiter(), opts.linkRateLimit, time.Minute, "link"),
		BodyLimit:       middleware.NewBodyLimitMiddleware(0),
		SecurityHeaders: middleware.NewSecurityHeadersMiddleware(false),
		CORS:            middleware.NewCORSMiddleware(""),
		HealthCheck:     opts.healthCheck,
		Metrics:         promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
	})

	return &routerFixture{router: router, broker: broker}
}

func (f *routerFixture) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// linkedDevice issues a code, links a device and returns the link code and session token.
func (f *routerFixture) linkedDevice(t *testing.T) (string, string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/link/create", `{"deviceName":"Phone"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	code := decodeBody(t, rec)["linkCode"].(string)

	rec = f.do(t, http.MethodPost, "/api/link/device", `{"linkCode":"`+code+`","deviceName":"TV"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return code, decodeBody(t, rec)["sessionToken"].(string)
}

type brokenStore struct {
	store.Store
}

func (brokenStore) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return false, errors.New("dial tcp 10.0.0.5:6379: connection refused")
}

func TestLinkRoutes(t *testing.T) {
	t.Run("create returns code, guest and expiry", func(t *testing.T) {
		f := newRouterFixture(t, fixtureOptions{})

		rec := f.do(t, http.MethodPost, "/api/link/create", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Len(t, body["linkCode"], 6)
		assert.True(t, strings.HasPrefix(body["guestId"].(string), "guest_"))
		assert.Equal(t, float64(900), body["expiresIn"])
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("wrong method is 405", func(t *testing.T) {
		f := newRouterFixture(t, fixtureOptions{})

		for _, target := range []string{"/api/link/create", "/api/link/device"} {
			rec := f.do(t, http.MethodGet, target, "", "")
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
			assert.Equal(t, "METHOD_NOT_ALLOWED", decodeBody(t, rec)["code"])
		}
	})

	t.Run("create failures are generic", func(t *testing.T) {
		f := newRouterFixture(t, fixtureOptions{store: brokenStore{store.NewMemoryStore()}})

		rec := f.do(t, http.MethodPost, "/api/link/create", `{}`, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "LINK_CREATION_FAILED", body["code"])
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})

	t.Run("link device returns the shared guest", func(t *testing.T) {
		f := newRouterFixture(t, fixtureOptions{})

		rec := f.do(t, http.MethodPost, "/api/link/create", `{"deviceName":"Phone"}`, "")
		created := decodeBody(t, rec)
		code := created["linkCode"].(string)

		rec = f.do(t, http.MethodPost, "/api/link/device",
			`{"linkCode":" `+strings.ToLower(code)+` ","deviceName":"TV"}`, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decodeBody(t, rec)
		assert.Equal(t, created["guestId"], body["guestId"])
		assert.Equal(t, "TV", body["deviceName"])
		assert.Len(t, body["sessionToken"], 64)

		userData := body["userData"].(map[string]any)
		assert.Equal(t, "Phone", userData["deviceName"])
		assert.Equal(t, userData["lastUpdated"], body["lastUpdated"])
	})

	t.Run("link device errors", func(t *testing.T) {
		f := newRouterFixture(t, fixtureOptions{})

		tests := []struct {
			name   string
			body   string
			status int
			code   string
		}{
			{"bad format", `{"linkCode":"ABC"}`, http.StatusBadRequest, "INVALID_INPUT"},
			{"missing code", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
			{"malformed json", `{"linkCode":`, http.StatusBadRequest, "BAD_REQUEST"},
			{"unknown code", `{"linkCode":"ZZZZZZ"}`, http.StatusNotFound, "NOT_FOUND"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				rec := f.do(t, http.MethodPost, "/api/link/device", tc.body, "")
				assert.Equal(t, tc.status, rec.Code)
				assert.Equal(t, tc.code, decodeBody(t, rec)["code"])
			})
		}
	})

	t.Run("rate limited per address", func(t *testing.T) {
		f := newRouterFixture(t, fixtureOptions{linkRateLimit: 2})

		statuses := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			statuses = append(statuses, f.do(t, http.MethodPost, "/api/link/device", `{"linkCode":"ZZZZZZ"}`, "").Code)
		}
		assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, statuses)
	})
}

func TestSyncRoutes(t *testing.T) {
	f := newRouterFixture(t, fixtureOptions{})

	rec := f.do(t, http.MethodPost, "/api/sync/session", `{"preferences":{"theme":"light"}}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	token := created["syncToken"].(string)
	lastUpdated := int64(created["lastUpdated"].(float64))
	assert.Equal(t, float64(900), created["expiresIn"])

	pollURL := func(lastKnown string) string {
		u := "/api/sync/poll?syncToken=" + token + "&deviceToken=dev-1"
		if lastKnown != "" {
			u += "&lastKnownUpdate=" + lastKnown
		}
		return u
	}

	t.Run("up to date poll is 204", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, pollURL(jsonInt(lastUpdated)), "", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("stale poll returns preferences", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, pollURL(""), "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, map[string]any{"theme": "light"}, body["preferences"])
		assert.Equal(t, float64(lastUpdated), body["lastUpdated"])
	})

	t.Run("push then poll sees the change", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/sync/session/"+token, `{"preferences":{"theme":"dark"}}`, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		pushed := decodeBody(t, rec)["lastUpdated"].(float64)
		assert.Greater(t, pushed, float64(lastUpdated))

		rec = f.do(t, http.MethodGet, pollURL(jsonInt(lastUpdated)), "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"theme": "dark"}, decodeBody(t, rec)["preferences"])
	})

	t.Run("poll errors", func(t *testing.T) {
		tests := []struct {
			name   string
			target string
			status int
		}{
			{"missing sync token", "/api/sync/poll?deviceToken=dev-1", http.StatusBadRequest},
			{"missing device token", "/api/sync/poll?syncToken=" + token, http.StatusBadRequest},
			{"non numeric lastKnownUpdate", pollURL("yesterday"), http.StatusBadRequest},
			{"unknown session", "/api/sync/poll?syncToken=" + strings.Repeat("a", 64) + "&deviceToken=dev-1", http.StatusNotFound},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				assert.Equal(t, tc.status, f.do(t, http.MethodGet, tc.target, "", "").Code)
			})
		}
	})

	t.Run("push to unknown session is 404", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/sync/session/"+strings.Repeat("b", 64), `{"preferences":{}}`, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUserRoutes(t *testing.T) {
	f := newRouterFixture(t, fixtureOptions{})
	_, token := f.linkedDevice(t)

	t.Run("requires a session token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/user/data", "", "").Code)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/user/data", "", "bogus").Code)
	})

	t.Run("patch then read", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/user/data",
			`{"preferences":{"theme":"dark"},"watchlist":["tt0133093"]}`, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		lastUpdated := decodeBody(t, rec)["lastUpdated"]

		rec = f.do(t, http.MethodGet, "/api/user/data", "", token)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, map[string]any{"theme": "dark"}, body["preferences"])
		assert.Equal(t, []any{"tt0133093"}, body["watchlist"])
		assert.Equal(t, lastUpdated, body["lastUpdated"])
	})

	t.Run("invalid sections are 400", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/user/data", `{"watchlist":{"a":1}}`, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEventsRoute(t *testing.T) {
	f := newRouterFixture(t, fixtureOptions{})
	_, token := f.linkedDevice(t)

	server := httptest.NewServer(f.router)
	defer server.Close()

	t.Run("requires a session token", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/api/user/events")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("streams user data updates", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/user/events?token="+token, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		reader := bufio.NewReader(resp.Body)
		nextEvent := func() string {
			for {
				line, err := reader.ReadString('\n')
				require.NoError(t, err)
				if strings.HasPrefix(line, "event: ") {
					return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
				}
			}
		}

		assert.Equal(t, "connected", nextEvent())

		rec := f.do(t, http.MethodPatch, "/api/user/data", `{"preferences":{"theme":"dark"}}`, token)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, service.EventUserDataUpdated, nextEvent())
	})
}

func TestWriteEvent(t *testing.T) {
	rec := httptest.NewRecorder()

	err := writeEvent(rec, rec, sse.Event{
		Type: "userdata_updated",
		Data: json.RawMessage(`{"lastUpdated": 5}`),
	})

	assert.NoError(t, err)
	assert.Equal(t, "event: userdata_updated\ndata: {\"lastUpdated\": 5}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newRouterFixture(t, fixtureOptions{healthCheck: func(ctx context.Context) error { return nil }})

		rec := f.do(t, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decodeBody(t, rec)["status"])
	})

	t.Run("store down", func(t *testing.T) {
		f := newRouterFixture(t, fixtureOptions{healthCheck: func(ctx context.Context) error { return errors.New("down") }})

		rec := f.do(t, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		f := newRouterFixture(t, fixtureOptions{})

		rec := f.do(t, http.MethodGet, "/metrics", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
