// Package reporting forwards unexpected errors to Sentry when a DSN is configured.
package reporting

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Init configures the global Sentry client. An empty dsn leaves reporting disabled.
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
}

// HubFromContext falls back to the current hub when ctx carries none. Never nil.
func HubFromContext(ctx context.Context) *sentry.Hub {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return hub
}

func CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	HubFromContext(ctx).CaptureException(err)
}

func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
