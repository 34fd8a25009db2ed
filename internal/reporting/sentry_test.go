package reporting

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	t.Run("empty dsn is a no-op", func(t *testing.T) {
		assert.NoError(t, Init("", "test"))
	})

	t.Run("malformed dsn is rejected", func(t *testing.T) {
		assert.Error(t, Init("not a dsn", "test"))
	})
}

func TestHubFromContext(t *testing.T) {
	t.Run("falls back to current hub", func(t *testing.T) {
		assert.Same(t, sentry.CurrentHub(), HubFromContext(context.Background()))
	})

	t.Run("uses hub attached to context", func(t *testing.T) {
		hub := sentry.CurrentHub().Clone()
		ctx := sentry.SetHubOnContext(context.Background(), hub)
		assert.Same(t, hub, HubFromContext(ctx))
	})
}

func TestCaptureException(t *testing.T) {
	assert.NotPanics(t, func() {
		CaptureException(context.Background(), nil)
		CaptureException(context.Background(), errors.New("boom"))
	})
}
