package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("connects to a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := NewClient(context.Background(), "redis://" + mr.Addr())
		require.NoError(t, err)
		defer client.Close()
	})

	t.Run("rejects malformed url", func(t *testing.T) {
		_, err := NewClient(context.Background(), "://nope")
		assert.ErrorContains(t, err, "parse redis url")
	})

	t.Run("fails when server is unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := NewClient(context.Background(), "redis://" + addr)
		assert.ErrorContains(t, err, "ping redis")
	})
}

func TestUserDataChannel(t *testing.T) {
	assert.Equal(t, "userdata:guest_123", UserDataChannel("guest_123"))
}
