package database

import (
	"context"
	"testing"

	"promo-orders/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := NewRedisClient(ctx, config.RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
		require.NoError(t, err)
		defer client.Close()

		require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("Unreachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client, err := NewRedisClient(ctx, config.RedisConfig{Addr: addr}, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ping redis")
		assert.Nil(t, client)
	})
}
