package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classlog/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestOptions(t *testing.T) {
	t.Run("url only", func(t *testing.T) {
		opts, err := options(config.RedisConfig{URL: "redis://cache:6380/2"})
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Zero(t, opts.PoolSize)
	})

	t.Run("pool settings override", func(t *testing.T) {
		opts, err := options(config.RedisConfig{
			URL:          "redis://cache:6379/0",
			PoolSize:     20,
			MinIdleConns: 4,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 750 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, 4, opts.MinIdleConns)
		assert.Equal(t, 2*time.Second, opts.DialTimeout)
		assert.Equal(t, 500*time.Millisecond, opts.ReadTimeout)
		assert.Equal(t, 750*time.Millisecond, opts.WriteTimeout)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := options(config.RedisConfig{URL: "http://cache:6379"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse redis URL")
	})
}
