package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore("http://localhost:6379", "")
	assert.Error(t, err)
}

func TestRedisStoreUnreachableIsBackendError(t *testing.T) {
	s, err := NewRedisStore("redis://127.0.0.1:1/0", "")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, KeyPrefix+"abc", s.key("abc"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = s.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrBackend)
	assert.ErrorIs(t, s.Ping(ctx), ErrBackend)
}
