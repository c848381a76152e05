package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBadger(t *testing.T) (*Badger, func()) {
	t.Helper()
	b, err := OpenBadger("")
	require.NoError(t, err)
	return b, func() { _ = b.Close() }
}

func TestBadgerSetNX(t *testing.T) {
	b, cleanup := setupBadger(t)
	defer cleanup()
	ctx := context.Background()

	created, err := b.SetNX(ctx, "view:1:10", []byte("1"), time.Hour)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = b.SetNX(ctx, "view:1:10", []byte("1"), time.Hour)
	require.NoError(t, err)
	assert.False(t, created)

	created, err = b.SetNX(ctx, "view:2:10", []byte("1"), time.Hour)
	require.NoError(t, err)
	assert.True(t, created, "different user is a different key")
}

func TestBadgerSetNXConcurrent(t *testing.T) {
	b, cleanup := setupBadger(t)
	defer cleanup()
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := b.SetNX(ctx, "race", []byte("x"), time.Minute)
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestBadgerExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a ttl to lapse")
	}
	b, cleanup := setupBadger(t)
	defer cleanup()
	ctx := context.Background()

	created, err := b.SetNX(ctx, "short", []byte("1"), time.Second)
	require.NoError(t, err)
	require.True(t, created)

	time.Sleep(2100 * time.Millisecond)

	_, err = b.Get(ctx, "short")
	assert.True(t, errors.Is(err, ErrNotFound))
	created, err = b.SetNX(ctx, "short", []byte("1"), time.Second)
	require.NoError(t, err)
	assert.True(t, created, "an expired key can be taken again")
}

func TestBadgerGetSetDelete(t *testing.T) {
	b, cleanup := setupBadger(t)
	defer cleanup()
	ctx := context.Background()

	_, err := b.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, b.Set(ctx, "k", []byte("v1"), 0))
	require.NoError(t, b.Set(ctx, "k", []byte("v2"), 0))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, b.Delete(ctx, "k"))
}

func TestBadgerDeletePrefix(t *testing.T) {
	b, cleanup := setupBadger(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Set(ctx, fmt.Sprintf("top:%d", i), []byte("x"), time.Minute))
	}
	require.NoError(t, b.Set(ctx, "wizard:session:1", []byte("x"), time.Minute))

	require.NoError(t, b.DeletePrefix(ctx, "top:"))
	for i := 0; i < 3; i++ {
		_, err := b.Get(ctx, fmt.Sprintf("top:%d", i))
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	_, err := b.Get(ctx, "wizard:session:1")
	assert.NoError(t, err)
}
