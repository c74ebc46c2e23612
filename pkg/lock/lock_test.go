package lock_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abekarar/openimis-claimslens/pkg/lock"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	a := lock.NewRedisLocker(client)
	b := lock.NewRedisLocker(client)
	require.NotEqual(t, a.OwnerID(), b.OwnerID())

	ok, err := a.Acquire(ctx, "document:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "document:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire a held lock")

	require.NoError(t, b.Release(ctx, "document:1"))
	ok, err = b.Acquire(ctx, "document:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "release by a non-owner must not drop the lock")

	require.NoError(t, a.Release(ctx, "document:1"))
	ok, err = b.Acquire(ctx, "document:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerExpires(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()

	a := lock.NewRedisLocker(client)
	b := lock.NewRedisLocker(client)

	ok, err := a.Acquire(ctx, "document:2", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = b.Acquire(ctx, "document:2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseUnheldIsNoop(t *testing.T) {
	_, client := setupRedis(t)
	assert.NoError(t, lock.NewRedisLocker(client).Release(context.Background(), "missing"))
}

func TestGuard(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	l := lock.NewRedisLocker(client)

	ran := false
	err := lock.Guard(ctx, l, "document:3", time.Minute, discard, func(ctx context.Context) error {
		ran = true
		inner, err := l.Acquire(ctx, "document:3", time.Minute)
		require.NoError(t, err)
		assert.False(t, inner, "lock must be held while fn runs")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	ok, err := l.Acquire(ctx, "document:3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "Guard must release on return")
}

func TestGuardPropagatesError(t *testing.T) {
	_, client := setupRedis(t)
	boom := errors.New("boom")

	err := lock.Guard(context.Background(), lock.NewRedisLocker(client), "document:4", time.Minute, discard,
		func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestGuardConcurrentExactlyOneWins(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		held    atomic.Int32
		release = make(chan struct{})
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lock.Guard(ctx, lock.NewRedisLocker(client), "document:5", time.Minute, discard, func(context.Context) error {
				wins.Add(1)
				<-release
				return nil
			})
			if errors.Is(err, lock.ErrHeld) && held.Add(1) == workers-1 {
				close(release)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), held.Load())
}

type failingRelease struct {
	lock.Locker
	err error
}

func (f failingRelease) Release(context.Context, string) error { return f.err }

func TestGuardLogsReleaseFailure(t *testing.T) {
	_, client := setupRedis(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	l := failingRelease{Locker: lock.NewRedisLocker(client), err: errors.New("connection reset")}

	err := lock.Guard(context.Background(), l, "document:6", time.Minute, logger,
		func(context.Context) error { return nil })
	require.NoError(t, err, "a failed release must not fail the guarded call")

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "lock release failed")
	assert.Contains(t, out, "lock=document:6")
	assert.Contains(t, out, "connection reset")
}
