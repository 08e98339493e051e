package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSortsAndDedupes(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, normalize([]string{"c", "a", "", "b", "a"}))
}

func TestRootKey(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	require.Equal(t, "chart:root:00000000-0000-0000-0000-000000000001", RootKey(id))
}

func TestLocalSerializes(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, RootsKey, "chart:root:x")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, maxSeen)
	require.Empty(t, l.slots)
}

func TestLocalHonorsContext(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), RootsKey)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, RootsKey)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalReleaseIsIdempotent(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
	release()
	release, err = l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
}

func newRedisLocker(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedis(rdb, RedisOptions{TTL: time.Second, Retries: 0, Backoff: time.Millisecond}, logger), mr
}

func TestRedisAcquireAndRelease(t *testing.T) {
	r, mr := newRedisLocker(t)
	ctx := context.Background()

	release, err := r.Acquire(ctx, RootKey(uuid.New()), RootsKey)
	require.NoError(t, err)
	require.True(t, mr.Exists(RootsKey))

	_, err = r.Acquire(ctx, RootsKey)
	require.True(t, errors.Is(err, ErrNotObtained))

	release()
	require.False(t, mr.Exists(RootsKey))

	release, err = r.Acquire(ctx, RootsKey)
	require.NoError(t, err)
	release()
}

func TestRedisPartialFailureReleasesHeldKeys(t *testing.T) {
	r, mr := newRedisLocker(t)
	ctx := context.Background()

	blocker, err := r.Acquire(ctx, "chart:root:b")
	require.NoError(t, err)
	defer blocker()

	_, err = r.Acquire(ctx, "chart:root:a", "chart:root:b")
	require.ErrorIs(t, err, ErrNotObtained)
	require.False(t, mr.Exists("chart:root:a"))
}
