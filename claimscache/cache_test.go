package claimscache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authsamples/go-bearer-auth/claims"
)

func principalExpiring(expiry time.Time) *claims.Principal {
	return &claims.Principal{
		Base:   &claims.Base{Subject: "user-1", Expiry: expiry},
		Custom: &claims.Custom{ResourceIDs: []string{"r1"}},
	}
}

func TestCache_GetOrCompute(t *testing.T) {
	t.Run("it returns a live entry without recomputing", func(t *testing.T) {
		cache := New()
		var calls atomic.Int32
		compute := func(context.Context) (*claims.Principal, error) {
			calls.Add(1)
			return principalExpiring(time.Now().Add(time.Hour)), nil
		}

		first, err := cache.GetOrCompute(context.Background(), "k", compute)
		require.NoError(t, err)
		second, err := cache.GetOrCompute(context.Background(), "k", compute)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("it computes exactly once for concurrent callers of the same key", func(t *testing.T) {
		cache := New()
		var calls atomic.Int32
		started := make(chan struct{})
		compute := func(context.Context) (*claims.Principal, error) {
			calls.Add(1)
			<-started // hold every caller in the single in-flight compute
			return principalExpiring(time.Now().Add(time.Hour)), nil
		}

		const workers = 32
		results := make([]*claims.Principal, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = cache.GetOrCompute(context.Background(), "k", compute)
			}(i)
		}

		// Give the workers time to pile up on the single-flight group,
		// then release the one compute that is running.
		time.Sleep(50 * time.Millisecond)
		close(started)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			assert.Same(t, results[0], results[i])
		}
	})

	t.Run("it runs computations for different keys in parallel", func(t *testing.T) {
		cache := New()
		compute := func(context.Context) (*claims.Principal, error) {
			time.Sleep(50 * time.Millisecond)
			return principalExpiring(time.Now().Add(time.Hour)), nil
		}

		start := time.Now()
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(i int, key string) {
				defer wg.Done()
				_, errs[i] = cache.GetOrCompute(context.Background(), key, compute)
			}(i, key)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		// Two 50ms computations on distinct keys overlap rather than
		// serialize behind a global lock.
		assert.Less(t, time.Since(start), 90*time.Millisecond)
	})

	t.Run("it never returns an entry past its token expiry", func(t *testing.T) {
		cache := New(WithSweepInterval(0))
		var calls atomic.Int32
		compute := func(context.Context) (*claims.Principal, error) {
			calls.Add(1)
			return principalExpiring(time.Now().Add(80 * time.Millisecond)), nil
		}

		_, err := cache.GetOrCompute(context.Background(), "k", compute)
		require.NoError(t, err)

		time.Sleep(120 * time.Millisecond)

		_, err = cache.GetOrCompute(context.Background(), "k", compute)
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load(), "expired entry must trigger recomputation")
	})

	t.Run("it does not cache failures", func(t *testing.T) {
		cache := New()
		var calls atomic.Int32
		failing := errors.New("claims source down")
		compute := func(context.Context) (*claims.Principal, error) {
			if calls.Add(1) == 1 {
				return nil, failing
			}
			return principalExpiring(time.Now().Add(time.Hour)), nil
		}

		_, err := cache.GetOrCompute(context.Background(), "k", compute)
		require.ErrorIs(t, err, failing)

		principal, err := cache.GetOrCompute(context.Background(), "k", compute)
		require.NoError(t, err)
		assert.NotNil(t, principal)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("it propagates a failure to all concurrent waiters", func(t *testing.T) {
		cache := New()
		failing := errors.New("boom")
		release := make(chan struct{})
		compute := func(context.Context) (*claims.Principal, error) {
			<-release
			return nil, failing
		}

		const workers = 8
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = cache.GetOrCompute(context.Background(), "k", compute)
			}(i)
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		for _, err := range errs {
			assert.ErrorIs(t, err, failing)
		}
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("it does not store an already-expired principal", func(t *testing.T) {
		cache := New()
		compute := func(context.Context) (*claims.Principal, error) {
			return principalExpiring(time.Now().Add(-time.Second)), nil
		}

		_, err := cache.GetOrCompute(context.Background(), "k", compute)
		require.NoError(t, err)
		assert.Equal(t, 0, cache.Len())
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("token"), Key("token"))
	assert.NotEqual(t, Key("token"), Key("other"))
	assert.NotContains(t, Key("supersecrettoken"), "supersecret")
	assert.Len(t, Key("token"), 64)
}
