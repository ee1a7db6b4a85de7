package credx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls atomic.Int32
	fn    func(ctx context.Context, ref string) (Credentials, error)
}

func (r *countingResolver) Resolve(ctx context.Context, ref string) (Credentials, error) {
	r.calls.Add(1)
	return r.fn(ctx, ref)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func elevated(expires time.Time) Credentials {
	return Credentials{AccessKey: "ASIA", SecretKey: "s", SessionToken: "t", Region: "us-east-1", Expires: expires}
}

func TestCachingResolver_CachesElevatedOnly(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	t.Run("elevated", func(t *testing.T) {
		next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
			return elevated(clock.Now().Add(AssumeRoleDuration)), nil
		}}
		c := NewCachingResolver(next, 5*time.Minute)
		c.now = clock.Now

		for range 3 {
			creds, err := c.Resolve(context.Background(), "ak")
			require.NoError(t, err)
			assert.Equal(t, "t", creds.SessionToken)
		}
		assert.Equal(t, int32(1), next.calls.Load())
		assert.Equal(t, 1, c.Len())
	})

	t.Run("direct", func(t *testing.T) {
		next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
			return Credentials{AccessKey: "AKIA", SecretKey: "s", Region: "us-east-1"}, nil
		}}
		c := NewCachingResolver(next, 5*time.Minute)
		c.now = clock.Now

		for range 3 {
			_, err := c.Resolve(context.Background(), "ak")
			require.NoError(t, err)
		}
		assert.Equal(t, int32(3), next.calls.Load())
		assert.Zero(t, c.Len())
	})

	t.Run("errors", func(t *testing.T) {
		boom := &RoleAssumptionError{RoleARN: testRoleARN, StatusCode: 403}
		next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
			return Credentials{}, boom
		}}
		c := NewCachingResolver(next, 5*time.Minute)

		for range 2 {
			_, err := c.Resolve(context.Background(), "ak")
			assert.ErrorIs(t, err, ErrRoleAssumption)
		}
		assert.Equal(t, int32(2), next.calls.Load())
	})
}

func TestCachingResolver_Expiry(t *testing.T) {
	tests := []struct {
		name      string
		ttl       time.Duration
		expiresIn time.Duration
		hitAt     time.Duration
		missAt    time.Duration
	}{
		{"ttl shorter than session", time.Minute, AssumeRoleDuration, 59 * time.Second, time.Minute},
		{"ttl capped at session duration", time.Hour, 0, AssumeRoleDuration - time.Second, AssumeRoleDuration},
		{"reported expiration minus skew", 10 * time.Minute, 2 * time.Minute, 2*time.Minute - CredentialExpirySkew - time.Second, 2*time.Minute - CredentialExpirySkew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
			start := clock.Now()
			next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
				var exp time.Time
				if tt.expiresIn > 0 {
					exp = clock.Now().Add(tt.expiresIn)
				}
				return elevated(exp), nil
			}}
			c := NewCachingResolver(next, tt.ttl)
			c.now = clock.Now

			_, err := c.Resolve(context.Background(), "ak")
			require.NoError(t, err)

			clock.now = start.Add(tt.hitAt)
			_, err = c.Resolve(context.Background(), "ak")
			require.NoError(t, err)
			assert.Equal(t, int32(1), next.calls.Load(), "expected a cache hit")

			clock.now = start.Add(tt.missAt)
			_, err = c.Resolve(context.Background(), "ak")
			require.NoError(t, err)
			assert.Equal(t, int32(2), next.calls.Load(), "expected a cache miss")
		})
	}
}

func TestCachingResolver_AlreadyExpiredIsNotCached(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
		return elevated(clock.Now().Add(10 * time.Second)), nil
	}}
	c := NewCachingResolver(next, time.Minute)
	c.now = clock.Now

	_, err := c.Resolve(context.Background(), "ak")
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestCachingResolver_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
		entered <- struct{}{}
		<-release
		return elevated(time.Now().Add(AssumeRoleDuration)), nil
	}}
	c := NewCachingResolver(next, time.Minute)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Resolve(context.Background(), "ak")
			errs <- err
		}()
	}

	<-entered
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachingResolver_Invalidate(t *testing.T) {
	next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
		return elevated(time.Now().Add(AssumeRoleDuration)), nil
	}}
	c := NewCachingResolver(next, time.Minute)

	_, err := c.Resolve(context.Background(), "ak")
	require.NoError(t, err)
	c.Invalidate("ak")
	_, err = c.Resolve(context.Background(), "ak")
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachingResolver_CallerDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
		<-release
		return elevated(time.Now().Add(AssumeRoleDuration)), nil
	}}
	c := NewCachingResolver(next, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Resolve(ctx, "ak")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCachingResolver_AlreadyCancelledSkipsCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
		return elevated(time.Now().Add(AssumeRoleDuration)), nil
	}}
	c := NewCachingResolver(next, time.Minute)

	_, err := c.Resolve(ctx, "ak")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(0), next.calls.Load())
}

func TestCachingResolver_FollowerDeadlineWhileLeaderBlocked(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	next := &countingResolver{fn: func(context.Context, string) (Credentials, error) {
		entered <- struct{}{}
		<-release
		return elevated(time.Now().Add(AssumeRoleDuration)), nil
	}}
	c := NewCachingResolver(next, time.Minute)

	leader := make(chan error, 1)
	go func() {
		_, err := c.Resolve(context.Background(), "ak")
		leader <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Resolve(ctx, "ak")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case err := <-leader:
		t.Fatalf("leader returned before release: %v", err)
	default:
	}

	close(release)
	require.NoError(t, <-leader)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachingResolver_LeaderCancelDoesNotFailFollowers(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var sharedErr atomic.Value
	next := &countingResolver{fn: func(ctx context.Context, _ string) (Credentials, error) {
		entered <- struct{}{}
		<-release
		if err := ctx.Err(); err != nil {
			sharedErr.Store(err)
			return Credentials{}, &RoleAssumptionError{RoleARN: testRoleARN, Err: err}
		}
		return elevated(time.Now().Add(AssumeRoleDuration)), nil
	}}
	c := NewCachingResolver(next, time.Minute)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() {
		_, err := c.Resolve(leaderCtx, "ak")
		leader <- err
	}()
	<-entered

	cancelLeader()
	assert.True(t, errors.Is(<-leader, context.Canceled))

	follower := make(chan error, 1)
	go func() {
		creds, err := c.Resolve(context.Background(), "ak")
		if err == nil && creds.SessionToken != "t" {
			err = errors.New("unexpected credentials")
		}
		follower <- err
	}()

	close(release)
	require.NoError(t, <-follower)
	assert.Nil(t, sharedErr.Load())
	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, 1, c.Len())
}
