package credx

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachingResolver caches elevated credentials per access-key reference.
// Long-lived credentials from direct records are never cached. Concurrent
// misses for the same reference share a single underlying Resolve call. That
// call keeps the values of the first caller's context but not its cancellation;
// the resolver's call timeout bounds it. Each caller still returns as soon as
// its own context is done.
type CachingResolver struct {
	next Resolver
	ttl  time.Duration
	now  func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]cachedCredentials
}

type cachedCredentials struct {
	creds     Credentials
	expiresAt time.Time
}

// NewCachingResolver wraps next. Entries live for ttl, capped at the session
// duration and at the reported expiration minus CredentialExpirySkew.
func NewCachingResolver(next Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedCredentials),
	}
}

func (c *CachingResolver) Resolve(ctx context.Context, accessKeyRef string) (Credentials, error) {
	if creds, ok := c.get(accessKeyRef); ok {
		return creds, nil
	}

	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(accessKeyRef, func() (any, error) {
		if creds, ok := c.get(accessKeyRef); ok {
			return creds, nil
		}
		creds, err := c.next.Resolve(shared, accessKeyRef)
		if err != nil {
			return Credentials{}, err
		}
		if creds.Elevated() {
			c.put(accessKeyRef, creds)
		}
		return creds, nil
	})

	select {
	case <-ctx.Done():
		return Credentials{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Credentials{}, res.Err
		}
		return res.Val.(Credentials), nil
	}
}

// Invalidate drops the cached entry for accessKeyRef.
func (c *CachingResolver) Invalidate(accessKeyRef string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, accessKeyRef)
}

// Len returns the number of live entries.
func (c *CachingResolver) Len() int {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

func (c *CachingResolver) get(ref string) (Credentials, bool) {
	c.mu.RLock()
	e, ok := c.entries[ref]
	c.mu.RUnlock()
	if !ok {
		return Credentials{}, false
	}
	if !c.now().Before(e.expiresAt) {
		c.Invalidate(ref)
		return Credentials{}, false
	}
	return e.creds, true
}

func (c *CachingResolver) put(ref string, creds Credentials) {
	now := c.now()
	ttl := c.ttl
	if ttl > AssumeRoleDuration {
		ttl = AssumeRoleDuration
	}
	expiresAt := now.Add(ttl)
	if !creds.Expires.IsZero() {
		if reported := creds.Expires.Add(-CredentialExpirySkew); reported.Before(expiresAt) {
			expiresAt = reported
		}
	}
	if !now.Before(expiresAt) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ref] = cachedCredentials{creds: creds, expiresAt: expiresAt}
}
