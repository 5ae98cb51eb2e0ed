// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package institution restricts ranked author lists to members of given
// institutions, backed by a TTL cache over an expensive membership source.
package institution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// MembershipSource lists the author IDs known to belong to an institution.
// Implementations: OpenAlexSource.
type MembershipSource interface {
	ListAuthorIDs(ctx context.Context, institutionID string) (map[string]struct{}, error)
}

type entry struct {
	members   map[string]struct{}
	fetchedAt time.Time
}

// Cache memoizes institution membership sets with a time-to-live. Entries are
// shared read-only between refreshes; all mutation goes through Members.
// Concurrent callers for the same stale or absent key share a single upstream
// fetch (single-flight); latecomers wait for the in-flight result.
type Cache struct {
	source MembershipSource
	ttl    time.Duration

	// now is injectable so tests can control entry staleness.
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	group singleflight.Group
}

// NewCache builds a membership cache over source with the given TTL.
func NewCache(source MembershipSource, ttl time.Duration) *Cache {
	return &Cache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// WithClock overrides the wall clock used for TTL checks.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Members returns the membership set for an institution, fetching it from the
// source when absent or older than the TTL. The returned set is shared
// read-only state; callers must not mutate it. An in-flight fetch is not
// cancelled when one waiting caller's context ends, since the result is
// shared, but each caller stops waiting when its own context is done.
func (c *Cache) Members(ctx context.Context, institutionID string) (map[string]struct{}, error) {
	c.mu.RLock()
	e, ok := c.entries[institutionID]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.members, nil
	}

	ch := c.group.DoChan(institutionID, func() (any, error) {
		// Re-check under the lock: another flight may have refreshed the
		// entry between the caller's staleness check and this execution.
		c.mu.RLock()
		e, ok := c.entries[institutionID]
		c.mu.RUnlock()
		if ok && c.now().Sub(e.fetchedAt) < c.ttl {
			return e.members, nil
		}

		members, err := c.source.ListAuthorIDs(context.WithoutCancel(ctx), institutionID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[institutionID] = entry{members: members, fetchedAt: c.now()}
		c.mu.Unlock()
		return members, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("fetching members of institution %s: %w", institutionID, res.Err)
		}
		return res.Val.(map[string]struct{}), nil
	}
}
