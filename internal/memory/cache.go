// Package memory is the session-scoped conversation cache: a durable
// time-expiring store that transparently degrades to an in-process store when
// the durable one is unreachable, so callers never observe the failure.
package memory

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ragstack/rag-backend/internal/core"
)

// retryInterval is how long the cache serves from the in-process store after
// a durable failure before probing the durable store again.
const retryInterval = 30 * time.Second

// Cache fronts the durable session store. A durable failure degrades the
// cache onto the in-process store with identical TTL and cap semantics; the
// degradation is logged, not raised. The durable store is probed again once
// per retry interval, so a recovered backend is picked back up without a
// restart. A per-session lock serialises the read-modify-write of an append
// so concurrent appends to one session cannot lose turns.
type Cache struct {
	durable core.SessionStore
	local   *LocalStore

	mu            sync.Mutex
	degradedUntil time.Time // zero while the durable store is healthy
	sessionLocks  map[string]*sync.Mutex
	now           func() time.Time
}

// NewCache builds the cache. durable may be nil when no durable store is
// configured; everything then lives in process.
func NewCache(durable core.SessionStore, ttl time.Duration, maxTurns int) *Cache {
	if durable == nil {
		log.Println("Session cache running on the in-process store only")
	}
	return &Cache{
		durable:      durable,
		local:        NewLocalStore(ttl, maxTurns),
		sessionLocks: make(map[string]*sync.Mutex),
		now:          time.Now,
	}
}

// useDurable reports whether this operation should try the durable store.
// During a degraded window operations go straight to the local store; once
// the window elapses the next operation probes the durable store again.
func (c *Cache) useDurable() bool {
	if c.durable == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degradedUntil.IsZero() || c.now().After(c.degradedUntil)
}

func (c *Cache) markDegraded(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.degradedUntil = c.now().Add(retryInterval)
	log.Printf("Session cache degraded to in-process store for %s: %s", retryInterval, reason)
}

func (c *Cache) markHealthy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.degradedUntil.IsZero() {
		c.degradedUntil = time.Time{}
		log.Println("Session cache durable store recovered")
	}
}

func (c *Cache) sessionLock(sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.sessionLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		c.sessionLocks[sessionID] = l
	}
	return l
}

func (c *Cache) Append(ctx context.Context, sessionID string, turn core.ConversationTurn) error {
	l := c.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	if c.useDurable() {
		err := c.durable.Append(ctx, sessionID, turn)
		if err == nil {
			c.markHealthy()
			return nil
		}
		c.markDegraded(err.Error())
	}
	return c.local.Append(ctx, sessionID, turn)
}

func (c *Cache) History(ctx context.Context, sessionID string) ([]core.ConversationTurn, error) {
	if c.useDurable() {
		turns, err := c.durable.History(ctx, sessionID)
		if err == nil {
			c.markHealthy()
			return turns, nil
		}
		c.markDegraded(err.Error())
	}
	return c.local.History(ctx, sessionID)
}

func (c *Cache) Clear(ctx context.Context, sessionID string) error {
	l := c.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	if c.useDurable() {
		err := c.durable.Clear(ctx, sessionID)
		if err == nil {
			c.markHealthy()
			return nil
		}
		c.markDegraded(err.Error())
	}
	return c.local.Clear(ctx, sessionID)
}
