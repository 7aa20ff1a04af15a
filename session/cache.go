// Package session keeps the tokens handed out after a successful password
// check.
//
// A token expires when it is not used for longer than the idle timeout or
// when it gets older than the max lifetime, whichever happens first.
// Expired tokens are evicted lazily by Check and periodically by a sweep
// goroutine owned by the Cache. The sweep runs once per idle timeout, so an
// expired token may stay in memory for up to one idle timeout but is never
// reported as valid.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/andrebq/backstage/credential"
	"github.com/andrebq/backstage/internal/logutil"
	"github.com/rs/zerolog"
)

type (
	Cache struct {
		idle        time.Duration
		maxLifetime time.Duration
		interval    time.Duration
		now         func() time.Time
		generate    func() (string, error)
		observer    Observer
		log         zerolog.Logger

		// guards every read-modify-write on entries
		mu      sync.Mutex
		entries *bigcache.BigCache

		stop    chan struct{}
		stopped chan struct{}
		destroy sync.Once
	}

	entry struct {
		User       string `json:"u"`
		CreatedAt  int64  `json:"c"`
		LastSeenAt int64  `json:"l"`
	}
)

const (
	reasonCheck     = "check"
	reasonSweep     = "sweep"
	reasonExpireAll = "expire_all"
)

// New creates a cache and starts its sweep goroutine.
// Destroy must be called once the cache is no longer needed.
func New(ctx context.Context, idleTimeout, maxLifetime time.Duration, opts ...Option) (*Cache, error) {
	if idleTimeout <= 0 || maxLifetime <= 0 {
		return nil, InvalidConfiguration{Reason: fmt.Sprintf("timeouts must be positive, got idle %v and max lifetime %v", idleTimeout, maxLifetime)}
	}
	c := &Cache{
		idle:        idleTimeout,
		maxLifetime: maxLifetime,
		interval:    idleTimeout,
		now:         time.Now,
		generate:    GenerateToken,
		observer:    nopObserver{},
		log:         logutil.Component(ctx, "session"),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.interval <= 0 {
		return nil, InvalidConfiguration{Reason: "sweep interval must be positive"}
	}

	// bigcache only drops entries older than its life window, which is
	// kept well above anything a valid token can reach. Expiration is
	// decided here, not by bigcache.
	lifeWindow := idleTimeout
	if maxLifetime > lifeWindow {
		lifeWindow = maxLifetime
	}
	entries, err := bigcache.New(ctx, bigcache.Config{
		Shards:             64,
		LifeWindow:         lifeWindow + time.Minute,
		CleanWindow:        0,
		MaxEntriesInWindow: 4096,
		MaxEntrySize:       256,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create token cache, cause %w", err)
	}
	c.entries = entries

	go c.sweepLoop()
	return c, nil
}

// Destroy stops the sweep goroutine, waiting for a running sweep to
// finish, and releases the token storage. Calling it again is a no-op.
func (c *Cache) Destroy() {
	c.destroy.Do(func() {
		close(c.stop)
		<-c.stopped
		c.mu.Lock()
		c.entries.Close()
		c.mu.Unlock()
	})
}

// Add issues a new token for user
func (c *Cache) Add(user string) (string, error) {
	token, err := c.generate()
	if err != nil {
		return "", err
	}
	now := c.now().UnixNano()
	buf, err := json.Marshal(entry{User: user, CreatedAt: now, LastSeenAt: now})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	err = c.entries.Set(token, buf)
	c.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("unable to store token, cause %w", err)
	}
	c.observer.Issued()
	return token, nil
}

// Check returns the user that owns token, or an empty string if the token
// is unknown or expired. Using a valid token extends its idle timeout.
func (c *Cache) Check(token string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.lookup(token)
	if !found {
		return ""
	}
	now := c.now()
	if !c.valid(e, now) {
		c.entries.Delete(token)
		c.observer.Evicted(reasonCheck, 1)
		return ""
	}
	if seen := now.UnixNano(); seen > e.LastSeenAt {
		e.LastSeenAt = seen
	}
	if buf, err := json.Marshal(e); err == nil {
		if err := c.entries.Set(token, buf); err != nil {
			c.log.Warn().Err(err).Msg("Unable to refresh token, it will expire after its original idle timeout")
		}
	}
	return e.User
}

// CheckHeader validates a "CacheToken <token>" header value.
// Headers without the prefix return credential.MalformedHeader.
func (c *Cache) CheckHeader(header string) (string, error) {
	token, err := credential.DecodeToken(header)
	if err != nil {
		return "", err
	}
	return c.Check(token), nil
}

// ExpireAll removes every token issued to user and returns how many were removed
func (c *Cache) ExpireAll(user string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.evictWhere(func(e entry) bool { return e.User == user })
	c.observer.Evicted(reasonExpireAll, n)
	return n
}

// Len counts stored tokens, including expired ones waiting for the next sweep
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *Cache) sweepLoop() {
	defer close(c.stopped)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := c.evictWhere(func(e entry) bool { return !c.valid(e, now) })
	if n > 0 {
		c.log.Debug().Int("evicted", n).Int("remaining", c.entries.Len()).Msg("Session sweep")
	}
	c.observer.Evicted(reasonSweep, n)
	return n
}

// evictWhere must be called with mu held
func (c *Cache) evictWhere(match func(entry) bool) int {
	var victims []string
	it := c.entries.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(info.Value(), &e); err != nil {
			c.log.Error().Err(err).Msg("Corrupted session entry, evicting")
			victims = append(victims, info.Key())
			continue
		}
		if match(e) {
			victims = append(victims, info.Key())
		}
	}
	for _, v := range victims {
		c.entries.Delete(v)
	}
	return len(victims)
}

// lookup must be called with mu held
func (c *Cache) lookup(token string) (entry, bool) {
	buf, err := c.entries.Get(token)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return entry{}, false
	} else if err != nil {
		c.log.Warn().Err(err).Msg("Unable to read token from cache")
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(buf, &e); err != nil {
		c.log.Error().Err(err).Msg("Corrupted session entry, evicting")
		c.entries.Delete(token)
		return entry{}, false
	}
	return e, true
}

func (c *Cache) valid(e entry, now time.Time) bool {
	ts := now.UnixNano()
	if ts > e.LastSeenAt+int64(c.idle) {
		return false
	}
	if ts > e.CreatedAt+int64(c.maxLifetime) {
		return false
	}
	return true
}
