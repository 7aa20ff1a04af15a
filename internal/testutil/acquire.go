package testutil

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/andrebq/backstage/passwd"
	"github.com/andrebq/backstage/session"
	"github.com/andrebq/backstage/userstore"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}

	// Clock is a manually advanced clock for session caches
	Clock struct {
		sync.Mutex
		t time.Time
	}
)

func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

func (c *Clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.Lock()
	c.t = c.t.Add(d)
	c.Unlock()
}

// AcquireStore returns an initialized in-memory store populated with users
// (name -> password). Hashing uses cheap parameters to keep tests fast.
func AcquireStore(ctx context.Context, t TestLog, users map[string]string) (*userstore.Store, func()) {
	store, err := userstore.New(userstore.Options{
		Mode:   userstore.ModeInMemory,
		Hasher: passwd.New(passwd.TestParams),
	})
	if err != nil {
		t.Fatal(err)
	}
	return initStore(ctx, t, store, users), func() {
		if err := store.Close(); err != nil {
			t.Log("unable to close store", err)
		}
	}
}

// AcquireFileStore is like AcquireStore but keeps the users in a sqlite file
// under a temporary directory which is removed by cleanup.
func AcquireFileStore(ctx context.Context, t TestLog, users map[string]string) (*userstore.Store, string, func()) {
	dir, err := ioutil.TempDir("", "backstage-tests")
	if err != nil {
		t.Fatal(err)
	}
	dbfile := filepath.Join(dir, "users.db")
	store, err := userstore.New(userstore.Options{
		Mode:   userstore.ModePath,
		Path:   dbfile,
		Hasher: passwd.New(passwd.TestParams),
	})
	if err != nil {
		t.Fatal(err)
	}
	return initStore(ctx, t, store, users), dbfile, func() {
		if err := store.Close(); err != nil {
			t.Log("unable to close store", err)
		}
		if err := os.RemoveAll(dir); err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}

func initStore(ctx context.Context, t TestLog, store *userstore.Store, users map[string]string) *userstore.Store {
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Initialize(ctx).Wait(waitCtx); err != nil {
		t.Fatal(err)
	}
	for name, pwd := range users {
		if err := store.AddUser(ctx, name, pwd); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

// AcquireCache returns a session cache driven by clock. The background
// sweep is effectively disabled, tests advance the clock and rely on
// lazy expiration instead.
func AcquireCache(ctx context.Context, t TestLog, clock *Clock, idle, maxLifetime time.Duration) (*session.Cache, func()) {
	cache, err := session.New(ctx, idle, maxLifetime,
		session.WithClock(clock.Now),
		session.WithSweepInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	return cache, cache.Destroy
}
