package guard

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andrebq/backstage/credential"
	"github.com/andrebq/backstage/internal/testutil"
	"github.com/andrebq/backstage/passwd"
	"github.com/andrebq/backstage/userstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idle = 10 * time.Second

func TestDecisionTable(t *testing.T) {
	ctx := context.Background()
	g, clock, cleanup := acquireGuard(ctx, t)
	defer cleanup()

	res := g.CheckHeader(ctx, "")
	assert.Equal(t, Result{Kind: Required}, res)

	res = g.CheckHeader(ctx, credential.EncodeBasic("foo", "bar"))
	require.Equal(t, NewToken, res.Kind)
	require.Equal(t, "foo", res.User)
	require.True(t, strings.HasPrefix(res.TokenHeader, "CacheToken "), "unexpected token header %v", res.TokenHeader)
	tokenHeader := res.TokenHeader

	res = g.CheckHeader(ctx, credential.EncodeBasic("foo", "wrong"))
	assert.Equal(t, Result{Kind: Failed}, res)

	res = g.CheckHeader(ctx, credential.EncodeBasic("nobody", "bar"))
	assert.Equal(t, Result{Kind: Failed}, res)

	res = g.CheckHeader(ctx, tokenHeader)
	assert.Equal(t, Result{Kind: AuthSucceeded, User: "foo", TokenHeader: tokenHeader}, res)

	clock.Advance(idle + time.Second)
	res = g.CheckHeader(ctx, tokenHeader)
	assert.Equal(t, Result{Kind: TokenExpired}, res)

	res = g.CheckHeader(ctx, "Bearer xyz")
	assert.Equal(t, Result{Kind: Failed}, res)
}

func TestMalformedHeadersFail(t *testing.T) {
	ctx := context.Background()
	g, _, cleanup := acquireGuard(ctx, t)
	defer cleanup()

	for _, hdr := range []string{
		"Basic not-base64!",
		"Basic Zm9vYmFy",         // foobar
		"Basic Zm9vOmJhcjpiYXo=", // foo:bar:baz
		"Basic",
		"CacheToken",
		"cachetoken abc",
		" ",
	} {
		res := g.CheckHeader(ctx, hdr)
		assert.Equal(t, Result{Kind: Failed}, res, "header %q", hdr)
	}
}

func TestUnknownTokenIsExpired(t *testing.T) {
	ctx := context.Background()
	g, _, cleanup := acquireGuard(ctx, t)
	defer cleanup()
	res := g.CheckHeader(ctx, "CacheToken never-issued")
	assert.Equal(t, Result{Kind: TokenExpired}, res)
}

func TestRemoveUserExpiresTokens(t *testing.T) {
	ctx := context.Background()
	g, _, cleanup := acquireGuard(ctx, t)
	defer cleanup()

	require.NoError(t, g.AddUser(ctx, "bob", "secret"))
	bob := g.CheckHeader(ctx, credential.EncodeBasic("bob", "secret"))
	require.Equal(t, NewToken, bob.Kind)
	foo := g.CheckHeader(ctx, credential.EncodeBasic("foo", "bar"))
	require.Equal(t, NewToken, foo.Kind)

	require.NoError(t, g.RemoveUser(ctx, "bob"))
	has, err := g.HasUser(ctx, "bob")
	require.NoError(t, err)
	require.False(t, has)
	assert.Equal(t, TokenExpired, g.CheckHeader(ctx, bob.TokenHeader).Kind)
	assert.Equal(t, AuthSucceeded, g.CheckHeader(ctx, foo.TokenHeader).Kind, "other users keep their tokens")

	require.NoError(t, g.RemoveUser(ctx, "bob"), "removing twice is not an error")
}

func TestPasswordChangeExpiresTokens(t *testing.T) {
	ctx := context.Background()
	g, _, cleanup := acquireGuard(ctx, t)
	defer cleanup()

	res := g.CheckHeader(ctx, credential.EncodeBasic("foo", "bar"))
	require.Equal(t, NewToken, res.Kind)
	require.NoError(t, g.AddUser(ctx, "foo", "new-password"))
	assert.Equal(t, TokenExpired, g.CheckHeader(ctx, res.TokenHeader).Kind)

	ok, err := g.CheckUser(ctx, "foo", "new-password")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheckRequest(t *testing.T) {
	ctx := context.Background()
	g, _, cleanup := acquireGuard(ctx, t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, Required, g.CheckRequest(req).Kind)
	req.SetBasicAuth("foo", "bar")
	res := g.CheckRequest(req)
	assert.Equal(t, NewToken, res.Kind)
	assert.True(t, res.Authenticated())
}

func TestStoreNotReadyFails(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Now())
	cache, done := testutil.AcquireCache(ctx, t, clock, idle, time.Hour)
	defer done()
	store, closeStore := testutil.AcquireStore(ctx, t, nil)
	closeStore()

	g := New(store, cache)
	res := g.CheckHeader(ctx, credential.EncodeBasic("foo", "bar"))
	assert.Equal(t, Result{Kind: Failed}, res)
}

type countingRecorder map[string]int

func (c countingRecorder) Result(name string) { c[name]++ }

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	g, _, cleanup := acquireGuard(ctx, t)
	defer cleanup()
	rec := countingRecorder{}
	g.WithRecorder(rec)

	g.CheckHeader(ctx, "")
	g.CheckHeader(ctx, "Bearer xyz")
	g.CheckHeader(ctx, credential.EncodeBasic("foo", "bar"))
	assert.Equal(t, countingRecorder{"AUTH_REQUIRED": 1, "FAILED": 1, "NEW_TOKEN": 1}, rec)
}

func TestKindNames(t *testing.T) {
	for k, name := range map[Kind]string{
		Failed:        "FAILED",
		Required:      "AUTH_REQUIRED",
		TokenExpired:  "TOKEN_EXPIRED",
		NewToken:      "NEW_TOKEN",
		AuthSucceeded: "AUTH_SUCCEEDED",
		Kind(99):      "UNKNOWN",
	} {
		if k.String() != name {
			t.Errorf("kind %d should be %v got %v", int(k), name, k.String())
		}
	}
}

func acquireGuard(ctx context.Context, t *testing.T) (*Guard, *testutil.Clock, func()) {
	clock := testutil.NewClock(time.Date(2022, 5, 1, 10, 0, 0, 0, time.UTC))
	store, closeStore := testutil.AcquireStore(ctx, t, map[string]string{"foo": "bar"})
	cache, destroyCache := testutil.AcquireCache(ctx, t, clock, idle, time.Hour)
	return New(store, cache), clock, func() {
		destroyCache()
		closeStore()
	}
}

func TestRestartKeepsUsersDropsTokens(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Now())
	store, dbfile, cleanup := testutil.AcquireFileStore(ctx, t, map[string]string{"foo": "bar"})
	defer cleanup()
	cache, destroyCache := testutil.AcquireCache(ctx, t, clock, idle, time.Hour)
	res := New(store, cache).CheckHeader(ctx, credential.EncodeBasic("foo", "bar"))
	require.Equal(t, NewToken, res.Kind)
	destroyCache()
	require.NoError(t, store.Close())

	reopened, err := userstore.New(userstore.Options{
		Mode:   userstore.ModePath,
		Path:   dbfile,
		Hasher: passwd.New(passwd.TestParams),
	})
	require.NoError(t, err)
	require.NoError(t, reopened.Initialize(ctx).Wait(ctx))
	cache, _ = testutil.AcquireCache(ctx, t, clock, idle, time.Hour)
	g := New(reopened, cache)
	defer g.Destroy()

	assert.Equal(t, TokenExpired, g.CheckHeader(ctx, res.TokenHeader).Kind)
	assert.Equal(t, NewToken, g.CheckHeader(ctx, credential.EncodeBasic("foo", "bar")).Kind)
}
