// Package guard combines a user store and a session cache behind a single
// CheckHeader call.
//
// A Basic header is checked against the user store and, when accepted,
// exchanged for a session token. Later requests present that token with
// the CacheToken scheme until it expires, at which point the caller gets
// TokenExpired and should send its password again.
package guard

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/andrebq/backstage/credential"
	"github.com/andrebq/backstage/internal/logutil"
	"github.com/andrebq/backstage/session"
	"github.com/andrebq/backstage/userstore"
)

type (
	// Recorder counts results, *metrics.Recorder implements it
	Recorder interface {
		Result(name string)
	}

	Guard struct {
		store    *userstore.Store
		cache    *session.Cache
		recorder Recorder
	}

	nopRecorder struct{}
)

func (nopRecorder) Result(string) {}

// New returns a Guard over store and cache. The guard does not own either
// of them, callers must Destroy the cache and Close the store themselves
// (or call Guard.Destroy).
func New(store *userstore.Store, cache *session.Cache) *Guard {
	return &Guard{store: store, cache: cache, recorder: nopRecorder{}}
}

func (g *Guard) WithRecorder(r Recorder) *Guard {
	g.recorder = r
	return g
}

// Initialize forwards to the user store, the session cache needs no setup
func (g *Guard) Initialize(ctx context.Context) *userstore.Init {
	return g.store.Initialize(ctx)
}

// CheckHeader classifies an Authorization header value. It never returns
// an error: malformed headers and storage failures become Failed.
func (g *Guard) CheckHeader(ctx context.Context, header string) Result {
	res := g.classify(ctx, header)
	g.recorder.Result(res.Kind.String())
	return res
}

func (g *Guard) CheckRequest(r *http.Request) Result {
	return g.CheckHeader(r.Context(), r.Header.Get("Authorization"))
}

func (g *Guard) classify(ctx context.Context, header string) Result {
	log := logutil.Component(ctx, "guard")
	switch {
	case strings.HasPrefix(header, credential.BasicPrefix):
		user, err := g.store.CheckHeader(ctx, header)
		if err != nil {
			if !errors.Is(err, credential.MalformedHeader{}) {
				log.Warn().Err(err).Msg("Unable to check credentials")
			}
			return Result{Kind: Failed}
		}
		if user == "" {
			return Result{Kind: Failed}
		}
		token, err := g.cache.Add(user)
		if err != nil {
			log.Error().Err(err).Str("user", user).Msg("Unable to issue session token")
			return Result{Kind: Failed}
		}
		return Result{Kind: NewToken, User: user, TokenHeader: credential.EncodeToken(token)}
	case strings.HasPrefix(header, credential.TokenPrefix):
		user, err := g.cache.CheckHeader(header)
		if err != nil {
			return Result{Kind: Failed}
		}
		if user == "" {
			return Result{Kind: TokenExpired}
		}
		return Result{Kind: AuthSucceeded, User: user, TokenHeader: header}
	case header == "":
		return Result{Kind: Required}
	}
	return Result{Kind: Failed}
}

// AddUser creates or replaces a user. Replacing an existing user
// expires the tokens issued with the previous password.
func (g *Guard) AddUser(ctx context.Context, username, password string) error {
	existed, err := g.store.HasUser(ctx, username)
	if err != nil {
		return err
	}
	err = g.store.AddUser(ctx, username, password)
	if err != nil {
		return err
	}
	if existed {
		// a login with the new password racing with this call may lose its
		// token too, the client only has to authenticate again
		g.cache.ExpireAll(username)
	}
	return nil
}

// RemoveUser deletes the user and every token issued to it
func (g *Guard) RemoveUser(ctx context.Context, username string) error {
	err := g.store.RemoveUser(ctx, username)
	if err != nil {
		return err
	}
	g.cache.ExpireAll(username)
	return nil
}

func (g *Guard) HasUser(ctx context.Context, username string) (bool, error) {
	return g.store.HasUser(ctx, username)
}

func (g *Guard) CheckUser(ctx context.Context, username, password string) (bool, error) {
	return g.store.CheckUser(ctx, username, password)
}

// Destroy stops the session cache and closes the user store
func (g *Guard) Destroy() error {
	g.cache.Destroy()
	return g.store.Close()
}
