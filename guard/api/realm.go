package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/andrebq/backstage/guard"
	"github.com/andrebq/backstage/internal/logutil"
	"github.com/julienschmidt/httprouter"
)

type (
	Realm struct {
		name  string
		guard *guard.Guard
	}

	userKey struct{}

	whoami struct {
		User   string `json:"user"`
		Result string `json:"result"`
	}

	authenticated struct {
		user string
		kind guard.Kind
	}
)

const (
	WhoamiPath = "/.auth/whoami"

	// InfoHeader carries the token a client should present on its next request
	InfoHeader = "Authentication-Info"
)

func NewRealm(name string, g *guard.Guard) *Realm {
	return &Realm{name: name, guard: g}
}

// UserFromContext returns the user authenticated by Protect, or "" when the
// request did not pass through it.
func UserFromContext(ctx context.Context) string {
	a, _ := ctx.Value(userKey{}).(authenticated)
	return a.user
}

func (s *Realm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.guard.CheckRequest(r)
		if !res.Authenticated() {
			s.reject(w, r, res)
			return
		}
		w.Header().Set(InfoHeader, res.TokenHeader)
		ctx := context.WithValue(r.Context(), userKey{}, authenticated{user: res.User, kind: res.Kind})
		sensitive.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Realm) reject(w http.ResponseWriter, r *http.Request, res guard.Result) {
	switch res.Kind {
	case guard.Required:
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.name))
	case guard.TokenExpired:
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q, error=\"token_expired\"", s.name))
	default:
		logutil.Component(r.Context(), "realm").Debug().Str("path", r.URL.Path).Msg("Rejected credentials")
	}
	http.Error(w, "Invalid credentials", http.StatusUnauthorized)
}

// Routes returns a router with the realm's own endpoints. Callers may add
// more routes or set NotFound to delegate everything else.
func (s *Realm) Routes() *httprouter.Router {
	router := httprouter.New()
	router.Handler("GET", WhoamiPath, s.Protect(http.HandlerFunc(s.whoami)))
	return router
}

func (s *Realm) whoami(w http.ResponseWriter, r *http.Request) {
	a, _ := r.Context().Value(userKey{}).(authenticated)
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(whoami{User: a.user, Result: a.kind.String()})
	if err != nil {
		logutil.Component(r.Context(), "realm").Error().Err(err).Msg("Unable to write whoami response")
	}
}
