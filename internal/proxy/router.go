package proxy

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/andrebq/backstage/guard/api"
	"github.com/andrebq/backstage/internal/logutil"
)

const (
	MetricsPath = "/metrics"

	// UserHeader is set on every request forwarded upstream
	UserHeader = "X-Forwarded-User"
)

// AsHandler forwards every authenticated request to upstream. The realm
// endpoints are served locally and metrics, when not nil, is exposed
// without authentication at MetricsPath.
func AsHandler(ctx context.Context, upstream *url.URL, realm *api.Realm, metrics http.Handler) http.Handler {
	log := logutil.Component(ctx, "proxy")
	router := realm.Routes()
	// anything that is not an exact local route belongs to upstream
	router.HandleMethodNotAllowed = false
	router.HandleOPTIONS = false
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	if metrics != nil {
		router.Handler("GET", MetricsPath, metrics)
	}

	upstreamProxy := httputil.NewSingleHostReverseProxy(upstream)
	director := upstreamProxy.Director
	upstreamProxy.Director = func(r *http.Request) {
		director(r)
		// credentials stay at the edge
		r.Header.Del("Authorization")
		r.Header.Set(UserHeader, api.UserFromContext(r.Context()))
	}
	upstreamProxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error().Err(err).Str("upstream", upstream.String()).Msg("Unable to reach upstream")
		w.WriteHeader(http.StatusBadGateway)
	}

	// delegate to upstream if not found
	router.NotFound = realm.Protect(upstreamProxy)
	return router
}
