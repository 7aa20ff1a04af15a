package serve

import (
	"fmt"
	"net/url"
	"time"

	"github.com/andrebq/backstage/guard"
	"github.com/andrebq/backstage/guard/api"
	"github.com/andrebq/backstage/internal/cmdflags"
	"github.com/andrebq/backstage/internal/httpserver"
	"github.com/andrebq/backstage/internal/logutil"
	"github.com/andrebq/backstage/internal/metrics"
	"github.com/andrebq/backstage/internal/proxy"
	"github.com/andrebq/backstage/session"
	"github.com/andrebq/backstage/userstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	var dbfile string
	var useBolt bool
	var bindAddr string
	var upstream string
	var realmName string
	var idle time.Duration
	var maxLifetime time.Duration
	return &cli.Command{
		Name:  "serve",
		Usage: "Start a reverse proxy which only lets authenticated requests through",
		Flags: []cli.Flag{
			cmdflags.UserDB(&dbfile),
			cmdflags.Bolt(&useBolt),
			cmdflags.Bind(&bindAddr),
			cmdflags.Upstream(&upstream),
			cmdflags.IdleTimeout(&idle),
			cmdflags.MaxLifetime(&maxLifetime),
			&cli.StringFlag{
				Name:        "realm",
				Usage:       "Realm name sent to clients in WWW-Authenticate",
				Value:       "backstage",
				Destination: &realmName,
			},
		},
		Action: func(ctx *cli.Context) error {
			log := logutil.Component(ctx.Context, "serve")
			upstreamURL, err := url.Parse(upstream)
			if err != nil {
				return fmt.Errorf("unable to parse upstream %v, cause %w", upstream, err)
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			recorder, err := metrics.New(reg)
			if err != nil {
				return err
			}

			var store *userstore.Store
			if useBolt {
				store, err = userstore.FromBoltFile(dbfile)
			} else {
				store, err = userstore.FromPath(dbfile)
			}
			if err != nil {
				return err
			}
			cache, err := session.New(ctx.Context, idle, maxLifetime, session.WithObserver(recorder))
			if err != nil {
				store.Close()
				return err
			}
			g := guard.New(store, cache).WithRecorder(recorder)
			defer g.Destroy()

			err = g.Initialize(ctx.Context).Wait(ctx.Context)
			if err != nil {
				return err
			}
			log.Info().Str("users", dbfile).Str("upstream", upstreamURL.String()).
				Dur("idle", idle).Dur("maxLifetime", maxLifetime).
				Msg("User store ready")

			realm := api.NewRealm(realmName, g)
			handler := proxy.AsHandler(ctx.Context, upstreamURL, realm,
				promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
			return httpserver.Serve(ctx.Context, bindAddr, handler)
		},
	}
}
