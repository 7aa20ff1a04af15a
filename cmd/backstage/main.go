package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/backstage/cmd/backstage/serve"
	"github.com/andrebq/backstage/cmd/backstage/users"
	"github.com/andrebq/backstage/internal/cmdflags"
	"github.com/andrebq/backstage/internal/logutil"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var level string
	var pretty bool
	app := &cli.App{
		Name:  "backstage",
		Usage: "Keep your services behind a password and a short lived token",
		Flags: []cli.Flag{
			cmdflags.LogLevel(&level),
			&cli.BoolFlag{
				Name:        "pretty-log",
				Usage:       "Write human friendly logs to stderr instead of JSON",
				Destination: &pretty,
			},
		},
		Before: func(ctx *cli.Context) error {
			return logutil.Setup(level, pretty)
		},
		Commands: []*cli.Command{
			users.Cmd(),
			serve.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
