package cmdflags

import (
	"time"

	"github.com/urfave/cli/v2"
)

func UserDB(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "db",
		Aliases:     []string{"users", "d"},
		Usage:       "Path to the file holding the users",
		EnvVars:     []string{"BACKSTAGE_USERS"},
		Destination: out,
		Value:       *out,
		Required:    len(*out) == 0,
	}
}

func Username(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "username",
		Aliases:     []string{"u", "user"},
		Usage:       "Name of the user",
		Destination: out,
		Required:    true,
	}
}

func IdleTimeout(out *time.Duration) cli.Flag {
	if *out == 0 {
		*out = time.Minute * 5
	}
	return &cli.DurationFlag{
		Name:        "idle-timeout",
		Usage:       "Tokens not used for longer than this are expired",
		EnvVars:     []string{"BACKSTAGE_IDLE_TIMEOUT"},
		Destination: out,
		Value:       *out,
	}
}

func MaxLifetime(out *time.Duration) cli.Flag {
	if *out == 0 {
		*out = time.Hour
	}
	return &cli.DurationFlag{
		Name:        "max-lifetime",
		Usage:       "Tokens older than this are expired even if they are in use",
		EnvVars:     []string{"BACKSTAGE_MAX_LIFETIME"},
		Destination: out,
		Value:       *out,
	}
}

func Bind(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "localhost:7007"
	}
	return &cli.StringFlag{
		Name:        "bind",
		Usage:       "Address to bind for incoming request",
		EnvVars:     []string{"BACKSTAGE_BIND"},
		Destination: out,
		Value:       *out,
	}
}

func Upstream(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "upstream",
		Usage:       "Base endpoint which receives the authenticated requests",
		EnvVars:     []string{"BACKSTAGE_UPSTREAM"},
		Destination: out,
		Value:       *out,
		Required:    true,
	}
}

func LogLevel(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = "info"
	}
	return &cli.StringFlag{
		Name:        "log-level",
		Usage:       "One of trace, debug, info, warn or error",
		EnvVars:     []string{"BACKSTAGE_LOG_LEVEL"},
		Destination: out,
		Value:       *out,
	}
}

func Bolt(out *bool) cli.Flag {
	return &cli.BoolFlag{
		Name:        "bolt",
		Usage:       "Keep the users in a bbolt file instead of sqlite",
		EnvVars:     []string{"BACKSTAGE_BOLT"},
		Destination: out,
		Value:       *out,
	}
}
