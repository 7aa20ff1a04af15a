package users

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrebq/backstage/internal/cmdflags"
	"github.com/andrebq/backstage/userstore"
	"github.com/urfave/cli/v2"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func Cmd() *cli.Command {
	var store *userstore.Store
	var dbfile string
	var useBolt bool
	return &cli.Command{
		Name:  "users",
		Usage: "Manage the users allowed to pass through backstage",
		Flags: []cli.Flag{
			cmdflags.UserDB(&dbfile),
			cmdflags.Bolt(&useBolt),
		},
		Before: func(ctx *cli.Context) error {
			var err error
			if useBolt {
				store, err = userstore.FromBoltFile(dbfile)
			} else {
				store, err = userstore.FromPath(dbfile)
			}
			if err != nil {
				return err
			}
			return store.Initialize(ctx.Context).Wait(ctx.Context)
		},
		After: func(ctx *cli.Context) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
		Subcommands: []*cli.Command{
			addCmd(&store),
			removeCmd(&store),
			hasCmd(&store),
			checkCmd(&store),
		},
	}
}

func addCmd(store **userstore.Store) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "add",
		Usage: "Add or replace a user (password is read from stdin)",
		Flags: []cli.Flag{
			cmdflags.Username(&username),
		},
		Action: func(ctx *cli.Context) error {
			password, err := readPassword(ctx.App.Reader)
			if err != nil {
				return err
			}
			return (*store).AddUser(ctx.Context, username, password)
		},
	}
}

func removeCmd(store **userstore.Store) *cli.Command {
	var username string
	return &cli.Command{
		Name:    "remove",
		Aliases: []string{"rm"},
		Usage:   "Remove a user, removing an unknown user is not an error",
		Flags: []cli.Flag{
			cmdflags.Username(&username),
		},
		Action: func(ctx *cli.Context) error {
			return (*store).RemoveUser(ctx.Context, username)
		},
	}
}

func hasCmd(store **userstore.Store) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "has",
		Usage: "Print true if the user exists",
		Flags: []cli.Flag{
			cmdflags.Username(&username),
		},
		Action: func(ctx *cli.Context) error {
			found, err := (*store).HasUser(ctx.Context, username)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, found)
			return err
		},
	}
}

func checkCmd(store **userstore.Store) *cli.Command {
	var username string
	return &cli.Command{
		Name:  "check",
		Usage: "Check the password (read from stdin) of the given user",
		Flags: []cli.Flag{
			cmdflags.Username(&username),
		},
		Action: func(ctx *cli.Context) error {
			password, err := readPassword(ctx.App.Reader)
			if err != nil {
				return err
			}
			ok, err := (*store).CheckUser(ctx.Context, username, password)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidCredentials
			}
			_, err = fmt.Fprintln(ctx.App.Writer, "ok")
			return err
		},
	}
}

func readPassword(in io.Reader) (string, error) {
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if sc.Err() != nil {
			return "", sc.Err()
		}
		return "", errors.New("missing password from stdin")
	}
	password := strings.TrimRight(sc.Text(), "\r")
	if len(password) == 0 {
		return "", errors.New("missing password from stdin")
	}
	return password, nil
}
