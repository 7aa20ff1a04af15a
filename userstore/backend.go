package userstore

import (
	"context"
	"regexp"
)

type (
	Record struct {
		Username     string
		PasswordHash string
	}

	// Backend opens logical tables that hold user records.
	// OpenTable must be idempotent: opening an existing table keeps its rows.
	Backend interface {
		OpenTable(ctx context.Context, name string) (Table, error)
		Close() error
	}

	// Table is a set of records keyed by username.
	// Set and Remove are committed before they return, Persist flushes
	// committed data to durable storage.
	Table interface {
		Get(ctx context.Context, username string) (Record, bool, error)
		Set(ctx context.Context, rec Record) error
		Remove(ctx context.Context, username string) error
		Persist(ctx context.Context) error
	}
)

var (
	reValidIdentifiers = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

func validTableName(name string) error {
	if !reValidIdentifiers.MatchString(name) {
		return InvalidConfiguration{Reason: "invalid table name " + name}
	}
	return nil
}
