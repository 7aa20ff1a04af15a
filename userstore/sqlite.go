package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type (
	SQLite struct {
		db    *sql.DB
		owned bool
	}

	sqliteTable struct {
		db   *sql.DB
		name string
	}
)

// OpenSQLite opens (or creates) the database file at dbfile.
func OpenSQLite(ctx context.Context, dbfile string) (*SQLite, error) {
	err := os.MkdirAll(filepath.Dir(dbfile), 0755)
	if err != nil {
		return nil, fmt.Errorf("unable to create directory to store %v, cause %w", dbfile, err)
	}
	return openSQLite(ctx, fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&mode=rwc", dbfile), 0)
}

// OpenSQLiteMemory creates a private in-memory database, each call
// returns a new database even within the same process.
func OpenSQLiteMemory(ctx context.Context) (*SQLite, error) {
	// a single connection keeps the shared-cache database alive
	// and avoids table locks between connections
	return openSQLite(ctx, fmt.Sprintf("file:%v?mode=memory&cache=shared", uuid.NewString()), 1)
}

// NewSQLite wraps a database handle owned by the caller,
// Close on the returned value will not close db.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func openSQLite(ctx context.Context, connstr string, maxConns int) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", connstr, err)
	}
	if maxConns > 0 {
		conn.SetMaxOpenConns(maxConns)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping %v, cause %w", connstr, err)
	}
	return &SQLite{db: conn, owned: true}, nil
}

func (s *SQLite) OpenTable(ctx context.Context, name string) (Table, error) {
	if err := validTableName(name); err != nil {
		return nil, err
	}
	for _, cmd := range []string{
		fmt.Sprintf(`create table if not exists %v(
			username text not null primary key,
			user_hash64 integer not null,
			password_hash text not null
		)`, name),
		fmt.Sprintf(`create index if not exists idx_%v_user_hash64
			on %v(user_hash64)`, name, name),
	} {
		_, err := s.db.ExecContext(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("unable to prepare table %v, cause %w", name, err)
		}
	}
	return &sqliteTable{db: s.db, name: name}, nil
}

func (s *SQLite) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (t *sqliteTable) Get(ctx context.Context, username string) (Record, bool, error) {
	var hash string
	err := t.db.QueryRowContext(ctx, fmt.Sprintf(`select password_hash from %v where user_hash64 = ? and username = ?`, t.name),
		userHash(username), username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	} else if err != nil {
		return Record{}, false, fmt.Errorf("unable to load user %v, cause %w", username, err)
	}
	return Record{Username: username, PasswordHash: hash}, true, nil
}

func (t *sqliteTable) Set(ctx context.Context, rec Record) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(`insert into %v(username, user_hash64, password_hash) values (?, ?, ?)
		on conflict (username) do update set password_hash = excluded.password_hash`, t.name),
		rec.Username, userHash(rec.Username), rec.PasswordHash)
	if err != nil {
		return fmt.Errorf("unable to store user %v, cause %w", rec.Username, err)
	}
	return nil
}

func (t *sqliteTable) Remove(ctx context.Context, username string) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(`delete from %v where user_hash64 = ? and username = ?`, t.name),
		userHash(username), username)
	if err != nil {
		return fmt.Errorf("unable to remove user %v, cause %w", username, err)
	}
	return nil
}

func (t *sqliteTable) Persist(ctx context.Context) error {
	// no-op for journal modes other than wal
	_, err := t.db.ExecContext(ctx, `pragma wal_checkpoint(full)`)
	if err != nil {
		return fmt.Errorf("unable to checkpoint table %v, cause %w", t.name, err)
	}
	return nil
}

func userHash(username string) int64 {
	return int64(xxhash.Sum64String(username))
}
