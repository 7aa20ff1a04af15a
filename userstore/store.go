// Package userstore keeps username to password-hash records on a durable
// table.
//
// A Store is created in one of three modes (existing backend, sqlite file,
// or in-memory sqlite) and must be initialized before use. Initialization
// happens in the background, callers wait on the returned *Init.
package userstore

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/andrebq/backstage/credential"
	"github.com/andrebq/backstage/internal/logutil"
	"github.com/andrebq/backstage/passwd"
)

type (
	Mode int

	Options struct {
		Mode Mode
		// Path to the sqlite database, used by ModePath
		Path string
		// Backend used by ModeExistingHandle, ownership stays with the caller
		Backend Backend
		// Table defaults to "users"
		Table string
		// Hasher defaults to passwd.DefaultParams
		Hasher *passwd.Hasher
	}

	Store struct {
		opts   Options
		hasher *passwd.Hasher

		// set by FromBoltFile, the store closes the backend it was given
		ownBackend bool

		mu      sync.RWMutex
		state   State
		backend Backend
		owned   bool
		table   Table

		decoyOnce sync.Once
		decoy     string
	}
)

const (
	ModeExistingHandle Mode = iota + 1
	ModePath
	ModeInMemory

	DefaultTable = "users"
)

func (m Mode) String() string {
	switch m {
	case ModeExistingHandle:
		return "existing-handle"
	case ModePath:
		return "path"
	case ModeInMemory:
		return "in-memory"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func New(opts Options) (*Store, error) {
	switch opts.Mode {
	case ModeExistingHandle:
		if opts.Backend == nil {
			return nil, InvalidConfiguration{Reason: "existing handle mode requires a backend"}
		}
	case ModePath:
		if opts.Path == "" {
			return nil, InvalidConfiguration{Reason: "path mode requires a path"}
		}
	case ModeInMemory:
	default:
		return nil, InvalidConfiguration{Reason: fmt.Sprintf("unrecognized mode %v", opts.Mode)}
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if err := validTableName(opts.Table); err != nil {
		return nil, err
	}
	if opts.Hasher == nil {
		opts.Hasher = passwd.New(passwd.DefaultParams)
	}
	return &Store{opts: opts, hasher: opts.Hasher}, nil
}

func FromBackend(b Backend) (*Store, error) {
	return New(Options{Mode: ModeExistingHandle, Backend: b})
}

// FromBoltFile opens the bbolt database at path right away, to fail early
// when another process holds it. The store owns the database.
func FromBoltFile(path string) (*Store, error) {
	b, err := OpenBolt(path)
	if err != nil {
		return nil, err
	}
	s, err := New(Options{Mode: ModeExistingHandle, Backend: b})
	if err != nil {
		b.Close()
		return nil, err
	}
	s.ownBackend = true
	return s, nil
}

func FromPath(path string) (*Store, error) {
	return New(Options{Mode: ModePath, Path: path})
}

func InMemory() (*Store, error) {
	return New(Options{Mode: ModeInMemory})
}

// Initialize opens the backing storage and the users table in the
// background. Only the first call does any work, later calls return an
// Init that already failed with ErrAlreadyInitialized.
func (s *Store) Initialize(ctx context.Context) *Init {
	s.mu.Lock()
	if s.state != Uninitialized {
		s.mu.Unlock()
		return failedInit(ErrAlreadyInitialized)
	}
	s.state = OpeningBacking
	s.mu.Unlock()

	in := newInit()
	go func() {
		in.finish(s.initialize(ctx))
	}()
	return in
}

func (s *Store) initialize(ctx context.Context) error {
	log := logutil.Component(ctx, "userstore")
	backend := s.opts.Backend
	owned := s.ownBackend
	var err error
	switch s.opts.Mode {
	case ModePath:
		backend, err = OpenSQLite(ctx, s.opts.Path)
		owned = true
	case ModeInMemory:
		backend, err = OpenSQLiteMemory(ctx)
		owned = true
	}
	if err != nil {
		s.advance(Failed)
		return fmt.Errorf("unable to open backing storage, cause %w", err)
	}
	release := func() {
		if owned {
			backend.Close()
		}
	}

	if !s.advance(OpeningTable) {
		release()
		return ErrClosed
	}
	table, err := backend.OpenTable(ctx, s.opts.Table)
	if err != nil {
		release()
		s.advance(Failed)
		return fmt.Errorf("unable to open table %v, cause %w", s.opts.Table, err)
	}

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		release()
		return ErrClosed
	}
	s.backend, s.owned, s.table = backend, owned, table
	s.state = Ready
	s.mu.Unlock()
	log.Debug().Str("table", s.opts.Table).Str("mode", s.opts.Mode.String()).Msg("User store ready")
	return nil
}

// advance moves to st unless the store was closed in the meantime
func (s *Store) advance(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return false
	}
	s.state = st
	return true
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) ready() (Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case Ready:
		return s.table, nil
	case Closed:
		return nil, ErrClosed
	}
	return nil, ErrNotReady
}

// AddUser creates or overwrites username with a freshly salted hash of password
func (s *Store) AddUser(ctx context.Context, username, password string) error {
	table, err := s.ready()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password, "")
	if err != nil {
		return err
	}
	err = table.Set(ctx, Record{Username: username, PasswordHash: hash})
	if err != nil {
		return err
	}
	return table.Persist(ctx)
}

// RemoveUser deletes username, removing an absent user is not an error
func (s *Store) RemoveUser(ctx context.Context, username string) error {
	table, err := s.ready()
	if err != nil {
		return err
	}
	err = table.Remove(ctx, username)
	if err != nil {
		return err
	}
	return table.Persist(ctx)
}

func (s *Store) HasUser(ctx context.Context, username string) (bool, error) {
	table, err := s.ready()
	if err != nil {
		return false, err
	}
	_, found, err := table.Get(ctx, username)
	return found, err
}

func (s *Store) CheckUser(ctx context.Context, username, password string) (bool, error) {
	table, err := s.ready()
	if err != nil {
		return false, err
	}
	rec, found, err := table.Get(ctx, username)
	if err != nil {
		return false, err
	}
	if !found {
		s.hashDecoy(password)
		return false, nil
	}
	computed, err := s.hasher.Hash(password, rec.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("unable to verify user %v, cause %w", username, err)
	}
	return passwd.Equal(computed, rec.PasswordHash), nil
}

// hashDecoy spends the same time as a real check, so unknown users cannot
// be told apart from wrong passwords.
func (s *Store) hashDecoy(password string) {
	s.decoyOnce.Do(func() {
		s.decoy, _ = s.hasher.Hash("", "")
	})
	if s.decoy != "" {
		s.hasher.Hash(password, s.decoy)
	}
}

// CheckHeader validates a Basic authorization header and returns the
// username when the credentials match, or an empty string otherwise.
// Malformed headers are returned as credential.MalformedHeader.
func (s *Store) CheckHeader(ctx context.Context, header string) (string, error) {
	username, password, err := credential.DecodeBasic(header)
	if err != nil {
		return "", err
	}
	ok, err := s.CheckUser(ctx, username, password)
	if err != nil || !ok {
		return "", err
	}
	return username, nil
}

func (s *Store) CheckRequest(r *http.Request) (string, error) {
	return s.CheckHeader(r.Context(), r.Header.Get("Authorization"))
}

// Close releases the backing storage if the store opened it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		// a running initialize releases what it opened
		neverOpened := s.state == Uninitialized
		s.state = Closed
		if neverOpened && s.ownBackend {
			return s.opts.Backend.Close()
		}
		return nil
	}
	s.state = Closed
	if !s.owned {
		return nil
	}
	return s.backend.Close()
}
