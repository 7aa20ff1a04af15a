package userstore

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

type (
	Bolt struct {
		db    *bolt.DB
		owned bool
	}

	boltTable struct {
		db     *bolt.DB
		bucket []byte
	}
)

func OpenBolt(dbfile string) (*Bolt, error) {
	db, err := bolt.Open(dbfile, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", dbfile, err)
	}
	return &Bolt{db: db, owned: true}, nil
}

// NewBolt wraps a database handle owned by the caller
func NewBolt(db *bolt.DB) *Bolt {
	return &Bolt{db: db}
}

func (b *Bolt) OpenTable(ctx context.Context, name string) (Table, error) {
	if err := validTableName(name); err != nil {
		return nil, err
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create bucket %v, cause %w", name, err)
	}
	return &boltTable{db: b.db, bucket: []byte(name)}, nil
}

func (b *Bolt) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

func (t *boltTable) Get(ctx context.Context, username string) (Record, bool, error) {
	var rec Record
	var found bool
	err := t.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(t.bucket).Get([]byte(username))
		if val == nil {
			return nil
		}
		found = true
		rec = Record{Username: username, PasswordHash: string(val)}
		return nil
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("unable to load user %v, cause %w", username, err)
	}
	return rec, found, nil
}

func (t *boltTable) Set(ctx context.Context, rec Record) error {
	err := t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(t.bucket).Put([]byte(rec.Username), []byte(rec.PasswordHash))
	})
	if err != nil {
		return fmt.Errorf("unable to store user %v, cause %w", rec.Username, err)
	}
	return nil
}

func (t *boltTable) Remove(ctx context.Context, username string) error {
	err := t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(t.bucket).Delete([]byte(username))
	})
	if err != nil {
		return fmt.Errorf("unable to remove user %v, cause %w", username, err)
	}
	return nil
}

func (t *boltTable) Persist(ctx context.Context) error {
	return t.db.Sync()
}
