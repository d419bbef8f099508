// Package leveldb implements the repository Database on goleveldb.
package leveldb

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/govm-net/contractvm/repository"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

func init() {
	repository.Register(repository.LevelDBBackend, func(params map[string]any) (repository.Database, error) {
		path, _ := params["path"].(string)
		return New(path)
	})
}

// Database wraps a goleveldb handle
type Database struct {
	db *leveldb.DB
}

// New opens the database at path; an empty path opens an in-memory store
func New(path string) (*Database, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create leveldb directory: %w", err)
		}
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		slog.Error("failed to open leveldb", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &Database{db: db}, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	v, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, repository.ErrNotFound
	}
	return v, err
}

func (d *Database) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

func (d *Database) Put(key, value []byte) error {
	return d.db.Put(key, value, nil)
}

func (d *Database) Delete(key []byte) error {
	return d.db.Delete(key, nil)
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) NewBatch() repository.Batch {
	return &batch{db: d.db, b: new(leveldb.Batch)}
}

type batch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *batch) Put(key, value []byte) error {
	b.b.Put(key, value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	return nil
}

func (b *batch) Write() error {
	if err := b.db.Write(b.b, &opt.WriteOptions{Sync: true}); err != nil {
		return err
	}
	b.b.Reset()
	return nil
}
