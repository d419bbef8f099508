// Package sqldb implements the repository Database on sqlite through gorm.
package sqldb

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/govm-net/contractvm/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	defaultDBPath = "./state.db"
)

// DBEntry represents one key-value pair in the database
type DBEntry struct {
	Key   []byte `gorm:"column:entry_key;primaryKey"`
	Value []byte `gorm:"column:entry_value;type:blob;not null"`
}

// TableName specifies the table name for DBEntry
func (DBEntry) TableName() string {
	return "kv_entries"
}

func init() {
	repository.Register(repository.SQLiteBackend, func(params map[string]any) (repository.Database, error) {
		path, _ := params["path"].(string)
		return New(path)
	})
}

// Database stores state entries in a sqlite table
type Database struct {
	db *gorm.DB
}

// New opens (and migrates) the sqlite database at path
func New(path string) (*Database, error) {
	if path == "" {
		path = defaultDBPath
	}
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		slog.Error("failed to open database", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&DBEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Database{db: db}, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	var e DBEntry
	result := d.db.Where("entry_key = ?", key).First(&e)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get entry: %w", result.Error)
	}
	return e.Value, nil
}

func (d *Database) Has(key []byte) (bool, error) {
	var count int64
	if err := d.db.Model(&DBEntry{}).Where("entry_key = ?", key).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count entries: %w", err)
	}
	return count > 0, nil
}

func (d *Database) Put(key, value []byte) error {
	return upsert(d.db, key, value)
}

func (d *Database) Delete(key []byte) error {
	if err := d.db.Where("entry_key = ?", key).Delete(&DBEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) NewBatch() repository.Batch {
	return &batch{db: d.db}
}

func upsert(tx *gorm.DB, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value"}),
	}).Create(&DBEntry{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to put entry: %w", err)
	}
	return nil
}

type op struct {
	key    []byte
	value  []byte
	delete bool
}

type batch struct {
	db  *gorm.DB
	ops []op
}

func (b *batch) Put(key, value []byte) error {
	b.ops = append(b.ops, op{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, op{key: append([]byte(nil), key...), delete: true})
	return nil
}

// Write applies all operations in one sqlite transaction
func (b *batch) Write() error {
	err := b.db.Transaction(func(tx *gorm.DB) error {
		for _, o := range b.ops {
			if o.delete {
				if err := tx.Where("entry_key = ?", o.key).Delete(&DBEntry{}).Error; err != nil {
					return fmt.Errorf("failed to delete entry: %w", err)
				}
				continue
			}
			if err := upsert(tx, o.key, o.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ops = nil
	return nil
}
