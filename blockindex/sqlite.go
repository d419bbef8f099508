package blockindex

import (
	"errors"
	"fmt"

	"github.com/govm-net/contractvm/core"
	"github.com/govm-net/contractvm/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBBlock represents a block header row
type DBBlock struct {
	gorm.Model
	Height   uint64 `gorm:"uniqueIndex;not null"`
	Time     int64  `gorm:"not null"`
	Hash     string `gorm:"size:66;not null"`
	Coinbase string `gorm:"size:42"`
}

// TableName specifies the table name for DBBlock
func (DBBlock) TableName() string {
	return "blocks"
}

func (b *DBBlock) header() *types.BlockHeader {
	return &types.BlockHeader{
		Number:   b.Height,
		Hash:     core.HashFromString(b.Hash),
		Time:     b.Time,
		Coinbase: core.AddressFromString(b.Coinbase),
	}
}

// SQLite stores block headers in a sqlite file through gorm
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens or creates the index at path
func OpenSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open block index: %w", err)
	}
	if err := db.AutoMigrate(&DBBlock{}); err != nil {
		return nil, fmt.Errorf("failed to migrate block index: %w", err)
	}
	return &SQLite{db: db}, nil
}

// BlockHeader implements types.BlockIndex
func (s *SQLite) BlockHeader(number uint64) (*types.BlockHeader, error) {
	var block DBBlock
	result := s.db.Where("height = ?", number).First(&block)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", number, result.Error)
	}
	return block.header(), nil
}

func (s *SQLite) Latest() (*types.BlockHeader, error) {
	return latest(s.db)
}

func latest(tx *gorm.DB) (*types.BlockHeader, error) {
	var block DBBlock
	result := tx.Order("height desc").First(&block)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get latest block: %w", result.Error)
	}
	return block.header(), nil
}

func (s *SQLite) Append(hdr types.BlockHeader) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		prev, err := latest(tx)
		if err != nil {
			return err
		}
		if err := checkNext(prev, hdr); err != nil {
			return err
		}
		block := DBBlock{
			Height:   hdr.Number,
			Time:     hdr.Time,
			Hash:     hdr.Hash.String(),
			Coinbase: hdr.Coinbase.String(),
		}
		if err := tx.Create(&block).Error; err != nil {
			return fmt.Errorf("failed to store block %d: %w", hdr.Number, err)
		}
		return nil
	})
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
