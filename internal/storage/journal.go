package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Trade is one audited ledger mutation.
type Trade struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"index"`
	Action    string // "DEPOSIT", "BUY", "SELL"
	Asset     string
	Amount    decimal.Decimal `gorm:"type:text"` // cash moved, USD
	Qty       decimal.Decimal `gorm:"type:text"`
	Price     decimal.Decimal `gorm:"type:text"` // unit price at execution, USD
	CreatedAt time.Time
}

// Journal is the append-only sqlite audit log of wallet mutations.
type Journal struct {
	db *gorm.DB
}

// NewJournal opens (and migrates) the journal database.
func NewJournal(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.AutoMigrate(&Trade{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends one audit row.
func (j *Journal) Record(username, action, asset string, amount, qty, price decimal.Decimal) error {
	return j.db.Create(&Trade{
		Username: username,
		Action:   action,
		Asset:    asset,
		Amount:   amount,
		Qty:      qty,
		Price:    price,
	}).Error
}

// Recent returns the newest trades for an account, newest first.
func (j *Journal) Recent(username string, limit int) ([]Trade, error) {
	var trades []Trade
	err := j.db.Where("username = ?", username).
		Order("id DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}
