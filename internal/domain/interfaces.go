package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource exposes the current market price table: asset code -> USD price.
type PriceSource interface {
	Prices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// TradeRecorder persists an audit row for a successful ledger mutation.
type TradeRecorder interface {
	Record(username, action, asset string, amount, qty, price decimal.Decimal) error
}

// AccountSaver schedules a persistence pass over an account snapshot.
type AccountSaver interface {
	SaveAsync(accounts []*Account)
}
