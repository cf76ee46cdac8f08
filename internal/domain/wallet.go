package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Wallet is the per-account ledger: a cash balance plus the crypto positions
// bought with it. Holdings and CostBasis always carry the same key set; a key
// enters both on the first buy and leaves both on the full-liquidation sell.
type Wallet struct {
	Balance   decimal.Decimal
	Holdings  map[string]decimal.Decimal
	CostBasis map[string]decimal.Decimal
}

// NewWallet creates an empty wallet with a zero balance.
func NewWallet() *Wallet {
	return &Wallet{
		Balance:   decimal.Zero,
		Holdings:  make(map[string]decimal.Decimal),
		CostBasis: make(map[string]decimal.Decimal),
	}
}

// Deposit adds cash to the balance. The amount must be strictly positive.
func (w *Wallet) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	w.Balance = w.Balance.Add(amount)
	return nil
}

// Buy spends money on an asset at the given unit price, merging into any
// existing position. Spending the entire balance is allowed.
func (w *Wallet) Buy(asset string, money, price decimal.Decimal) error {
	if !money.IsPositive() {
		return ErrInvalidAmount
	}
	// A non-positive price cannot come from a well-formed table; refuse the
	// trade rather than divide by it.
	if !price.IsPositive() {
		return ErrUnknownAsset
	}
	if money.GreaterThan(w.Balance) {
		return ErrInsufficientBalance
	}

	w.Balance = w.Balance.Sub(money)
	w.Holdings[asset] = w.Holdings[asset].Add(money.Div(price))
	w.CostBasis[asset] = w.CostBasis[asset].Add(money)
	return nil
}

// Sell liquidates the whole position in an asset at the given unit price and
// returns the proceeds credited to the balance.
func (w *Wallet) Sell(asset string, price decimal.Decimal) (decimal.Decimal, error) {
	qty, ok := w.Holdings[asset]
	if !ok {
		return decimal.Zero, ErrNoPosition
	}

	proceeds := qty.Mul(price)
	w.Balance = w.Balance.Add(proceeds)
	delete(w.Holdings, asset)
	delete(w.CostBasis, asset)
	return proceeds, nil
}

// Holds reports whether the wallet has a position in the asset.
func (w *Wallet) Holds(asset string) bool {
	_, ok := w.Holdings[asset]
	return ok
}

// Assets returns the held asset codes in sorted order.
func (w *Wallet) Assets() []string {
	assets := make([]string, 0, len(w.Holdings))
	for asset := range w.Holdings {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Summary renders the balance and every held position.
func (w *Wallet) Summary() string {
	var sb strings.Builder
	sb.WriteString("Current balance: ")
	sb.WriteString(w.Balance.StringFixed(2))
	for _, asset := range w.Assets() {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%-6s %s", asset, w.Holdings[asset].StringFixed(2)))
	}
	return sb.String()
}

// Winnings computes balance - cost basis + current market value over the
// positions that carry a price. Positions missing from the table are left out
// of the figure entirely and returned, sorted, so callers can surface the gap.
func (w *Wallet) Winnings(prices map[string]decimal.Decimal) (decimal.Decimal, []string) {
	total := w.Balance
	var unpriced []string
	for _, asset := range w.Assets() {
		price, ok := prices[asset]
		if !ok {
			unpriced = append(unpriced, asset)
			continue
		}
		total = total.Sub(w.CostBasis[asset]).Add(w.Holdings[asset].Mul(price))
	}
	return total, unpriced
}

// Clone returns a deep copy, used for snapshot encoding off the live wallet.
func (w *Wallet) Clone() *Wallet {
	c := NewWallet()
	c.Balance = w.Balance
	for asset, qty := range w.Holdings {
		c.Holdings[asset] = qty
	}
	for asset, cost := range w.CostBasis {
		c.CostBasis[asset] = cost
	}
	return c
}
