package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade type constants
const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

// Transaction is an immutable record of an executed buy or sell
type Transaction struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	TradeType string          `json:"trade_type"`
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	// CostBasis is the average cost per share held just before a sell.
	// It is zero for buys.
	CostBasis  decimal.Decimal `json:"cost_basis"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// IsBuy reports whether the transaction is a buy
func (t Transaction) IsBuy() bool {
	return t.TradeType == TradeTypeBuy
}

// IsSell reports whether the transaction is a sell
func (t Transaction) IsSell() bool {
	return t.TradeType == TradeTypeSell
}

// RealizedPnL returns (price - cost basis) * quantity for sells, zero for buys
func (t Transaction) RealizedPnL() decimal.Decimal {
	if !t.IsSell() {
		return decimal.Zero
	}
	return t.Price.Sub(t.CostBasis).Mul(decimal.NewFromInt(t.Quantity))
}

// CashDelta returns the signed cash effect of the transaction
func (t Transaction) CashDelta() decimal.Decimal {
	if t.IsBuy() {
		return t.Total.Neg()
	}
	return t.Total
}
