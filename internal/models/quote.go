package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price snapshot supplied by an external price source
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// WatchlistItem is a followed symbol with its last observed quote
type WatchlistItem struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	AddedAt       time.Time       `json:"added_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Quote returns the item's quote snapshot
func (w WatchlistItem) Quote() Quote {
	return Quote{
		Symbol:        w.Symbol,
		Price:         w.Price,
		Change:        w.Change,
		ChangePercent: w.ChangePercent,
		UpdatedAt:     w.UpdatedAt,
	}
}

// NormalizeSymbol trims and upper-cases a ticker symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
