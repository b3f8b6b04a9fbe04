package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a current stock holding inside a ledger
type Position struct {
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	LastPrice   decimal.Decimal `json:"last_price"`
	OpenedAt    time.Time       `json:"opened_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MarketValue returns quantity * last price
func (p Position) MarketValue() decimal.Decimal {
	return p.LastPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// CostBasis returns quantity * average cost
func (p Position) CostBasis() decimal.Decimal {
	return p.AverageCost.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedPnL returns (last price - average cost) * quantity
func (p Position) UnrealizedPnL() decimal.Decimal {
	return p.LastPrice.Sub(p.AverageCost).Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedPnLPct returns the unrealized gain as a percentage of the cost basis
func (p Position) UnrealizedPnLPct() decimal.Decimal {
	if p.AverageCost.IsZero() {
		return decimal.Zero
	}
	return p.LastPrice.Sub(p.AverageCost).Div(p.AverageCost).Mul(decimal.NewFromInt(100)).Round(2)
}

// PositionView is the JSON shape of a position with its derived values
type PositionView struct {
	Position
	MarketValue      decimal.Decimal `json:"market_value"`
	UnrealizedPnl    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnlPct decimal.Decimal `json:"unrealized_pnl_pct"`
}

// View returns the position together with its computed fields
func (p Position) View() PositionView {
	return PositionView{
		Position:         p,
		MarketValue:      p.MarketValue(),
		UnrealizedPnl:    p.UnrealizedPnL(),
		UnrealizedPnlPct: p.UnrealizedPnLPct(),
	}
}
