package models

import (
	"github.com/shopspring/decimal"
)

// LedgerSnapshot is the serializable state of a ledger.
// Positions are sorted by symbol, transactions in execution order.
type LedgerSnapshot struct {
	InitialCash  decimal.Decimal `json:"initial_cash"`
	CashBalance  decimal.Decimal `json:"cash_balance"`
	Positions    []Position      `json:"positions"`
	Transactions []Transaction   `json:"transactions"`
}

// PortfolioSummary aggregates the valuation of a ledger at current prices
type PortfolioSummary struct {
	CashBalance   decimal.Decimal `json:"cash_balance"`
	MarketValue   decimal.Decimal `json:"market_value"`
	TotalValue    decimal.Decimal `json:"total_value"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnl   decimal.Decimal `json:"realized_pnl"`
	InitialCash   decimal.Decimal `json:"initial_cash"`
	Positions     []PositionView  `json:"positions"`
}
