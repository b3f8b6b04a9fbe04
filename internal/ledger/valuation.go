package ledger

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// PriceOracle supplies the current price of a symbol. The ledger never fetches
// prices itself.
type PriceOracle interface {
	Price(symbol string) (decimal.Decimal, bool)
}

// PriceFunc adapts a function to PriceOracle
type PriceFunc func(symbol string) (decimal.Decimal, bool)

// Price implements PriceOracle
func (f PriceFunc) Price(symbol string) (decimal.Decimal, bool) {
	return f(symbol)
}

// Prices is a fixed symbol -> price table
type Prices map[string]decimal.Decimal

// Price implements PriceOracle
func (p Prices) Price(symbol string) (decimal.Decimal, bool) {
	price, ok := p[symbol]
	return price, ok
}

// priceOf falls back to the position's last execution price when the oracle
// has nothing for the symbol.
func priceOf(oracle PriceOracle, p models.Position) decimal.Decimal {
	if oracle != nil {
		if price, ok := oracle.Price(p.Symbol); ok {
			return price
		}
	}
	return p.LastPrice
}

// TotalValue returns cash + sum(quantity * oracle price). Stored last prices
// are not modified.
func (l *Ledger) TotalValue(oracle PriceOracle) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := l.cash
	for _, p := range l.positions {
		total = total.Add(priceOf(oracle, p).Mul(decimal.NewFromInt(p.Quantity)))
	}
	return total
}

// RefreshPrices stores the oracle price as LastPrice on every held position the
// oracle knows about and returns how many were updated.
func (l *Ledger) RefreshPrices(oracle PriceOracle) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	updated := 0
	for symbol, p := range l.positions {
		price, ok := oracle.Price(symbol)
		if !ok || !price.IsPositive() {
			continue
		}
		p.LastPrice = price
		l.positions[symbol] = p
		updated++
	}
	return updated
}

// Summary values the ledger with oracle prices without modifying it
func (l *Ledger) Summary(oracle PriceOracle) models.PortfolioSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := models.PortfolioSummary{
		CashBalance:   l.cash,
		InitialCash:   l.initialCash,
		MarketValue:   decimal.Zero,
		CostBasis:     decimal.Zero,
		UnrealizedPnl: decimal.Zero,
		RealizedPnl:   decimal.Zero,
		Positions:     []models.PositionView{},
	}
	for _, p := range l.sortedPositions() {
		p.LastPrice = priceOf(oracle, p)
		view := p.View()
		s.Positions = append(s.Positions, view)
		s.MarketValue = s.MarketValue.Add(view.MarketValue)
		s.CostBasis = s.CostBasis.Add(p.CostBasis())
		s.UnrealizedPnl = s.UnrealizedPnl.Add(view.UnrealizedPnl)
	}
	for _, tx := range l.transactions {
		s.RealizedPnl = s.RealizedPnl.Add(tx.RealizedPnL())
	}
	s.TotalValue = s.CashBalance.Add(s.MarketValue)
	return s
}
