package ledger

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// averageCostPlaces is the number of fractional digits kept when re-averaging
// the cost basis after a buy.
const averageCostPlaces = 12

// Ledger tracks the cash balance, open positions and transaction log of one
// simulated trading account. Buy and Sell are serialized; reads may run
// concurrently and always observe a fully applied state.
type Ledger struct {
	mu           sync.RWMutex
	initialCash  decimal.Decimal
	cash         decimal.Decimal
	positions    map[string]models.Position
	transactions []models.Transaction
	nextSeq      int64

	now   func() time.Time
	newID func() string
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the time source used to stamp transactions
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithIDGenerator overrides the transaction ID generator
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) {
		l.newID = newID
	}
}

// New creates an empty ledger funded with initialCash.
// A negative initial cash is rejected with ErrInvalidInput.
func New(initialCash decimal.Decimal, opts ...Option) (*Ledger, error) {
	if initialCash.IsNegative() {
		return nil, &apperrors.TradeError{
			Kind:   apperrors.ErrInvalidInput,
			Reason: "initial cash cannot be negative",
		}
	}
	l := &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]models.Position),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Buy purchases quantity shares of symbol at price.
// It fails with ErrInsufficientFunds when quantity*price exceeds the cash balance
// and with ErrInvalidInput on a bad argument; on failure nothing changes.
func (l *Ledger) Buy(symbol string, quantity int64, price decimal.Decimal) (models.Transaction, error) {
	symbol, err := validateTrade(symbol, quantity, price)
	if err != nil {
		return models.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	qty := decimal.NewFromInt(quantity)
	cost := price.Mul(qty)
	if cost.GreaterThan(l.cash) {
		return models.Transaction{}, &apperrors.TradeError{
			Kind:      apperrors.ErrInsufficientFunds,
			Symbol:    symbol,
			Requested: cost,
			Available: l.cash,
		}
	}

	now := l.now()
	pos, exists := l.positions[symbol]
	if !exists {
		pos = models.Position{
			Symbol:      symbol,
			Quantity:    quantity,
			AverageCost: price,
			OpenedAt:    now,
		}
	} else {
		if pos.Quantity > math.MaxInt64-quantity {
			return models.Transaction{}, &apperrors.TradeError{
				Kind:   apperrors.ErrInvalidInput,
				Symbol: symbol,
				Reason: "position quantity overflow",
			}
		}
		held := decimal.NewFromInt(pos.Quantity)
		// Weighted avg = (held*avg + cost) / (held + qty)
		pos.AverageCost = held.Mul(pos.AverageCost).Add(cost).DivRound(held.Add(qty), averageCostPlaces)
		pos.Quantity += quantity
	}
	pos.LastPrice = price
	pos.UpdatedAt = now

	l.cash = l.cash.Sub(cost)
	l.positions[symbol] = pos
	return l.record(models.TradeTypeBuy, symbol, quantity, price, cost, decimal.Zero, now), nil
}

// Sell disposes of quantity shares of symbol at price.
// It fails with ErrUnknownPosition when nothing is held, ErrInsufficientShares
// when quantity exceeds the holding and ErrInvalidInput on a bad argument.
// The average cost of a surviving position is left unchanged; a position sold
// down to zero is removed.
func (l *Ledger) Sell(symbol string, quantity int64, price decimal.Decimal) (models.Transaction, error) {
	symbol, err := validateTrade(symbol, quantity, price)
	if err != nil {
		return models.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, exists := l.positions[symbol]
	if !exists {
		return models.Transaction{}, &apperrors.TradeError{
			Kind:   apperrors.ErrUnknownPosition,
			Symbol: symbol,
		}
	}
	if quantity > pos.Quantity {
		return models.Transaction{}, &apperrors.TradeError{
			Kind:      apperrors.ErrInsufficientShares,
			Symbol:    symbol,
			Requested: decimal.NewFromInt(quantity),
			Available: decimal.NewFromInt(pos.Quantity),
		}
	}

	now := l.now()
	proceeds := price.Mul(decimal.NewFromInt(quantity))
	costBasis := pos.AverageCost

	pos.Quantity -= quantity
	if pos.Quantity == 0 {
		delete(l.positions, symbol)
	} else {
		pos.LastPrice = price
		pos.UpdatedAt = now
		l.positions[symbol] = pos
	}

	l.cash = l.cash.Add(proceeds)
	return l.record(models.TradeTypeSell, symbol, quantity, price, proceeds, costBasis, now), nil
}

// record appends a transaction. Callers must hold the write lock.
func (l *Ledger) record(tradeType, symbol string, quantity int64, price, total, costBasis decimal.Decimal, at time.Time) models.Transaction {
	l.nextSeq++
	tx := models.Transaction{
		ID:         l.newID(),
		Seq:        l.nextSeq,
		TradeType:  tradeType,
		Symbol:     symbol,
		Quantity:   quantity,
		Price:      price,
		Total:      total,
		CostBasis:  costBasis,
		ExecutedAt: at,
	}
	l.transactions = append(l.transactions, tx)
	return tx
}

// GetPosition returns the open position for symbol, if any
func (l *Ledger) GetPosition(symbol string) (models.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.positions[models.NormalizeSymbol(symbol)]
	return pos, ok
}

// Positions returns all open positions sorted by symbol
func (l *Ledger) Positions() []models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.sortedPositions()
}

func (l *Ledger) sortedPositions() []models.Position {
	positions := make([]models.Position, 0, len(l.positions))
	for _, p := range l.positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}

// CashBalance returns the available cash
func (l *Ledger) CashBalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// InitialCash returns the cash the ledger was funded with
func (l *Ledger) InitialCash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialCash
}

// Transactions returns a copy of the transaction log in execution order
func (l *Ledger) Transactions() []models.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

// TransactionsBySymbol returns the transactions for one symbol in execution order
func (l *Ledger) TransactionsBySymbol(symbol string) []models.Transaction {
	symbol = models.NormalizeSymbol(symbol)

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Transaction
	for _, tx := range l.transactions {
		if tx.Symbol == symbol {
			out = append(out, tx)
		}
	}
	return out
}

// RealizedPnL sums the gain or loss locked in by every sell in the log
func (l *Ledger) RealizedPnL() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range l.transactions {
		total = total.Add(tx.RealizedPnL())
	}
	return total
}

// RealizedPnLBySymbol sums the realized gain or loss for one symbol
func (l *Ledger) RealizedPnLBySymbol(symbol string) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range l.TransactionsBySymbol(symbol) {
		total = total.Add(tx.RealizedPnL())
	}
	return total
}

// Reset returns the ledger to its initial cash with no positions and an empty log
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = l.initialCash
	l.positions = make(map[string]models.Position)
	l.transactions = nil
	l.nextSeq = 0
}

func validateTrade(symbol string, quantity int64, price decimal.Decimal) (string, error) {
	symbol = models.NormalizeSymbol(symbol)
	switch {
	case symbol == "":
		return "", &apperrors.TradeError{Kind: apperrors.ErrInvalidInput, Reason: "symbol is required"}
	case quantity <= 0:
		return "", &apperrors.TradeError{Kind: apperrors.ErrInvalidInput, Symbol: symbol, Reason: "quantity must be positive"}
	case !price.IsPositive():
		return "", &apperrors.TradeError{Kind: apperrors.ErrInvalidInput, Symbol: symbol, Reason: "price must be positive"}
	}
	return symbol, nil
}
