package ledger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// Snapshot returns a deep copy of the ledger state for persistence
func (l *Ledger) Snapshot() models.LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	txs := make([]models.Transaction, len(l.transactions))
	copy(txs, l.transactions)
	return models.LedgerSnapshot{
		InitialCash:  l.initialCash,
		CashBalance:  l.cash,
		Positions:    l.sortedPositions(),
		Transactions: txs,
	}
}

// Restore rebuilds a ledger from a snapshot. The snapshot is checked against
// every ledger invariant and rejected with ErrInvalidSnapshot if one fails.
func Restore(snap models.LedgerSnapshot, opts ...Option) (*Ledger, error) {
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}

	l, err := New(snap.InitialCash, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSnapshot, err)
	}
	l.cash = snap.CashBalance
	for _, p := range snap.Positions {
		l.positions[p.Symbol] = p
	}
	l.transactions = make([]models.Transaction, len(snap.Transactions))
	copy(l.transactions, snap.Transactions)
	if n := len(snap.Transactions); n > 0 {
		l.nextSeq = snap.Transactions[n-1].Seq
	}
	return l, nil
}

func validateSnapshot(snap models.LedgerSnapshot) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidSnapshot, fmt.Sprintf(format, args...))
	}

	if snap.InitialCash.IsNegative() {
		return invalid("initial cash %s is negative", snap.InitialCash)
	}
	if snap.CashBalance.IsNegative() {
		return invalid("cash balance %s is negative", snap.CashBalance)
	}

	seen := make(map[string]bool, len(snap.Positions))
	for _, p := range snap.Positions {
		switch {
		case p.Symbol == "" || p.Symbol != models.NormalizeSymbol(p.Symbol):
			return invalid("position symbol %q is not normalized", p.Symbol)
		case seen[p.Symbol]:
			return invalid("duplicate position %s", p.Symbol)
		case p.Quantity <= 0:
			return invalid("position %s has quantity %d", p.Symbol, p.Quantity)
		case p.AverageCost.IsNegative():
			return invalid("position %s has negative average cost", p.Symbol)
		}
		seen[p.Symbol] = true
	}

	// The log must account for every cent of cash movement.
	expected := snap.InitialCash
	var lastSeq int64
	for _, tx := range snap.Transactions {
		switch {
		case tx.Seq <= lastSeq:
			return invalid("transaction %s out of order", tx.ID)
		case tx.Quantity <= 0 || !tx.Price.IsPositive():
			return invalid("transaction %s has non-positive quantity or price", tx.ID)
		case !tx.IsBuy() && !tx.IsSell():
			return invalid("transaction %s has unknown type %q", tx.ID, tx.TradeType)
		case !tx.Total.Equal(tx.Price.Mul(decimal.NewFromInt(tx.Quantity))):
			return invalid("transaction %s total does not match quantity * price", tx.ID)
		}
		lastSeq = tx.Seq
		expected = expected.Add(tx.CashDelta())
	}
	if !expected.Equal(snap.CashBalance) {
		return invalid("cash balance %s does not match transaction log (%s)", snap.CashBalance, expected)
	}

	replayed, err := replayPositions(snap.Transactions)
	if err != nil {
		return invalid("%v", err)
	}
	if len(replayed) != len(snap.Positions) {
		return invalid("%d positions stored but transaction log holds %d", len(snap.Positions), len(replayed))
	}
	for _, p := range snap.Positions {
		want, ok := replayed[p.Symbol]
		switch {
		case !ok:
			return invalid("position %s is not backed by the transaction log", p.Symbol)
		case p.Quantity != want.Quantity:
			return invalid("position %s quantity %d does not match transaction log (%d)", p.Symbol, p.Quantity, want.Quantity)
		case !p.AverageCost.Equal(want.AverageCost):
			return invalid("position %s average cost %s does not match transaction log (%s)", p.Symbol, p.AverageCost, want.AverageCost)
		}
	}
	return nil
}

// replayPositions rebuilds open holdings from the log the same way Buy and
// Sell maintain them.
func replayPositions(txs []models.Transaction) (map[string]models.Position, error) {
	held := make(map[string]models.Position)
	for _, tx := range txs {
		pos, exists := held[tx.Symbol]
		if tx.IsBuy() {
			if !exists {
				held[tx.Symbol] = models.Position{Symbol: tx.Symbol, Quantity: tx.Quantity, AverageCost: tx.Price}
				continue
			}
			if pos.Quantity > math.MaxInt64-tx.Quantity {
				return nil, fmt.Errorf("transaction %s overflows position %s", tx.ID, tx.Symbol)
			}
			qty := decimal.NewFromInt(pos.Quantity)
			pos.AverageCost = qty.Mul(pos.AverageCost).Add(tx.Total).DivRound(qty.Add(decimal.NewFromInt(tx.Quantity)), averageCostPlaces)
			pos.Quantity += tx.Quantity
			held[tx.Symbol] = pos
			continue
		}

		if !exists || tx.Quantity > pos.Quantity {
			return nil, fmt.Errorf("transaction %s sells %d %s not held", tx.ID, tx.Quantity, tx.Symbol)
		}
		pos.Quantity -= tx.Quantity
		if pos.Quantity == 0 {
			delete(held, tx.Symbol)
			continue
		}
		held[tx.Symbol] = pos
	}
	return held, nil
}
