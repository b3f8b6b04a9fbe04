package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// Store persists ledgers and watchlists. *database.DB is the PostgreSQL
// implementation; MemoryStore keeps everything in process.
type Store interface {
	LoadLedger(ctx context.Context, accountID string) (models.LedgerSnapshot, error)
	SaveLedger(ctx context.Context, accountID string, snap models.LedgerSnapshot) error
	ResetLedger(ctx context.Context, accountID string, snap models.LedgerSnapshot) error
	ListTransactions(ctx context.Context, accountID, symbol string, limit int) ([]models.Transaction, error)

	GetWatchlist(ctx context.Context, accountID string) ([]models.WatchlistItem, error)
	UpsertWatchlistItem(ctx context.Context, accountID string, item models.WatchlistItem) error
	DeleteWatchlistItem(ctx context.Context, accountID, symbol string) error
	UpdateWatchlistQuotes(ctx context.Context, q models.Quote) (int64, error)
}

type memoryAccount struct {
	snap      models.LedgerSnapshot
	saved     bool
	watchlist []models.WatchlistItem
}

// MemoryStore is a Store backed by process memory. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memoryAccount
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*memoryAccount)}
}

func (m *MemoryStore) account(accountID string) *memoryAccount {
	a, ok := m.accounts[accountID]
	if !ok {
		a = &memoryAccount{}
		m.accounts[accountID] = a
	}
	return a
}

func cloneSnapshot(snap models.LedgerSnapshot) models.LedgerSnapshot {
	snap.Positions = slices.Clone(snap.Positions)
	snap.Transactions = slices.Clone(snap.Transactions)
	return snap
}

// LoadLedger implements Store
func (m *MemoryStore) LoadLedger(ctx context.Context, accountID string) (models.LedgerSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[accountID]
	if !ok || !a.saved {
		return models.LedgerSnapshot{}, fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, accountID)
	}
	return cloneSnapshot(a.snap), nil
}

// SaveLedger implements Store. Like the database, it only appends
// transactions newer than the last one stored.
func (m *MemoryStore) SaveLedger(ctx context.Context, accountID string, snap models.LedgerSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.account(accountID)
	var storedSeq int64
	if n := len(a.snap.Transactions); n > 0 {
		tip := a.snap.Transactions[n-1]
		storedSeq = tip.Seq
		i := slices.IndexFunc(snap.Transactions, func(t models.Transaction) bool { return t.Seq == tip.Seq })
		if i < 0 || snap.Transactions[i].ID != tip.ID {
			return fmt.Errorf("%w: stored seq %d (%s) is not in the ledger", apperrors.ErrLedgerConflict, tip.Seq, tip.ID)
		}
	}
	txs := a.snap.Transactions
	for _, t := range snap.Transactions {
		if t.Seq > storedSeq {
			txs = append(txs, t)
		}
	}

	a.snap = models.LedgerSnapshot{
		InitialCash:  snap.InitialCash,
		CashBalance:  snap.CashBalance,
		Positions:    slices.Clone(snap.Positions),
		Transactions: txs,
	}
	a.saved = true
	return nil
}

// ResetLedger implements Store
func (m *MemoryStore) ResetLedger(ctx context.Context, accountID string, snap models.LedgerSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.account(accountID)
	a.snap = cloneSnapshot(snap)
	a.saved = true
	return nil
}

// ListTransactions implements Store, newest first
func (m *MemoryStore) ListTransactions(ctx context.Context, accountID, symbol string, limit int) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbol = models.NormalizeSymbol(symbol)
	txs := []models.Transaction{}
	a, ok := m.accounts[accountID]
	if !ok {
		return txs, nil
	}
	for i := len(a.snap.Transactions) - 1; i >= 0; i-- {
		t := a.snap.Transactions[i]
		if symbol != "" && t.Symbol != symbol {
			continue
		}
		txs = append(txs, t)
		if limit > 0 && len(txs) == limit {
			break
		}
	}
	return txs, nil
}

// GetWatchlist implements Store
func (m *MemoryStore) GetWatchlist(ctx context.Context, accountID string) ([]models.WatchlistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if a, ok := m.accounts[accountID]; ok {
		return slices.Clone(a.watchlist), nil
	}
	return []models.WatchlistItem{}, nil
}

// UpsertWatchlistItem implements Store
func (m *MemoryStore) UpsertWatchlistItem(ctx context.Context, accountID string, item models.WatchlistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.account(accountID)
	for i := range a.watchlist {
		if a.watchlist[i].Symbol == item.Symbol {
			item.AddedAt = a.watchlist[i].AddedAt
			a.watchlist[i] = item
			return nil
		}
	}
	a.watchlist = append(a.watchlist, item)
	return nil
}

// DeleteWatchlistItem implements Store
func (m *MemoryStore) DeleteWatchlistItem(ctx context.Context, accountID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.accounts[accountID]; ok {
		a.watchlist = slices.DeleteFunc(a.watchlist, func(item models.WatchlistItem) bool {
			return item.Symbol == symbol
		})
	}
	return nil
}

// UpdateWatchlistQuotes implements Store
func (m *MemoryStore) UpdateWatchlistQuotes(ctx context.Context, q models.Quote) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updatedAt := q.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	var n int64
	for _, a := range m.accounts {
		for i := range a.watchlist {
			if a.watchlist[i].Symbol != q.Symbol {
				continue
			}
			a.watchlist[i].Price = q.Price
			a.watchlist[i].Change = q.Change
			a.watchlist[i].ChangePercent = q.ChangePercent
			a.watchlist[i].UpdatedAt = updatedAt
			n++
		}
	}
	return n, nil
}
