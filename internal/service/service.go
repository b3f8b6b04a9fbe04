package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/ledger"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
	"github.com/trogers1052/paper-trading-ledger/internal/watchlist"
)

// Publisher announces ledger changes. *kafka.Producer implements it.
type Publisher interface {
	PublishTradeExecuted(ctx context.Context, accountID string, tx models.Transaction) error
	PublishWatchlistChanged(ctx context.Context, accountID, symbol string, added bool) error
	PublishLedgerReset(ctx context.Context, accountID string) error
}

// QuoteSource supplies market quotes. *cache.QuoteCache implements it.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
	Oracle(ctx context.Context, symbols []string) (ledger.Prices, error)
}

type account struct {
	mu        sync.Mutex
	id        string
	ledger    *ledger.Ledger
	watchlist *watchlist.Watchlist
}

// Service hosts one ledger and one watchlist per account. Calls on the same
// account are serialized; each mutation is saved before it is published.
type Service struct {
	store       Store
	publisher   Publisher
	quotes      QuoteSource
	initialCash decimal.Decimal
	ledgerOpts  []ledger.Option
	logger      *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account
}

// Option configures a Service
type Option func(*Service)

// WithPublisher sets the event publisher
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithQuoteSource sets the quote source used for valuation and new watchlist items
func WithQuoteSource(q QuoteSource) Option {
	return func(s *Service) { s.quotes = q }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLedgerOptions passes options to every ledger the service opens or restores
func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(s *Service) { s.ledgerOpts = append(s.ledgerOpts, opts...) }
}

// New creates a service. Accounts seen for the first time are opened with initialCash.
func New(store Store, initialCash decimal.Decimal, opts ...Option) (*Service, error) {
	if initialCash.IsNegative() {
		return nil, fmt.Errorf("%w: initial cash cannot be negative", apperrors.ErrInvalidInput)
	}
	s := &Service{
		store:       store,
		initialCash: initialCash,
		logger:      slog.Default(),
		accounts:    make(map[string]*account),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// acquire returns the locked account, loading it from the store on first use.
// The caller must call release.
func (s *Service) acquire(ctx context.Context, accountID string) (acct *account, release func(), err error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, nil, fmt.Errorf("%w: account id is required", apperrors.ErrInvalidInput)
	}

	s.mu.Lock()
	acct, ok := s.accounts[accountID]
	if !ok {
		acct = &account{id: accountID}
		s.accounts[accountID] = acct
	}
	s.mu.Unlock()

	acct.mu.Lock()
	if acct.ledger == nil {
		if err := s.load(ctx, acct); err != nil {
			acct.mu.Unlock()
			return nil, nil, err
		}
	}
	return acct, acct.mu.Unlock, nil
}

func (s *Service) load(ctx context.Context, acct *account) error {
	var l *ledger.Ledger
	snap, err := s.store.LoadLedger(ctx, acct.id)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		l, err = ledger.New(s.initialCash, s.ledgerOpts...)
		if err != nil {
			return err
		}
		s.logger.Info("opened account", "account", acct.id, "initial_cash", s.initialCash.String())
	case err != nil:
		return fmt.Errorf("failed to load ledger for %s: %w", acct.id, err)
	default:
		l, err = ledger.Restore(snap, s.ledgerOpts...)
		if err != nil {
			return fmt.Errorf("failed to restore ledger for %s: %w", acct.id, err)
		}
	}

	items, err := s.store.GetWatchlist(ctx, acct.id)
	if err != nil {
		return fmt.Errorf("failed to load watchlist for %s: %w", acct.id, err)
	}
	w := watchlist.New()
	w.Restore(items)

	acct.ledger = l
	acct.watchlist = w
	return nil
}

// rollback puts the in-memory ledger back to before. If that fails the account
// is dropped so the next call reloads it from the store.
func (s *Service) rollback(acct *account, before models.LedgerSnapshot) {
	restored, err := ledger.Restore(before, s.ledgerOpts...)
	if err != nil {
		s.logger.Error("failed to roll back ledger", "account", acct.id, "error", err)
		acct.ledger = nil
		acct.watchlist = nil
		return
	}
	acct.ledger = restored
}

// Buy executes a buy on the account and persists it
func (s *Service) Buy(ctx context.Context, accountID, symbol string, quantity int64, price decimal.Decimal) (models.Transaction, error) {
	return s.trade(ctx, accountID, func(l *ledger.Ledger) (models.Transaction, error) {
		return l.Buy(symbol, quantity, price)
	})
}

// Sell executes a sell on the account and persists it
func (s *Service) Sell(ctx context.Context, accountID, symbol string, quantity int64, price decimal.Decimal) (models.Transaction, error) {
	return s.trade(ctx, accountID, func(l *ledger.Ledger) (models.Transaction, error) {
		return l.Sell(symbol, quantity, price)
	})
}

func (s *Service) trade(ctx context.Context, accountID string, execute func(*ledger.Ledger) (models.Transaction, error)) (models.Transaction, error) {
	acct, release, err := s.acquire(ctx, accountID)
	if err != nil {
		return models.Transaction{}, err
	}
	defer release()

	before := acct.ledger.Snapshot()
	tx, err := execute(acct.ledger)
	if err != nil {
		return models.Transaction{}, err
	}

	if err := s.store.SaveLedger(ctx, acct.id, acct.ledger.Snapshot()); err != nil {
		if errors.Is(err, apperrors.ErrLedgerConflict) {
			// The store holds a log this ledger has not seen; reload it on the next call.
			s.logger.Error("ledger diverged from store", "account", acct.id, "error", err)
			acct.ledger = nil
			acct.watchlist = nil
		} else {
			s.rollback(acct, before)
		}
		return models.Transaction{}, fmt.Errorf("failed to save ledger: %w", err)
	}

	s.logger.Info("trade executed",
		"account", acct.id,
		"type", tx.TradeType,
		"symbol", tx.Symbol,
		"quantity", tx.Quantity,
		"price", tx.Price.String(),
	)
	if s.publisher != nil {
		if err := s.publisher.PublishTradeExecuted(ctx, acct.id, tx); err != nil {
			s.logger.Warn("failed to publish trade", "account", acct.id, "tx", tx.ID, "error", err)
		}
	}
	return tx, nil
}

// Reset returns the account to its initial cash and clears its log
func (s *Service) Reset(ctx context.Context, accountID string) error {
	acct, release, err := s.acquire(ctx, accountID)
	if err != nil {
		return err
	}
	defer release()

	before := acct.ledger.Snapshot()
	acct.ledger.Reset()
	if err := s.store.ResetLedger(ctx, acct.id, acct.ledger.Snapshot()); err != nil {
		s.rollback(acct, before)
		return fmt.Errorf("failed to reset ledger: %w", err)
	}

	s.logger.Info("account reset", "account", acct.id)
	if s.publisher != nil {
		if err := s.publisher.PublishLedgerReset(ctx, acct.id); err != nil {
			s.logger.Warn("failed to publish reset", "account", acct.id, "error", err)
		}
	}
	return nil
}

// oracle returns current prices for symbols, or nil when no quote source is
// configured or it fails. A nil oracle values positions at their last price.
func (s *Service) oracle(ctx context.Context, symbols []string) ledger.PriceOracle {
	if s.quotes == nil || len(symbols) == 0 {
		return nil
	}
	prices, err := s.quotes.Oracle(ctx, symbols)
	if err != nil {
		s.logger.Warn("falling back to last prices", "error", err)
		return nil
	}
	return prices
}

func heldSymbols(l *ledger.Ledger) []string {
	positions := l.Positions()
	symbols := make([]string, len(positions))
	for i, p := range positions {
		symbols[i] = p.Symbol
	}
	return symbols
}

// Portfolio values the account at current quotes
func (s *Service) Portfolio(ctx context.Context, accountID string) (models.PortfolioSummary, error) {
	acct, release, err := s.acquire(ctx, accountID)
	if err != nil {
		return models.PortfolioSummary{}, err
	}
	defer release()

	return acct.ledger.Summary(s.oracle(ctx, heldSymbols(acct.ledger))), nil
}

// Positions returns the open positions valued at current quotes
func (s *Service) Positions(ctx context.Context, accountID string) ([]models.PositionView, error) {
	summary, err := s.Portfolio(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return summary.Positions, nil
}

// Position returns one open position valued at its current quote
func (s *Service) Position(ctx context.Context, accountID, symbol string) (models.PositionView, error) {
	acct, release, err := s.acquire(ctx, accountID)
	if err != nil {
		return models.PositionView{}, err
	}
	defer release()

	symbol = models.NormalizeSymbol(symbol)
	p, ok := acct.ledger.GetPosition(symbol)
	if !ok {
		return models.PositionView{}, fmt.Errorf("%w: %s", apperrors.ErrPositionNotFound, symbol)
	}
	if oracle := s.oracle(ctx, []string{symbol}); oracle != nil {
		if price, ok := oracle.Price(symbol); ok {
			p.LastPrice = price
		}
	}
	return p.View(), nil
}

// Transactions returns the stored log for the account, newest first.
// An empty symbol matches every symbol; limit <= 0 means no limit.
func (s *Service) Transactions(ctx context.Context, accountID, symbol string, limit int) ([]models.Transaction, error) {
	acct, release, err := s.acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	txs, err := s.store.ListTransactions(ctx, acct.id, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// loadedAccounts returns the accounts currently held in memory
func (s *Service) loadedAccounts() []*account {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]*account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		accounts = append(accounts, acct)
	}
	return accounts
}
