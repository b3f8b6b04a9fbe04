package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// quoteFor looks up the cached quote for symbol. A missing quote, or no quote
// source at all, yields a zero quote.
func (s *Service) quoteFor(ctx context.Context, symbol string) models.Quote {
	if s.quotes == nil {
		return models.Quote{Symbol: symbol}
	}
	q, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		if !errors.Is(err, apperrors.ErrQuoteNotFound) {
			s.logger.Warn("failed to get quote", "symbol", symbol, "error", err)
		}
		return models.Quote{Symbol: symbol}
	}
	return q
}

// AddToWatchlist follows symbol on the account. Following an already followed
// symbol refreshes its quote.
func (s *Service) AddToWatchlist(ctx context.Context, accountID, symbol string) (models.WatchlistItem, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return models.WatchlistItem{}, fmt.Errorf("%w: symbol is required", apperrors.ErrInvalidInput)
	}

	acct, release, err := s.acquire(ctx, accountID)
	if err != nil {
		return models.WatchlistItem{}, err
	}
	defer release()

	before := acct.watchlist.Items()
	acct.watchlist.Add(symbol, s.quoteFor(ctx, symbol))
	item, _ := acct.watchlist.Get(symbol)

	if err := s.store.UpsertWatchlistItem(ctx, acct.id, item); err != nil {
		acct.watchlist.Restore(before)
		return models.WatchlistItem{}, fmt.Errorf("failed to save watchlist: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishWatchlistChanged(ctx, acct.id, symbol, true); err != nil {
			s.logger.Warn("failed to publish watchlist change", "account", acct.id, "symbol", symbol, "error", err)
		}
	}
	return item, nil
}

// RemoveFromWatchlist stops following symbol. Removing a symbol that is not
// followed succeeds without publishing anything.
func (s *Service) RemoveFromWatchlist(ctx context.Context, accountID, symbol string) error {
	symbol = models.NormalizeSymbol(symbol)

	acct, release, err := s.acquire(ctx, accountID)
	if err != nil {
		return err
	}
	defer release()

	if !acct.watchlist.Contains(symbol) {
		return nil
	}

	before := acct.watchlist.Items()
	acct.watchlist.Remove(symbol)
	if err := s.store.DeleteWatchlistItem(ctx, acct.id, symbol); err != nil {
		acct.watchlist.Restore(before)
		return fmt.Errorf("failed to save watchlist: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishWatchlistChanged(ctx, acct.id, symbol, false); err != nil {
			s.logger.Warn("failed to publish watchlist change", "account", acct.id, "symbol", symbol, "error", err)
		}
	}
	return nil
}

// Watchlist returns the followed symbols in the order they were added
func (s *Service) Watchlist(ctx context.Context, accountID string) ([]models.WatchlistItem, error) {
	acct, release, err := s.acquire(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	items := slices.Collect(acct.watchlist.Snapshot())
	if items == nil {
		items = []models.WatchlistItem{}
	}
	return items, nil
}

// ApplyQuote records a market quote on every stored watchlist following the
// symbol and on the watchlists of loaded accounts.
func (s *Service) ApplyQuote(ctx context.Context, q models.Quote) error {
	q.Symbol = models.NormalizeSymbol(q.Symbol)
	if q.Symbol == "" || !q.Price.IsPositive() {
		return fmt.Errorf("%w: quote needs a symbol and a positive price", apperrors.ErrInvalidInput)
	}

	n, err := s.store.UpdateWatchlistQuotes(ctx, q)
	if err != nil {
		return err
	}

	for _, acct := range s.loadedAccounts() {
		acct.mu.Lock()
		if acct.watchlist != nil {
			acct.watchlist.UpdateQuote(q.Symbol, q)
		}
		acct.mu.Unlock()
	}

	if n > 0 {
		s.logger.Debug("quote applied", "symbol", q.Symbol, "watchlists", n)
	}
	return nil
}
