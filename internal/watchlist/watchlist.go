package watchlist

import (
	"iter"
	"sync"
	"time"

	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// Watchlist is a deduplicated set of followed symbols, each with the most
// recent quote seen for it. Iteration follows insertion order.
type Watchlist struct {
	mu    sync.RWMutex
	items map[string]models.WatchlistItem
	order []string
	now   func() time.Time
}

// New creates an empty watchlist
func New() *Watchlist {
	return &Watchlist{
		items: make(map[string]models.WatchlistItem),
		now:   time.Now,
	}
}

// Add follows symbol with the given quote. Adding a symbol that is already
// followed only refreshes its quote. It returns false for an empty symbol.
func (w *Watchlist) Add(symbol string, quote models.Quote) bool {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	item, exists := w.items[symbol]
	if !exists {
		item = models.WatchlistItem{Symbol: symbol, AddedAt: now}
		w.order = append(w.order, symbol)
	}
	w.items[symbol] = applyQuote(item, quote, now)
	return true
}

// UpdateQuote refreshes the quote of a followed symbol and reports whether the
// symbol was followed. Unfollowed symbols are ignored.
func (w *Watchlist) UpdateQuote(symbol string, quote models.Quote) bool {
	symbol = models.NormalizeSymbol(symbol)

	w.mu.Lock()
	defer w.mu.Unlock()

	item, exists := w.items[symbol]
	if !exists {
		return false
	}
	w.items[symbol] = applyQuote(item, quote, w.now())
	return true
}

func applyQuote(item models.WatchlistItem, quote models.Quote, now time.Time) models.WatchlistItem {
	item.Price = quote.Price
	item.Change = quote.Change
	item.ChangePercent = quote.ChangePercent
	item.UpdatedAt = quote.UpdatedAt
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	return item
}

// Remove stops following symbol. Removing an absent symbol is a no-op.
func (w *Watchlist) Remove(symbol string) {
	symbol = models.NormalizeSymbol(symbol)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.items[symbol]; !exists {
		return
	}
	delete(w.items, symbol)
	for i, s := range w.order {
		if s == symbol {
			w.order = append(w.order[:i:i], w.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether symbol is followed
func (w *Watchlist) Contains(symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.items[models.NormalizeSymbol(symbol)]
	return ok
}

// Get returns the item for symbol, if followed
func (w *Watchlist) Get(symbol string) (models.WatchlistItem, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	item, ok := w.items[models.NormalizeSymbol(symbol)]
	return item, ok
}

// Len returns the number of followed symbols
func (w *Watchlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.order)
}

// Snapshot returns a sequence over the followed items in insertion order.
// Each iteration copies the current state under the read lock, so the
// sequence can be ranged over repeatedly and never observes a partial update.
func (w *Watchlist) Snapshot() iter.Seq[models.WatchlistItem] {
	return func(yield func(models.WatchlistItem) bool) {
		for _, item := range w.Items() {
			if !yield(item) {
				return
			}
		}
	}
}

// Items returns the followed items in insertion order
func (w *Watchlist) Items() []models.WatchlistItem {
	w.mu.RLock()
	defer w.mu.RUnlock()

	items := make([]models.WatchlistItem, 0, len(w.order))
	for _, symbol := range w.order {
		items = append(items, w.items[symbol])
	}
	return items
}

// Restore replaces the watchlist contents with items, keeping their order and
// dropping duplicates.
func (w *Watchlist) Restore(items []models.WatchlistItem) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = make(map[string]models.WatchlistItem, len(items))
	w.order = w.order[:0]
	for _, item := range items {
		item.Symbol = models.NormalizeSymbol(item.Symbol)
		if item.Symbol == "" {
			continue
		}
		if _, dup := w.items[item.Symbol]; dup {
			continue
		}
		w.items[item.Symbol] = item
		w.order = append(w.order, item.Symbol)
	}
}
