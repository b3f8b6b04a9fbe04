package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/ledger"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

func TestLedgerRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	t.Run("SaveLedger then LoadLedger restores the same ledger", func(t *testing.T) {
		testDB.TruncateAll(t)

		l, err := ledger.New(decimal.NewFromInt(10000))
		require.NoError(t, err)
		_, err = l.Buy("AAPL", 10, decimal.RequireFromString("150.25"))
		require.NoError(t, err)
		_, err = l.Buy("AAPL", 5, decimal.RequireFromString("149.10"))
		require.NoError(t, err)
		_, err = l.Sell("AAPL", 3, decimal.RequireFromString("155"))
		require.NoError(t, err)

		require.NoError(t, testDB.SaveLedger(ctx, "acct-1", l.Snapshot()))

		snap, err := testDB.LoadLedger(ctx, "acct-1")
		require.NoError(t, err)

		restored, err := ledger.Restore(snap)
		require.NoError(t, err)
		assert.True(t, l.CashBalance().Equal(restored.CashBalance()))

		want, _ := l.GetPosition("AAPL")
		got, ok := restored.GetPosition("AAPL")
		require.True(t, ok)
		assert.Equal(t, want.Quantity, got.Quantity)
		assert.True(t, want.AverageCost.Equal(got.AverageCost), "want %s, got %s", want.AverageCost, got.AverageCost)
		assert.Len(t, restored.Transactions(), 3)
	})

	t.Run("SaveLedger is incremental and removes closed positions", func(t *testing.T) {
		testDB.TruncateAll(t)

		l, err := ledger.New(decimal.NewFromInt(1000))
		require.NoError(t, err)
		_, err = l.Buy("MSFT", 2, decimal.NewFromInt(300))
		require.NoError(t, err)
		require.NoError(t, testDB.SaveLedger(ctx, "acct-2", l.Snapshot()))

		_, err = l.Sell("MSFT", 2, decimal.NewFromInt(310))
		require.NoError(t, err)
		require.NoError(t, testDB.SaveLedger(ctx, "acct-2", l.Snapshot()))

		snap, err := testDB.LoadLedger(ctx, "acct-2")
		require.NoError(t, err)
		assert.Empty(t, snap.Positions)
		assert.Len(t, snap.Transactions, 2)
		assert.True(t, decimal.NewFromInt(1020).Equal(snap.CashBalance))
	})

	t.Run("ResetLedger clears the stored log", func(t *testing.T) {
		testDB.TruncateAll(t)

		l, err := ledger.New(decimal.NewFromInt(1000))
		require.NoError(t, err)
		_, err = l.Buy("MSFT", 1, decimal.NewFromInt(300))
		require.NoError(t, err)
		require.NoError(t, testDB.SaveLedger(ctx, "acct-3", l.Snapshot()))

		l.Reset()
		require.NoError(t, testDB.ResetLedger(ctx, "acct-3", l.Snapshot()))

		_, err = l.Buy("AAPL", 1, decimal.NewFromInt(100))
		require.NoError(t, err)
		require.NoError(t, testDB.SaveLedger(ctx, "acct-3", l.Snapshot()))

		snap, err := testDB.LoadLedger(ctx, "acct-3")
		require.NoError(t, err)
		require.Len(t, snap.Transactions, 1)
		assert.Equal(t, "AAPL", snap.Transactions[0].Symbol)
		_, err = ledger.Restore(snap)
		require.NoError(t, err)
	})

	t.Run("LoadLedger returns ErrAccountNotFound", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.LoadLedger(ctx, "nobody")
		assert.True(t, errors.Is(err, apperrors.ErrAccountNotFound))
	})

	t.Run("ListTransactions filters by symbol newest first", func(t *testing.T) {
		testDB.TruncateAll(t)

		l, err := ledger.New(decimal.NewFromInt(10000))
		require.NoError(t, err)
		for _, sym := range []string{"AAPL", "MSFT", "AAPL", "NVDA"} {
			_, err := l.Buy(sym, 1, decimal.NewFromInt(100))
			require.NoError(t, err)
		}
		require.NoError(t, testDB.SaveLedger(ctx, "acct-4", l.Snapshot()))

		txs, err := testDB.ListTransactions(ctx, "acct-4", "aapl", 0)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, int64(3), txs[0].Seq)
		assert.Equal(t, int64(1), txs[1].Seq)

		all, err := testDB.ListTransactions(ctx, "acct-4", "", 2)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestWatchlistRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	item := func(symbol string, price int64) models.WatchlistItem {
		now := timeNow()
		return models.WatchlistItem{
			Symbol:    symbol,
			Price:     decimal.NewFromInt(price),
			AddedAt:   now,
			UpdatedAt: now,
		}
	}

	t.Run("UpsertWatchlistItem is idempotent", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertWatchlistItem(ctx, "acct", item("AAPL", 180)))
		require.NoError(t, testDB.UpsertWatchlistItem(ctx, "acct", item("AAPL", 185)))

		items, err := testDB.GetWatchlist(ctx, "acct")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.True(t, decimal.NewFromInt(185).Equal(items[0].Price))
	})

	t.Run("DeleteWatchlistItem ignores missing symbols", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertWatchlistItem(ctx, "acct", item("AAPL", 180)))
		require.NoError(t, testDB.DeleteWatchlistItem(ctx, "acct", "AAPL"))
		require.NoError(t, testDB.DeleteWatchlistItem(ctx, "acct", "AAPL"))

		items, err := testDB.GetWatchlist(ctx, "acct")
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("UpdateWatchlistQuotes touches every follower", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertWatchlistItem(ctx, "a", item("NVDA", 400)))
		require.NoError(t, testDB.UpsertWatchlistItem(ctx, "b", item("NVDA", 400)))

		n, err := testDB.UpdateWatchlistQuotes(ctx, models.Quote{
			Symbol:    "NVDA",
			Price:     decimal.NewFromInt(450),
			UpdatedAt: timeNow(),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

// timeNow truncates to the microsecond precision PostgreSQL stores
func timeNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
