package database

import (
	"context"
	"fmt"

	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// UpsertWatchlistItem adds a symbol to an account's watchlist or refreshes its quote
func (db *DB) UpsertWatchlistItem(ctx context.Context, accountID string, item models.WatchlistItem) error {
	query := `
		INSERT INTO watchlist_items (
			account_id, symbol, price, change, change_percent, added_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, symbol) DO UPDATE SET
			price = EXCLUDED.price,
			change = EXCLUDED.change,
			change_percent = EXCLUDED.change_percent,
			updated_at = EXCLUDED.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		accountID, item.Symbol, item.Price, item.Change, item.ChangePercent, item.AddedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert watchlist item: %w", err)
	}
	return nil
}

// DeleteWatchlistItem removes a symbol from an account's watchlist.
// Deleting a symbol that is not on the watchlist is not an error.
func (db *DB) DeleteWatchlistItem(ctx context.Context, accountID, symbol string) error {
	query := `DELETE FROM watchlist_items WHERE account_id = $1 AND symbol = $2`
	if _, err := db.conn.ExecContext(ctx, query, accountID, symbol); err != nil {
		return fmt.Errorf("failed to delete watchlist item: %w", err)
	}
	return nil
}

// GetWatchlist retrieves an account's watchlist in the order symbols were added
func (db *DB) GetWatchlist(ctx context.Context, accountID string) ([]models.WatchlistItem, error) {
	query := `
		SELECT symbol, price, change, change_percent, added_at, updated_at
		FROM watchlist_items
		WHERE account_id = $1
		ORDER BY added_at ASC, symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	items := []models.WatchlistItem{}
	for rows.Next() {
		var item models.WatchlistItem
		err := rows.Scan(
			&item.Symbol, &item.Price, &item.Change, &item.ChangePercent, &item.AddedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watchlist: %w", err)
	}
	return items, nil
}

// UpdateWatchlistQuotes refreshes the stored quote for a symbol on every
// watchlist that follows it and returns the number of rows touched.
func (db *DB) UpdateWatchlistQuotes(ctx context.Context, q models.Quote) (int64, error) {
	query := `
		UPDATE watchlist_items
		SET price = $2, change = $3, change_percent = $4, updated_at = $5
		WHERE symbol = $1
	`
	result, err := db.conn.ExecContext(ctx, query, q.Symbol, q.Price, q.Change, q.ChangePercent, q.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to update watchlist quotes: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}
