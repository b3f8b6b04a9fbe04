package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// ListTransactions retrieves the transaction log for an account, newest first.
// An empty symbol matches every symbol; limit <= 0 means no limit.
func (db *DB) ListTransactions(ctx context.Context, accountID, symbol string, limit int) ([]models.Transaction, error) {
	query := `
		SELECT id, seq, trade_type, symbol, quantity, price, total, cost_basis, executed_at
		FROM ledger_transactions
		WHERE account_id = $1 AND ($2 = '' OR symbol = $2)
		ORDER BY seq DESC
	`
	args := []any{accountID, models.NormalizeSymbol(symbol)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return db.scanTransactions(db.conn.QueryContext(ctx, query, args...))
}

func (db *DB) scanTransactions(rows *sql.Rows, err error) ([]models.Transaction, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(
			&t.ID, &t.Seq, &t.TradeType, &t.Symbol, &t.Quantity,
			&t.Price, &t.Total, &t.CostBasis, &t.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}
