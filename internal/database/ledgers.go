package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveLedger persists a ledger snapshot in a single transaction: the account
// balance is upserted, the positions are replaced and transactions not yet
// stored are appended. Stored transactions are never rewritten.
func (db *DB) SaveLedger(ctx context.Context, accountID string, snap models.LedgerSnapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertAccount(ctx, tx, accountID, snap); err != nil {
		return err
	}
	if err := replacePositions(ctx, tx, accountID, snap.Positions); err != nil {
		return err
	}

	var (
		storedSeq int64
		storedID  string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT seq, id FROM ledger_transactions WHERE account_id = $1 ORDER BY seq DESC LIMIT 1`,
		accountID,
	).Scan(&storedSeq, &storedID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read stored sequence: %w", err)
	}
	if err := checkStoredTip(snap.Transactions, storedSeq, storedID); err != nil {
		return err
	}

	for _, t := range snap.Transactions {
		if t.Seq <= storedSeq {
			continue
		}
		if err := insertTransaction(ctx, tx, accountID, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// checkStoredTip fails with ErrLedgerConflict unless the last stored
// transaction is also in txs under the same ID.
func checkStoredTip(txs []models.Transaction, storedSeq int64, storedID string) error {
	if storedSeq == 0 {
		return nil
	}
	for _, t := range txs {
		if t.Seq == storedSeq {
			if t.ID != storedID {
				return fmt.Errorf("%w: seq %d is %s in storage but %s in memory", apperrors.ErrLedgerConflict, storedSeq, storedID, t.ID)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: stored seq %d is missing from the ledger", apperrors.ErrLedgerConflict, storedSeq)
}

// ResetLedger overwrites the stored ledger with snap, discarding the stored
// transaction log. It is used when an account is reset to its initial cash.
func (db *DB) ResetLedger(ctx context.Context, accountID string, snap models.LedgerSnapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_transactions WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	if err := upsertAccount(ctx, tx, accountID, snap); err != nil {
		return err
	}
	if err := replacePositions(ctx, tx, accountID, snap.Positions); err != nil {
		return err
	}
	for _, t := range snap.Transactions {
		if err := insertTransaction(ctx, tx, accountID, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertAccount(ctx context.Context, ex execer, accountID string, snap models.LedgerSnapshot) error {
	query := `
		INSERT INTO accounts (id, initial_cash, cash_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			initial_cash = EXCLUDED.initial_cash,
			cash_balance = EXCLUDED.cash_balance,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := ex.ExecContext(ctx, query, accountID, snap.InitialCash, snap.CashBalance, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

func replacePositions(ctx context.Context, ex execer, accountID string, positions []models.Position) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM positions WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to delete existing positions: %w", err)
	}

	query := `
		INSERT INTO positions (
			account_id, symbol, quantity, average_cost, last_price, opened_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, p := range positions {
		_, err := ex.ExecContext(ctx, query,
			accountID, p.Symbol, p.Quantity, p.AverageCost, p.LastPrice, p.OpenedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", p.Symbol, err)
		}
	}
	return nil
}

func insertTransaction(ctx context.Context, ex execer, accountID string, t models.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (
			id, account_id, seq, trade_type, symbol, quantity, price, total, cost_basis, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := ex.ExecContext(ctx, query,
		t.ID, accountID, t.Seq, t.TradeType, t.Symbol, t.Quantity, t.Price, t.Total, t.CostBasis, t.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", t.ID, err)
	}
	return nil
}

// LoadLedger reads the stored snapshot for an account.
// It returns apperrors.ErrAccountNotFound when the account has never been saved.
func (db *DB) LoadLedger(ctx context.Context, accountID string) (models.LedgerSnapshot, error) {
	var snap models.LedgerSnapshot

	err := db.conn.QueryRowContext(ctx,
		`SELECT initial_cash, cash_balance FROM accounts WHERE id = $1`,
		accountID,
	).Scan(&snap.InitialCash, &snap.CashBalance)
	if err == sql.ErrNoRows {
		return snap, fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return snap, fmt.Errorf("failed to get account: %w", err)
	}

	positions, err := db.getPositions(ctx, accountID)
	if err != nil {
		return snap, err
	}
	snap.Positions = positions

	txs, err := db.scanTransactions(db.conn.QueryContext(ctx, `
		SELECT id, seq, trade_type, symbol, quantity, price, total, cost_basis, executed_at
		FROM ledger_transactions
		WHERE account_id = $1
		ORDER BY seq ASC
	`, accountID))
	if err != nil {
		return snap, err
	}
	snap.Transactions = txs

	return snap, nil
}

func (db *DB) getPositions(ctx context.Context, accountID string) ([]models.Position, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT symbol, quantity, average_cost, last_price, opened_at, updated_at
		FROM positions
		WHERE account_id = $1
		ORDER BY symbol ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.Symbol, &p.Quantity, &p.AverageCost, &p.LastPrice, &p.OpenedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}
	return positions, nil
}
