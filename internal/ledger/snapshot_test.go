package ledger

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	l := newTestLedger(t, "10000")
	_, err := l.Buy("AAPL", 10, d("100"))
	require.NoError(t, err)
	_, err = l.Buy("MSFT", 3, d("310.25"))
	require.NoError(t, err)
	_, err = l.Sell("AAPL", 4, d("150"))
	require.NoError(t, err)

	data, err := json.Marshal(l.Snapshot())
	require.NoError(t, err)

	var snap models.LedgerSnapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored, err := Restore(snap)
	require.NoError(t, err)

	assert.True(t, l.CashBalance().Equal(restored.CashBalance()))
	assert.True(t, l.InitialCash().Equal(restored.InitialCash()))
	assert.Len(t, restored.Positions(), 2)
	assert.Len(t, restored.Transactions(), 3)

	pos, ok := restored.GetPosition("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(6), pos.Quantity)
	assert.True(t, d("100").Equal(pos.AverageCost))

	// Sequence numbers continue where the snapshot left off.
	tx, err := restored.Buy("AAPL", 1, d("100"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), tx.Seq)
}

func TestSnapshotIsACopy(t *testing.T) {
	l := newTestLedger(t, "1000")
	_, err := l.Buy("AAPL", 1, d("10"))
	require.NoError(t, err)

	snap := l.Snapshot()
	snap.Transactions[0].Quantity = 99
	snap.Positions[0].Quantity = 99

	pos, _ := l.GetPosition("AAPL")
	assert.Equal(t, int64(1), pos.Quantity)
	assert.Equal(t, int64(1), l.Transactions()[0].Quantity)
}

func TestRestoreRejectsBrokenInvariants(t *testing.T) {
	valid := func() models.LedgerSnapshot {
		l := newTestLedger(t, "1000")
		_, err := l.Buy("AAPL", 5, d("100"))
		require.NoError(t, err)
		return l.Snapshot()
	}

	tests := []struct {
		name   string
		mutate func(*models.LedgerSnapshot)
	}{
		{"negative cash", func(s *models.LedgerSnapshot) { s.CashBalance = d("-1") }},
		{"zero quantity position", func(s *models.LedgerSnapshot) { s.Positions[0].Quantity = 0 }},
		{"negative average cost", func(s *models.LedgerSnapshot) { s.Positions[0].AverageCost = d("-3") }},
		{"duplicate position", func(s *models.LedgerSnapshot) { s.Positions = append(s.Positions, s.Positions[0]) }},
		{"lowercase symbol", func(s *models.LedgerSnapshot) { s.Positions[0].Symbol = "aapl" }},
		{"cash not explained by log", func(s *models.LedgerSnapshot) { s.CashBalance = d("600") }},
		{"bad total", func(s *models.LedgerSnapshot) { s.Transactions[0].Total = d("1") }},
		{"unknown trade type", func(s *models.LedgerSnapshot) { s.Transactions[0].TradeType = "SHORT" }},
		{"out of order", func(s *models.LedgerSnapshot) { s.Transactions[0].Seq = 0 }},
		{"position quantity not in log", func(s *models.LedgerSnapshot) { s.Positions[0].Quantity = 1000 }},
		{"position average cost not in log", func(s *models.LedgerSnapshot) { s.Positions[0].AverageCost = d("1") }},
		{"position missing", func(s *models.LedgerSnapshot) { s.Positions = nil }},
		{"position with no buys", func(s *models.LedgerSnapshot) {
			s.Positions = append(s.Positions, models.Position{Symbol: "MSFT", Quantity: 1, AverageCost: d("10")})
		}},
		{"sell of unheld shares", func(s *models.LedgerSnapshot) {
			s.Transactions[0].TradeType = models.TradeTypeSell
			s.CashBalance = d("1500")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := valid()
			tt.mutate(&snap)

			_, err := Restore(snap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidSnapshot), "got %v", err)
		})
	}
}

func TestRestoreEmptySnapshot(t *testing.T) {
	l, err := Restore(models.LedgerSnapshot{InitialCash: d("250"), CashBalance: d("250")})
	require.NoError(t, err)
	assert.True(t, d("250").Equal(l.CashBalance()))
	assert.Empty(t, l.Positions())
}

func TestRestoreRejectsUnbackedPosition(t *testing.T) {
	snap := models.LedgerSnapshot{
		InitialCash: d("1000"),
		CashBalance: d("1000"),
		Positions:   []models.Position{{Symbol: "AAPL", Quantity: 1000, AverageCost: d("0")}},
	}

	_, err := Restore(snap)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidSnapshot), "got %v", err)
}

func TestRestoreAcceptsReaveragedPositions(t *testing.T) {
	l := newTestLedger(t, "10000")
	for _, price := range []string{"100", "133.33", "97.1"} {
		_, err := l.Buy("AAPL", 3, d(price))
		require.NoError(t, err)
	}
	_, err := l.Sell("AAPL", 9, d("120"))
	require.NoError(t, err)
	_, err = l.Buy("AAPL", 7, d("101.01"))
	require.NoError(t, err)
	_, err = l.Buy("AAPL", 2, d("99"))
	require.NoError(t, err)

	restored, err := Restore(l.Snapshot())
	require.NoError(t, err)

	want, _ := l.GetPosition("AAPL")
	got, ok := restored.GetPosition("AAPL")
	require.True(t, ok)
	assert.Equal(t, want.Quantity, got.Quantity)
	assert.True(t, want.AverageCost.Equal(got.AverageCost))
}
