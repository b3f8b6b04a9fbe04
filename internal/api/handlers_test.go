package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
	"github.com/trogers1052/paper-trading-ledger/internal/service"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRouter(t *testing.T, checks map[string]Pinger) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(service.NewMemoryStore(), decimal.NewFromInt(10000), service.WithLogger(logger))
	require.NoError(t, err)
	return SetupRoutes(NewHandler(svc, logger, checks))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealthCheck(t *testing.T) {
	h := newTestRouter(t, map[string]Pinger{
		"database": pingerFunc(func(ctx context.Context) error { return nil }),
	})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["database"])
}

func TestHealthCheckUnhealthy(t *testing.T) {
	h := newTestRouter(t, map[string]Pinger{
		"redis": pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode[map[string]string](t, rec)["status"])
}

func TestBuyAndSell(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/accounts/alice/buy", `{"symbol":"aapl","quantity":10,"price":"100"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	tx := decode[models.Transaction](t, rec)
	assert.Equal(t, "AAPL", tx.Symbol)
	assert.Equal(t, models.TradeTypeBuy, tx.TradeType)
	assert.True(t, decimal.NewFromInt(1000).Equal(tx.Total))

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/alice/sell", `{"symbol":"AAPL","quantity":4,"price":125.5}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	tx = decode[models.Transaction](t, rec)
	assert.Equal(t, models.TradeTypeSell, tx.TradeType)
	assert.True(t, decimal.NewFromInt(100).Equal(tx.CostBasis))

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[models.PortfolioSummary](t, rec)
	assert.True(t, decimal.RequireFromString("9502").Equal(summary.CashBalance))
	assert.True(t, decimal.RequireFromString("102").Equal(summary.RealizedPnl))
	require.Len(t, summary.Positions, 1)
	assert.Equal(t, int64(6), summary.Positions[0].Quantity)
}

func TestTradeErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed body",
			path:       "/api/v1/accounts/alice/buy",
			body:       `{"symbol":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "zero quantity",
			path:       "/api/v1/accounts/alice/buy",
			body:       `{"symbol":"AAPL","quantity":0,"price":"10"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "missing price",
			path:       "/api/v1/accounts/alice/buy",
			body:       `{"symbol":"AAPL","quantity":1}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "insufficient funds",
			path:       "/api/v1/accounts/alice/buy",
			body:       `{"symbol":"AAPL","quantity":1000,"price":"100"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INSUFFICIENT_FUNDS",
		},
		{
			name:       "unknown position",
			path:       "/api/v1/accounts/alice/sell",
			body:       `{"symbol":"MSFT","quantity":1,"price":"100"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "UNKNOWN_POSITION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, nil)

			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode[errorResponse](t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestInsufficientSharesDetails(t *testing.T) {
	h := newTestRouter(t, nil)
	do(t, h, http.MethodPost, "/api/v1/accounts/alice/buy", `{"symbol":"AAPL","quantity":5,"price":"10"}`)

	rec := do(t, h, http.MethodPost, "/api/v1/accounts/alice/sell", `{"symbol":"AAPL","quantity":6,"price":"10"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode[errorResponse](t, rec)
	assert.Equal(t, "INSUFFICIENT_SHARES", body.Code)
	require.NotNil(t, body.Details)
	assert.Equal(t, "AAPL", body.Details.Symbol)
	assert.True(t, decimal.NewFromInt(6).Equal(*body.Details.Requested))
	assert.True(t, decimal.NewFromInt(5).Equal(*body.Details.Available))
}

func TestPositions(t *testing.T) {
	h := newTestRouter(t, nil)
	do(t, h, http.MethodPost, "/api/v1/accounts/alice/buy", `{"symbol":"MSFT","quantity":2,"price":"300"}`)
	do(t, h, http.MethodPost, "/api/v1/accounts/alice/buy", `{"symbol":"AAPL","quantity":1,"price":"150"}`)

	rec := do(t, h, http.MethodGet, "/api/v1/accounts/alice/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	positions := decode[[]models.PositionView](t, rec)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Symbol)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/alice/positions/msft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decimal.NewFromInt(600).Equal(decode[models.PositionView](t, rec).MarketValue))

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/alice/positions/NVDA", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "POSITION_NOT_FOUND", decode[errorResponse](t, rec).Code)
}

func TestTransactions(t *testing.T) {
	h := newTestRouter(t, nil)
	for _, body := range []string{
		`{"symbol":"AAPL","quantity":1,"price":"10"}`,
		`{"symbol":"MSFT","quantity":1,"price":"10"}`,
		`{"symbol":"AAPL","quantity":1,"price":"11"}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/accounts/alice/buy", body).Code)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/accounts/alice/transactions?symbol=AAPL&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decode[[]models.Transaction](t, rec)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(3), txs[0].Seq)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/alice/transactions", "")
	assert.Len(t, decode[[]models.Transaction](t, rec), 3)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/alice/transactions?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReset(t *testing.T) {
	h := newTestRouter(t, nil)
	do(t, h, http.MethodPost, "/api/v1/accounts/alice/buy", `{"symbol":"AAPL","quantity":10,"price":"100"}`)

	rec := do(t, h, http.MethodPost, "/api/v1/accounts/alice/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[models.PortfolioSummary](t, rec)
	assert.True(t, decimal.NewFromInt(10000).Equal(summary.CashBalance))
	assert.Empty(t, summary.Positions)
}

func TestWatchlistRoutes(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/accounts/alice/watchlist", `{"symbol":"nvda"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "NVDA", decode[models.WatchlistItem](t, rec).Symbol)

	do(t, h, http.MethodPost, "/api/v1/accounts/alice/watchlist", `{"symbol":"AAPL"}`)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/alice/watchlist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]models.WatchlistItem](t, rec)
	require.Len(t, items, 2)
	assert.Equal(t, "NVDA", items[0].Symbol)

	rec = do(t, h, http.MethodDelete, "/api/v1/accounts/alice/watchlist/NVDA", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/v1/accounts/alice/watchlist/NVDA", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/alice/watchlist", "")
	assert.Len(t, decode[[]models.WatchlistItem](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/alice/watchlist", `{"symbol":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(t, nil)
	rec := do(t, h, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
