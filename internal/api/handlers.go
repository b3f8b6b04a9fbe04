package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
	"github.com/trogers1052/paper-trading-ledger/internal/service"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	svc     *service.Service
	checks  map[string]Pinger
	logger  *slog.Logger
	timeout time.Duration
}

// NewHandler creates a new Handler. checks are pinged by the health endpoint.
func NewHandler(svc *service.Service, logger *slog.Logger, checks map[string]Pinger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:     svc,
		checks:  checks,
		logger:  logger,
		timeout: 2 * time.Second,
	}
}

type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Buy handles POST /accounts/{account}/buy
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.svc.Buy)
}

// Sell handles POST /accounts/{account}/sell
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.svc.Sell)
}

type tradeFunc func(ctx context.Context, accountID, symbol string, quantity int64, price decimal.Decimal) (models.Transaction, error)

func (h *Handler) trade(w http.ResponseWriter, r *http.Request, execute tradeFunc) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", apperrors.Code(apperrors.ErrInvalidInput))
		return
	}

	tx, err := execute(r.Context(), mux.Vars(r)["account"], req.Symbol, req.Quantity, req.Price)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// GetPortfolio handles GET /accounts/{account}
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Portfolio(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ResetAccount handles POST /accounts/{account}/reset
func (h *Handler) ResetAccount(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	if err := h.svc.Reset(r.Context(), account); err != nil {
		h.handleError(w, r, err)
		return
	}

	summary, err := h.svc.Portfolio(r.Context(), account)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetPositions handles GET /accounts/{account}/positions
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.svc.Positions(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, positions)
}

// GetPosition handles GET /accounts/{account}/positions/{symbol}
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	position, err := h.svc.Position(r.Context(), vars["account"], vars["symbol"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, position)
}

// GetTransactions handles GET /accounts/{account}/transactions?symbol=&limit=
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer", apperrors.Code(apperrors.ErrInvalidInput))
			return
		}
		limit = n
	}

	txs, err := h.svc.Transactions(r.Context(), mux.Vars(r)["account"], query.Get("symbol"), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

// GetWatchlist handles GET /accounts/{account}/watchlist
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Watchlist(r.Context(), mux.Vars(r)["account"])
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// AddToWatchlist handles POST /accounts/{account}/watchlist
func (h *Handler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", apperrors.Code(apperrors.ErrInvalidInput))
		return
	}

	item, err := h.svc.AddToWatchlist(r.Context(), mux.Vars(r)["account"], req.Symbol)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// RemoveFromWatchlist handles DELETE /accounts/{account}/watchlist/{symbol}
func (h *Handler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.svc.RemoveFromWatchlist(r.Context(), vars["account"], vars["symbol"]); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{"status": "healthy"}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", "dependency", name, "error", err)
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body[name] = "unreachable"
			continue
		}
		body[name] = "ok"
	}
	respondJSON(w, status, body)
}
