package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
)

// errorResponse is the body of every non-2xx response
type errorResponse struct {
	Error   string        `json:"error"`
	Code    string        `json:"code"`
	Details *tradeDetails `json:"details,omitempty"`
}

type tradeDetails struct {
	Symbol    string           `json:"symbol,omitempty"`
	Requested *decimal.Decimal `json:"requested,omitempty"`
	Available *decimal.Decimal `json:"available,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnknownPosition),
		errors.Is(err, apperrors.ErrPositionNotFound),
		errors.Is(err, apperrors.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInsufficientFunds),
		errors.Is(err, apperrors.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes the error response. Internal errors are logged and
// their message is not sent to the client.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, status, "internal server error", apperrors.Code(err))
		return
	}

	resp := errorResponse{Error: err.Error(), Code: apperrors.Code(err)}
	var tradeErr *apperrors.TradeError
	if errors.As(err, &tradeErr) && tradeErr.Reason == "" {
		resp.Details = &tradeDetails{Symbol: tradeErr.Symbol}
		if tradeErr.Kind != apperrors.ErrUnknownPosition {
			resp.Details.Requested = &tradeErr.Requested
			resp.Details.Available = &tradeErr.Available
		}
	}
	respondJSON(w, status, resp)
}
