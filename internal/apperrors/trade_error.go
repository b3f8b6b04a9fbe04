package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeError describes why a buy or sell was rejected. Kind is one of the trade
// rejection sentinels, so errors.Is(err, ErrInsufficientFunds) works on it.
type TradeError struct {
	Kind      error
	Symbol    string
	Requested decimal.Decimal
	Available decimal.Decimal
	Reason    string
}

func (e *TradeError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	case e.Kind == ErrUnknownPosition:
		return fmt.Sprintf("%s: no open position in %s", e.Kind, e.Symbol)
	default:
		return fmt.Sprintf("%s: %s requested %s, available %s",
			e.Kind, e.Symbol, e.Requested, e.Available)
	}
}

func (e *TradeError) Unwrap() error {
	return e.Kind
}

// Code returns a stable machine-readable name for the rejection.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrInsufficientShares):
		return "INSUFFICIENT_SHARES"
	case errors.Is(err, ErrUnknownPosition):
		return "UNKNOWN_POSITION"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrAccountNotFound):
		return "ACCOUNT_NOT_FOUND"
	case errors.Is(err, ErrPositionNotFound):
		return "POSITION_NOT_FOUND"
	case errors.Is(err, ErrInvalidSnapshot):
		return "INVALID_SNAPSHOT"
	case errors.Is(err, ErrQuoteNotFound):
		return "QUOTE_NOT_FOUND"
	case errors.Is(err, ErrLedgerConflict):
		return "LEDGER_CONFLICT"
	default:
		return "INTERNAL"
	}
}
