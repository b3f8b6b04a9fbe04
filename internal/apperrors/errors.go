package apperrors

import "errors"

// Trade rejection errors are expected business outcomes. A rejected buy or sell
// leaves the ledger exactly as it was before the call.
var (
	// ErrInsufficientFunds indicates that a buy costs more than the cash balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientShares indicates that a sell asks for more shares than are held.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrUnknownPosition indicates that a sell names a symbol with no open position.
	ErrUnknownPosition = errors.New("unknown position")

	// ErrInvalidInput indicates a non-positive quantity or price, or an empty symbol.
	ErrInvalidInput = errors.New("invalid input")
)

// Host errors are raised by the adapters around the ledger.
var (
	// ErrAccountNotFound indicates that no ledger has been stored for an account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidSnapshot indicates that a persisted snapshot violates a ledger invariant.
	ErrInvalidSnapshot = errors.New("invalid ledger snapshot")

	// ErrQuoteNotFound indicates that the quote cache has no price for a symbol.
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrPositionNotFound indicates that an account holds no open position in a symbol.
	ErrPositionNotFound = errors.New("position not found")

	// ErrLedgerConflict indicates that the stored transaction log no longer
	// matches the in-memory ledger being saved.
	ErrLedgerConflict = errors.New("ledger conflicts with stored transaction log")
)
