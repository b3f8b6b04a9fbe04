package models

import "time"

// Ledger event type constants
const (
	EventTradeExecuted    = "TRADE_EXECUTED"
	EventWatchlistAdded   = "WATCHLIST_ADDED"
	EventWatchlistRemoved = "WATCHLIST_REMOVED"
	EventLedgerReset      = "LEDGER_RESET"
	EventQuoteUpdated     = "QUOTE_UPDATED"
)

// LedgerEvent represents a Kafka event for ledger changes
type LedgerEvent struct {
	EventType   string       `json:"event_type"`
	AccountID   string       `json:"account_id"`
	Symbol      string       `json:"symbol,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// QuoteEvent represents a Kafka message published by the price service
type QuoteEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      QuoteEventData `json:"data"`
}

// QuoteEventData carries the quote fields as strings, as sent by the price service
type QuoteEventData struct {
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	Change        string `json:"change"`
	ChangePercent string `json:"change_percent"`
	UpdatedAt     string `json:"updated_at"`
}
