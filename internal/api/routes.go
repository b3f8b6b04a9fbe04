package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger(handler.logger))

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Ledger routes
	api.HandleFunc("/accounts/{account}", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/accounts/{account}/buy", handler.Buy).Methods("POST")
	api.HandleFunc("/accounts/{account}/sell", handler.Sell).Methods("POST")
	api.HandleFunc("/accounts/{account}/reset", handler.ResetAccount).Methods("POST")
	api.HandleFunc("/accounts/{account}/positions", handler.GetPositions).Methods("GET")
	api.HandleFunc("/accounts/{account}/positions/{symbol}", handler.GetPosition).Methods("GET")
	api.HandleFunc("/accounts/{account}/transactions", handler.GetTransactions).Methods("GET")

	// Watchlist routes
	api.HandleFunc("/accounts/{account}/watchlist", handler.GetWatchlist).Methods("GET")
	api.HandleFunc("/accounts/{account}/watchlist", handler.AddToWatchlist).Methods("POST")
	api.HandleFunc("/accounts/{account}/watchlist/{symbol}", handler.RemoveFromWatchlist).Methods("DELETE")

	return r
}
