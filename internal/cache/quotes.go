package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/paper-trading-ledger/internal/apperrors"
	"github.com/trogers1052/paper-trading-ledger/internal/ledger"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

const keyPrefix = "quote:"

// redisClient is the subset of the go-redis API the cache needs
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// QuoteCache stores the latest quote per symbol in Redis and serves them as a
// ledger price oracle.
type QuoteCache struct {
	client redisClient
	ttl    time.Duration
}

// NewQuoteCache creates a cache on top of a Redis client.
// A ttl of zero keeps quotes until they are overwritten.
func NewQuoteCache(client redisClient, ttl time.Duration) *QuoteCache {
	return &QuoteCache{client: client, ttl: ttl}
}

// Connect opens a Redis client and verifies it answers PING
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func quoteKey(symbol string) string {
	return keyPrefix + models.NormalizeSymbol(symbol)
}

// SetQuote stores a quote, replacing any previous one for the symbol
func (c *QuoteCache) SetQuote(ctx context.Context, q models.Quote) error {
	q.Symbol = models.NormalizeSymbol(q.Symbol)
	if q.Symbol == "" {
		return fmt.Errorf("%w: quote symbol is required", apperrors.ErrInvalidInput)
	}

	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	if err := c.client.Set(ctx, quoteKey(q.Symbol), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store quote for %s: %w", q.Symbol, err)
	}
	return nil
}

// GetQuote returns the cached quote for symbol or apperrors.ErrQuoteNotFound
func (c *QuoteCache) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	data, err := c.client.Get(ctx, quoteKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Quote{}, fmt.Errorf("%w: %s", apperrors.ErrQuoteNotFound, models.NormalizeSymbol(symbol))
	}
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	var q models.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return models.Quote{}, fmt.Errorf("failed to unmarshal quote for %s: %w", symbol, err)
	}
	return q, nil
}

// Oracle loads the quotes for symbols in one round trip and returns them as a
// fixed price table. Symbols without a cached quote are left out, so the
// ledger values them at their last execution price.
func (c *QuoteCache) Oracle(ctx context.Context, symbols []string) (ledger.Prices, error) {
	prices := make(ledger.Prices, len(symbols))
	if len(symbols) == 0 {
		return prices, nil
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = quoteKey(s)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load quotes: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var q models.Quote
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quote for %s: %w", symbols[i], err)
		}
		if q.Price.IsPositive() {
			prices[models.NormalizeSymbol(symbols[i])] = q.Price
		}
	}
	return prices, nil
}
