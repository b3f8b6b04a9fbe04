package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// QuoteSink receives every quote read from the quotes topic
type QuoteSink interface {
	ApplyQuote(ctx context.Context, q models.Quote) error
}

// QuoteSinkFunc adapts a function to QuoteSink
type QuoteSinkFunc func(ctx context.Context, q models.Quote) error

// ApplyQuote implements QuoteSink
func (f QuoteSinkFunc) ApplyQuote(ctx context.Context, q models.Quote) error {
	return f(ctx, q)
}

// messageReader is implemented by *kafka.Reader
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// QuoteConsumer reads QUOTE_UPDATED events and hands the parsed quotes to its sinks
type QuoteConsumer struct {
	reader messageReader
	sinks  []QuoteSink
	logger *slog.Logger
}

// NewQuoteConsumer creates a consumer for the quotes topic
func NewQuoteConsumer(brokers []string, topic, groupID string, logger *slog.Logger, sinks ...QuoteSink) *QuoteConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return newQuoteConsumer(reader, logger, sinks...)
}

func newQuoteConsumer(reader messageReader, logger *slog.Logger, sinks ...QuoteSink) *QuoteConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteConsumer{
		reader: reader,
		sinks:  sinks,
		logger: logger.With("component", "quote_consumer"),
	}
}

// Start consumes messages until ctx is cancelled. Read and processing errors
// are logged and the loop moves on to the next message.
func (c *QuoteConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting kafka consumer", "topic", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("kafka consumer shutting down")
					return c.reader.Close()
				}
				c.logger.Error("error reading message", "error", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Warn("error processing message",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
		}
	}
}

func (c *QuoteConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.QuoteEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal quote event: %w", err)
	}

	if event.EventType != models.EventQuoteUpdated {
		c.logger.Debug("ignoring event", "event_type", event.EventType)
		return nil
	}

	quote, err := parseQuote(event)
	if err != nil {
		return err
	}

	// A failing sink does not keep the quote from the others.
	var errs []error
	for _, sink := range c.sinks {
		if err := sink.ApplyQuote(ctx, quote); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to apply quote for %s: %w", quote.Symbol, err)
	}
	return nil
}

// parseQuote converts the string fields of a quote event. Change fields are
// optional; price must be positive.
func parseQuote(event models.QuoteEvent) (models.Quote, error) {
	data := event.Data

	symbol := models.NormalizeSymbol(data.Symbol)
	if symbol == "" {
		return models.Quote{}, fmt.Errorf("quote event has no symbol")
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return models.Quote{}, fmt.Errorf("invalid price %q: %w", data.Price, err)
	}
	if !price.IsPositive() {
		return models.Quote{}, fmt.Errorf("invalid price %s for %s", price, symbol)
	}

	change := decimal.Zero
	if data.Change != "" {
		if change, err = decimal.NewFromString(data.Change); err != nil {
			return models.Quote{}, fmt.Errorf("invalid change %q: %w", data.Change, err)
		}
	}

	changePct := decimal.Zero
	if data.ChangePercent != "" {
		if changePct, err = decimal.NewFromString(data.ChangePercent); err != nil {
			return models.Quote{}, fmt.Errorf("invalid change_percent %q: %w", data.ChangePercent, err)
		}
	}

	return models.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		UpdatedAt:     parseTimestamp(data.UpdatedAt, event.Timestamp),
	}, nil
}

// parseTimestamp returns the first candidate that parses, or the current time
func parseTimestamp(candidates ...string) time.Time {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
			return t
		}
	}
	return time.Now()
}

// Close closes the Kafka consumer
func (c *QuoteConsumer) Close() error {
	return c.reader.Close()
}
