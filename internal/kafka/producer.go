package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/paper-trading-ledger/internal/models"
)

// messageWriter is implemented by *kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes ledger events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishTradeExecuted publishes a filled buy or sell
func (p *Producer) PublishTradeExecuted(ctx context.Context, accountID string, tx models.Transaction) error {
	event := models.LedgerEvent{
		EventType:   models.EventTradeExecuted,
		AccountID:   accountID,
		Symbol:      tx.Symbol,
		Transaction: &tx,
		Timestamp:   p.now(),
	}
	return p.publish(ctx, accountID, event)
}

// PublishWatchlistChanged publishes a watchlist add or remove
func (p *Producer) PublishWatchlistChanged(ctx context.Context, accountID, symbol string, added bool) error {
	eventType := models.EventWatchlistRemoved
	if added {
		eventType = models.EventWatchlistAdded
	}
	event := models.LedgerEvent{
		EventType: eventType,
		AccountID: accountID,
		Symbol:    symbol,
		Timestamp: p.now(),
	}
	return p.publish(ctx, accountID, event)
}

// PublishLedgerReset publishes an account reset
func (p *Producer) PublishLedgerReset(ctx context.Context, accountID string) error {
	event := models.LedgerEvent{
		EventType: models.EventLedgerReset,
		AccountID: accountID,
		Timestamp: p.now(),
	}
	return p.publish(ctx, accountID, event)
}

// publish keys every event by account so one account's events stay ordered
// on a single partition.
func (p *Producer) publish(ctx context.Context, key string, event models.LedgerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
