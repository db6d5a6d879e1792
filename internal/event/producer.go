package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/wreckyard/checkout/internal/domain"
	pkgkafka "github.com/wreckyard/checkout/pkg/kafka"
)

// Kafka topic constants for checkout domain events.
const (
	TopicCartUpdated         = "wreckyard.cart.updated"
	TopicCartCleared         = "wreckyard.cart.cleared"
	TopicOrderCompleted      = "wreckyard.order.completed"
	TopicFulfillmentDegraded = "wreckyard.order.fulfillment_degraded"
	TopicOrderRecordFailed   = "wreckyard.order.record_failed"
)

// Aggregate type constants.
const (
	AggregateTypeCart  = "cart"
	AggregateTypeOrder = "order"
)

// Source identifier for events originating from the checkout service.
const SourceCheckoutService = "checkout-service"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	UserID    string          `json:"user_id"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Currency  string          `json:"currency"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	UserID string `json:"user_id"`
}

// OrderCompletedData is the payload for an order.completed event.
type OrderCompletedData struct {
	UserID    string          `json:"user_id"`
	PaymentID string          `json:"payment_id"`
	OrderRef  string          `json:"order_ref,omitempty"`
	Degraded  bool            `json:"degraded"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
}

// FollowUpData is the payload for fulfillment_degraded and record_failed events.
type FollowUpData struct {
	UserID    string `json:"user_id"`
	PaymentID string `json:"payment_id"`
	Detail    string `json:"detail"`
}

// Producer publishes checkout domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the checkout service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	data := CartUpdatedData{
		UserID:    cart.UserID,
		ItemCount: cart.ItemCount(),
		Subtotal:  cart.Subtotal(),
		Currency:  cart.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicCartUpdated, cart.UserID, AggregateTypeCart, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("user_id", cart.UserID),
		slog.Int("item_count", cart.ItemCount()),
	)

	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string) error {
	data := CartClearedData{UserID: userID}

	event, err := pkgkafka.NewEvent(TopicCartCleared, userID, AggregateTypeCart, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("user_id", userID),
	)

	return nil
}

// PublishOrderCompleted publishes an order.completed event.
func (p *Producer) PublishOrderCompleted(ctx context.Context, userID string, result *domain.OrderResult) error {
	data := OrderCompletedData{
		UserID:    userID,
		PaymentID: result.PaymentID,
		OrderRef:  result.OrderRef,
		Degraded:  result.Degraded,
		Total:     result.Total,
		Currency:  result.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicOrderCompleted, result.PaymentID, AggregateTypeOrder, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create order.completed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCompleted, event); err != nil {
		return fmt.Errorf("publish order.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.completed event",
		slog.String("user_id", userID),
		slog.String("payment_id", result.PaymentID),
		slog.Bool("degraded", result.Degraded),
	)

	return nil
}

// PublishFulfillmentDegraded publishes an order.fulfillment_degraded event for
// an order that was recorded but not submitted to the external system.
func (p *Producer) PublishFulfillmentDegraded(ctx context.Context, userID, paymentID, detail string) error {
	data := FollowUpData{UserID: userID, PaymentID: paymentID, Detail: detail}

	event, err := pkgkafka.NewEvent(TopicFulfillmentDegraded, paymentID, AggregateTypeOrder, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create fulfillment_degraded event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicFulfillmentDegraded, event); err != nil {
		return fmt.Errorf("publish fulfillment_degraded event: %w", err)
	}

	return nil
}

// PublishOrderRecordFailed publishes an order.record_failed event for a
// captured payment with no recorded order.
func (p *Producer) PublishOrderRecordFailed(ctx context.Context, userID, paymentID, detail string) error {
	data := FollowUpData{UserID: userID, PaymentID: paymentID, Detail: detail}

	event, err := pkgkafka.NewEvent(TopicOrderRecordFailed, paymentID, AggregateTypeOrder, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create record_failed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderRecordFailed, event); err != nil {
		return fmt.Errorf("publish record_failed event: %w", err)
	}

	return nil
}
