package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/farmlink/agrimarket/internal/domain"
	pkgkafka "github.com/farmlink/agrimarket/pkg/kafka"
)

// Kafka topic constants for marketplace domain events.
const (
	TopicSupplyReceived     = pkgkafka.TopicPrefix + ".supply.received"
	TopicOrderCreated       = pkgkafka.TopicPrefix + ".order.created"
	TopicOrderStatusChanged = pkgkafka.TopicPrefix + ".order.status_changed"
	TopicDeliveryUpdated    = pkgkafka.TopicPrefix + ".delivery.updated"
)

// Aggregate type constants.
const (
	AggregateTypeApprovisionnement = "approvisionnement"
	AggregateTypeOrder             = "order"
	AggregateTypeDelivery          = "delivery"
)

// Source identifier for events originating from this service.
const SourceAgrimarket = "agrimarket-core"

// SupplyReceivedData is the payload for a supply.received event.
type SupplyReceivedData struct {
	ApprovisionnementID string          `json:"approvisionnement_id"`
	ProductID           string          `json:"product_id"`
	WarehouseID         string          `json:"warehouse_id"`
	Quantity            decimal.Decimal `json:"quantity"`
	StockManagerID      string          `json:"stock_manager_id"`
}

// OrderCreatedData is the payload for an order.created event.
type OrderCreatedData struct {
	OrderID     string          `json:"order_id"`
	ClientID    string          `json:"client_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID    string `json:"order_id"`
	ClientID   string `json:"client_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// DeliveryUpdatedData is the payload for a delivery.updated event.
type DeliveryUpdatedData struct {
	DeliveryID string  `json:"delivery_id"`
	OrderID    string  `json:"order_id"`
	DriverID   *string `json:"driver_id,omitempty"`
	Status     string  `json:"status"`
}

// Producer publishes marketplace domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishSupplyReceived publishes a supply.received event after an
// approvisionnement lands in the stock ledger.
func (p *Producer) PublishSupplyReceived(ctx context.Context, a *domain.Approvisionnement) error {
	var manager string
	if a.StockManagerID != nil {
		manager = *a.StockManagerID
	}
	data := SupplyReceivedData{
		ApprovisionnementID: a.ID,
		ProductID:           a.ProductID,
		WarehouseID:         a.WarehouseID,
		Quantity:            a.Quantity,
		StockManagerID:      manager,
	}

	event, err := pkgkafka.NewEvent(TopicSupplyReceived, a.ID, AggregateTypeApprovisionnement, SourceAgrimarket, data)
	if err != nil {
		return fmt.Errorf("create supply.received event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSupplyReceived, event); err != nil {
		return fmt.Errorf("publish supply.received event: %w", err)
	}

	p.logger.DebugContext(ctx, "published supply.received event",
		slog.String("approvisionnement_id", a.ID),
		slog.String("product_id", a.ProductID),
	)
	return nil
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	data := OrderCreatedData{
		OrderID:     o.ID,
		ClientID:    o.ClientID,
		TotalAmount: o.TotalAmount,
		ItemCount:   len(o.Items),
	}

	event, err := pkgkafka.NewEvent(TopicOrderCreated, o.ID, AggregateTypeOrder, SourceAgrimarket, data)
	if err != nil {
		return fmt.Errorf("create order.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCreated, event); err != nil {
		return fmt.Errorf("publish order.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", o.ID),
		slog.String("client_id", o.ClientID),
	)
	return nil
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, o *domain.Order, fromStatus string) error {
	data := OrderStatusChangedData{
		OrderID:    o.ID,
		ClientID:   o.ClientID,
		FromStatus: fromStatus,
		ToStatus:   o.Status,
	}

	event, err := pkgkafka.NewEvent(TopicOrderStatusChanged, o.ID, AggregateTypeOrder, SourceAgrimarket, data)
	if err != nil {
		return fmt.Errorf("create order.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderStatusChanged, event); err != nil {
		return fmt.Errorf("publish order.status_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.status_changed event",
		slog.String("order_id", o.ID),
		slog.String("from", fromStatus),
		slog.String("to", o.Status),
	)
	return nil
}

// PublishDeliveryUpdated publishes a delivery.updated event.
func (p *Producer) PublishDeliveryUpdated(ctx context.Context, d *domain.Delivery) error {
	data := DeliveryUpdatedData{
		DeliveryID: d.ID,
		OrderID:    d.OrderID,
		DriverID:   d.DriverID,
		Status:     d.Status,
	}

	event, err := pkgkafka.NewEvent(TopicDeliveryUpdated, d.ID, AggregateTypeDelivery, SourceAgrimarket, data)
	if err != nil {
		return fmt.Errorf("create delivery.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicDeliveryUpdated, event); err != nil {
		return fmt.Errorf("publish delivery.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published delivery.updated event",
		slog.String("delivery_id", d.ID),
		slog.String("order_id", d.OrderID),
		slog.String("status", d.Status),
	)
	return nil
}
