package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status constants.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Payment method constants.
const (
	PaymentCash        = "CASH"
	PaymentCard        = "CARD"
	PaymentMobileMoney = "MOBILE_MONEY"
)

// Order is a client purchase against one warehouse. Items carry the unit
// price snapshotted at creation time, so later stock price changes never
// alter the total.
type Order struct {
	ID              string          `json:"id"`
	ClientID        string          `json:"client_id"`
	WarehouseID     string          `json:"warehouse_id"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress string          `json:"shipping_address"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Items           []OrderItem     `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ValidOrderStatuses returns all valid order statuses.
func ValidOrderStatuses() []string {
	return []string{OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled}
}

// IsValidOrderStatus checks if a status string is valid.
func IsValidOrderStatus(status string) bool {
	for _, s := range ValidOrderStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidPaymentMethods returns the accepted payment methods.
func ValidPaymentMethods() []string {
	return []string{PaymentCash, PaymentCard, PaymentMobileMoney}
}

// IsValidPaymentMethod checks if a payment method is accepted.
func IsValidPaymentMethod(method string) bool {
	for _, m := range ValidPaymentMethods() {
		if m == method {
			return true
		}
	}
	return false
}

// OrderAllowedTransitions defines which status transitions are valid.
// DELIVERED and CANCELLED are terminal.
func OrderAllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:   {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
		OrderStatusShipped:   {OrderStatusDelivered},
		OrderStatusDelivered: {},
		OrderStatusCancelled: {},
	}
}

// CanTransitionTo checks if the order can move to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := OrderAllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}
