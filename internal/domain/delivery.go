package domain

import "time"

// Delivery status constants.
const (
	DeliveryStatusAssigned  = "ASSIGNED"
	DeliveryStatusInTransit = "IN_TRANSIT"
	DeliveryStatusDelivered = "DELIVERED"
)

// Delivery tracks the hand-off of a shipped order. Exactly one delivery
// exists per order once it leaves PENDING.
type Delivery struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	DriverID  *string   `json:"driver_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidDeliveryStatuses returns all valid delivery statuses.
func ValidDeliveryStatuses() []string {
	return []string{DeliveryStatusAssigned, DeliveryStatusInTransit, DeliveryStatusDelivered}
}

// IsValidDeliveryStatus checks if a status string is valid.
func IsValidDeliveryStatus(status string) bool {
	for _, s := range ValidDeliveryStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// DeliveryAllowedTransitions defines which status transitions are valid.
// A delivery may skip IN_TRANSIT for same-site hand-offs.
func DeliveryAllowedTransitions() map[string][]string {
	return map[string][]string{
		DeliveryStatusAssigned:  {DeliveryStatusInTransit, DeliveryStatusDelivered},
		DeliveryStatusInTransit: {DeliveryStatusDelivered},
		DeliveryStatusDelivered: {},
	}
}

// CanTransitionTo checks if the delivery can move to the target status.
func (d *Delivery) CanTransitionTo(target string) bool {
	allowed, ok := DeliveryAllowedTransitions()[d.Status]
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

// AssignedTo reports whether the delivery is currently assigned to driverID.
func (d *Delivery) AssignedTo(driverID string) bool {
	return d.DriverID != nil && *d.DriverID == driverID
}
