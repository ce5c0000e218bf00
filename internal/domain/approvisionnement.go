package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Approvisionnement status constants.
const (
	ApproStatusPending   = "PENDING"
	ApproStatusApproved  = "APPROVED"
	ApproStatusReceived  = "RECEIVED"
	ApproStatusRejected  = "REJECTED"
	ApproStatusCancelled = "CANCELLED"
)

// Approvisionnement is a supplier's request to bring goods into a warehouse.
// The stock ledger is only touched on the APPROVED -> RECEIVED transition.
type Approvisionnement struct {
	ID                  string          `json:"id"`
	ProductID           string          `json:"product_id"`
	WarehouseID         string          `json:"warehouse_id"`
	SupplierID          string          `json:"supplier_id"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	DeliveryDate        *time.Time      `json:"delivery_date,omitempty"`
	Status              string          `json:"status"`
	BusinessDeveloperID *string         `json:"business_developer_id,omitempty"`
	StockManagerID      *string         `json:"stock_manager_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ValidApproStatuses returns all valid approvisionnement statuses.
func ValidApproStatuses() []string {
	return []string{
		ApproStatusPending, ApproStatusApproved, ApproStatusReceived,
		ApproStatusRejected, ApproStatusCancelled,
	}
}

// IsValidApproStatus checks if a status string is valid.
func IsValidApproStatus(status string) bool {
	for _, s := range ValidApproStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ApproAllowedTransitions defines which status transitions are valid.
// RECEIVED, REJECTED and CANCELLED are terminal.
func ApproAllowedTransitions() map[string][]string {
	return map[string][]string{
		ApproStatusPending:   {ApproStatusApproved, ApproStatusRejected, ApproStatusCancelled},
		ApproStatusApproved:  {ApproStatusReceived},
		ApproStatusReceived:  {},
		ApproStatusRejected:  {},
		ApproStatusCancelled: {},
	}
}

// CanTransitionTo checks if the approvisionnement can move to the target status.
func (a *Approvisionnement) CanTransitionTo(target string) bool {
	allowed, ok := ApproAllowedTransitions()[a.Status]
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
