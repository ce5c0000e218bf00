package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is the ledger row for one product in one warehouse. Quantity never
// goes below zero; the database CHECK constraint backs up the application
// guard.
type Stock struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StockMovement records one ledger change, signed.
type StockMovement struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	WarehouseID    string          `json:"warehouse_id"`
	QuantityChange decimal.Decimal `json:"quantity_change"`
	Reason         string          `json:"reason"`
	ReferenceID    *string         `json:"reference_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Stock movement reasons.
const (
	MovementReasonSupply     = "supply_received"
	MovementReasonOrder      = "order"
	MovementReasonAdjustment = "adjustment"
)

// ValidMovementReasons returns the set of recognised movement reasons.
func ValidMovementReasons() []string {
	return []string{MovementReasonSupply, MovementReasonOrder, MovementReasonAdjustment}
}

// IsValidMovementReason checks whether the given reason is recognised.
func IsValidMovementReason(reason string) bool {
	for _, r := range ValidMovementReasons() {
		if r == reason {
			return true
		}
	}
	return false
}
