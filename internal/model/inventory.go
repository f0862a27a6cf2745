package model

import (
	"time"

	"github.com/google/uuid"
)

// ProductRef names exactly which stock a line or adjustment touches.
// Type is resolved once at ingress and never re-guessed.
type ProductRef struct {
	Type          ProductType `json:"product_type"`
	ProductID     uuid.UUID   `json:"product_id"`
	VariantID     *uuid.UUID  `json:"variant_id,omitempty"`
	CombinationID *uuid.UUID  `json:"combination_id,omitempty"`
	// VariantAID/VariantBID select a special product combination by its variant pair
	// when CombinationID is not given.
	VariantAID *uuid.UUID `json:"variant_a_id,omitempty"`
	VariantBID *uuid.UUID `json:"variant_b_id,omitempty"`
}

// ChangeType constants for the stock ledger
const (
	ChangeTypeSale         = "sale"
	ChangeTypeRestock      = "restock"
	ChangeTypeAdjustment   = "adjustment"
	ChangeTypeReturn       = "return"
	ChangeTypeCancellation = "cancellation"
)

// InventoryLog is the append-only record of one stock mutation on one stock-bearing row.
// ProductID is always the product whose stock changed; for composite sales
// SpecialProductID points at the composite that triggered it.
type InventoryLog struct {
	ID               uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductType      ProductType `gorm:"type:varchar(20);not null" json:"product_type"`
	ProductID        uuid.UUID   `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName      string      `gorm:"type:varchar(255)" json:"product_name"`
	VariantID        *uuid.UUID  `gorm:"type:uuid" json:"variant_id"`
	SpecialProductID *uuid.UUID  `gorm:"type:uuid;index" json:"special_product_id"`
	CombinationID    *uuid.UUID  `gorm:"type:uuid" json:"combination_id"`
	ChangeType       string      `gorm:"type:varchar(20);not null;index" json:"change_type"`
	Reason           string      `gorm:"type:text" json:"reason"`
	QuantityBefore   int         `gorm:"type:int;not null" json:"quantity_before"`
	QuantityAfter    int         `gorm:"type:int;not null" json:"quantity_after"`
	QuantityChange   int         `gorm:"type:int;not null" json:"quantity_change"`
	ActorID          *uuid.UUID  `gorm:"type:uuid;index" json:"actor_id"`
	OrderID          *uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	InvoiceID        *uuid.UUID  `gorm:"type:uuid" json:"invoice_id"`
	CreatedAt        time.Time   `gorm:"index" json:"created_at"`
}

// StockAlert flags a product whose aggregate stock is at or below the threshold.
// The partial unique index keeps at most one active alert per product.
type StockAlert struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_stock_alerts_active,unique,where:is_active = true" json:"product_id"`
	ProductName  string     `gorm:"type:varchar(255)" json:"product_name"`
	CurrentStock int        `gorm:"type:int;not null" json:"current_stock"`
	Threshold    int        `gorm:"type:int;not null" json:"threshold"`
	IsActive     bool       `gorm:"not null;default:true;index" json:"is_active"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
