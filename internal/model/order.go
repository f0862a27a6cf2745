package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSource is the channel an order was taken on.
type OrderSource string

const (
	SourceCatalog       OrderSource = "catalog"
	SourcePOS           OrderSource = "pos"
	SourceCommercialPOS OrderSource = "commercial_pos"
	SourceAdmin         OrderSource = "admin"
	SourcePage          OrderSource = "page"
)

// Valid reports whether s is a known sales channel.
func (s OrderSource) Valid() bool {
	switch s {
	case SourceCatalog, SourcePOS, SourceCommercialPOS, SourceAdmin, SourcePage:
		return true
	}
	return false
}

// PriceTier selects which product price field applies to a line.
type PriceTier string

const (
	TierWholesale PriceTier = "wholesale"
	TierRetail    PriceTier = "retail"
	TierChannel   PriceTier = "channel"
)

// OrderStatus constants
const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusDelivered = "delivered"
	OrderStatusCompleted = "completed"
	OrderStatusCanceled  = "canceled"
)

// orderStatusRank orders the forward path. Canceled is off the path.
var orderStatusRank = map[string]int{
	OrderStatusPending:   1,
	OrderStatusPreparing: 2,
	OrderStatusReady:     3,
	OrderStatusDelivered: 4,
	OrderStatusCompleted: 5,
}

// ValidOrderStatus reports whether status is a known order status.
func ValidOrderStatus(status string) bool {
	_, ok := orderStatusRank[status]
	return ok || status == OrderStatusCanceled
}

// CanTransition reports whether an order may move from one status to another.
// Moves go forward along the path, possibly skipping steps; canceled is reachable
// from any non-terminal status.
func CanTransition(from, to string) bool {
	if from == OrderStatusCompleted || from == OrderStatusCanceled {
		return false
	}
	if to == OrderStatusCanceled {
		return true
	}
	fromRank, ok := orderStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := orderStatusRank[to]
	return ok && toRank > fromRank
}

// PaymentStatus constants mirrored on the order from its invoice.
const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPartial = "partial"
	PaymentStatusPaid    = "paid"
)

// Order activity actions
const (
	ActivityCreated       = "created"
	ActivityStatusChanged = "status_changed"
	ActivityItemsUpdated  = "items_updated"
	ActivityReconciled    = "stock_reconciled"
)

// Order is the sales aggregate. Line items snapshot name and price at creation time.
type Order struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber   string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"order_number"`
	Source        OrderSource     `gorm:"type:varchar(30);not null;index" json:"source"`
	PriceTier     PriceTier       `gorm:"type:varchar(20);not null" json:"price_tier"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CustomerName  string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone string          `gorm:"type:varchar(50)" json:"customer_phone"`
	Notes         string          `gorm:"type:text" json:"notes"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"subtotal"`
	Discount      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"discount"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0" json:"tax_rate"`
	Tax           decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"tax"`
	Total         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total"`
	Cost          decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"cost"`
	Profit        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"profit"`
	PaymentMethod string          `gorm:"type:varchar(30)" json:"payment_method"`
	PaymentStatus string          `gorm:"type:varchar(20);not null;default:'unpaid'" json:"payment_status"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"amount_paid"`
	StockDeducted bool            `gorm:"not null;default:false" json:"stock_deducted"`
	CreatedBy     *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CompletedAt   *time.Time      `json:"completed_at"`
	CanceledAt    *time.Time      `json:"canceled_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsTerminal reports whether no further transitions or edits are allowed.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCanceled
}

// OrderItem is one priced line. UnitPrice and Cost are per unit.
type OrderItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	Position      int             `gorm:"type:int;not null;default:0" json:"position"`
	ProductType   ProductType     `gorm:"type:varchar(20);not null" json:"product_type"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantID     *uuid.UUID      `gorm:"type:uuid" json:"variant_id"`
	CombinationID *uuid.UUID      `gorm:"type:uuid" json:"combination_id"`
	ProductName   string          `gorm:"type:varchar(255);not null" json:"product_name"`
	VariantLabel  string          `gorm:"type:varchar(255)" json:"variant_label"`
	Quantity      int             `gorm:"type:int;not null;check:quantity >= 1" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Cost          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"cost"`
	Discount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	Total         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`
}

// Ref returns the stock reference the line consumes.
func (i OrderItem) Ref() ProductRef {
	return ProductRef{
		Type:          i.ProductType,
		ProductID:     i.ProductID,
		VariantID:     i.VariantID,
		CombinationID: i.CombinationID,
	}
}

// OrderActivity is the immutable audit row for every order state change.
type OrderActivity struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	Action     string     `gorm:"type:varchar(30);not null" json:"action"`
	FromStatus string     `gorm:"type:varchar(20)" json:"from_status"`
	ToStatus   string     `gorm:"type:varchar(20)" json:"to_status"`
	ActorID    *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"`
	Note       string     `gorm:"type:text" json:"note"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
