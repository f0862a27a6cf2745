package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus constants. Overdue is never stored; see EffectiveStatus.
const (
	InvoiceStatusDraft    = "draft"
	InvoiceStatusSent     = "sent"
	InvoiceStatusPartial  = "partial"
	InvoiceStatusPaid     = "paid"
	InvoiceStatusOverdue  = "overdue"
	InvoiceStatusCanceled = "canceled"
)

// Invoice is derived from exactly one Order and settled by partial payments.
type Invoice struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceNumber   string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"invoice_number"`
	OrderID         uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	OrderNumber     string          `gorm:"type:varchar(50)" json:"order_number"`
	CustomerName    string          `gorm:"type:varchar(255)" json:"customer_name"`
	Items           []InvoiceItem   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	Discount        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"discount"`
	Tax             decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"tax"`
	Total           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"paid_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"remaining_amount"`
	Status          string          `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	DueDate         time.Time       `gorm:"not null;index" json:"due_date"`
	SentAt          *time.Time      `json:"sent_at"`
	PaidAt          *time.Time      `json:"paid_at"`
	CanceledAt      *time.Time      `json:"canceled_at"`
	Payments        []Payment       `gorm:"foreignKey:InvoiceID" json:"payments"`
	PdfPath         string          `gorm:"type:text" json:"pdf_path"`
	EmailSent       bool            `gorm:"not null;default:false" json:"email_sent"`
	EmailSentAt     *time.Time      `json:"email_sent_at"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EffectiveStatus derives overdue at read time from the due date.
func (inv *Invoice) EffectiveStatus(now time.Time) string {
	switch inv.Status {
	case InvoiceStatusPaid, InvoiceStatusCanceled:
		return inv.Status
	}
	if inv.DueDate.Before(now) {
		return InvoiceStatusOverdue
	}
	return inv.Status
}

// InvoiceItem is a point-in-time copy of an order line.
type InvoiceItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position     int             `gorm:"type:int;not null;default:0" json:"position"`
	ProductType  ProductType     `gorm:"type:varchar(20);not null" json:"product_type"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	ProductName  string          `gorm:"type:varchar(255);not null" json:"product_name"`
	VariantLabel string          `gorm:"type:varchar(255)" json:"variant_label"`
	Quantity     int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Discount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Total        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`
}

// Payment is an append-only settlement entry against an invoice.
type Payment struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Method     string          `gorm:"type:varchar(30)" json:"method"`
	Reference  string          `gorm:"type:varchar(255)" json:"reference"`
	RecordedBy *uuid.UUID      `gorm:"type:uuid" json:"recorded_by"`
	PaidAt     time.Time       `json:"paid_at"`
	CreatedAt  time.Time       `json:"created_at"`
}
