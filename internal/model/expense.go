package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense categories
const (
	ExpenseCategoryRent      = "rent"
	ExpenseCategoryPayroll   = "payroll"
	ExpenseCategorySupplies  = "supplies"
	ExpenseCategoryLogistics = "logistics"
	ExpenseCategoryMarketing = "marketing"
	ExpenseCategoryOther     = "other"
)

// Expense is an operating cost entry read by the report renderer.
type Expense struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExpenseNumber string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"expense_number"`
	Category      string          `gorm:"type:varchar(30);not null;index" json:"category"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Description   string          `gorm:"type:text" json:"description"`
	DocumentURL   string          `gorm:"type:text" json:"document_url"`
	IncurredAt    time.Time       `gorm:"not null;index" json:"incurred_at"`
	CreatedBy     *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
