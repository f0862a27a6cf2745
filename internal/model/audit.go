package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateProduct        = "CREATE_PRODUCT"
	ActionUpdateProduct        = "UPDATE_PRODUCT"
	ActionDeleteProduct        = "DELETE_PRODUCT"
	ActionCreateSpecialProduct = "CREATE_SPECIAL_PRODUCT"
	ActionUpdateSpecialProduct = "UPDATE_SPECIAL_PRODUCT"
	ActionDeleteSpecialProduct = "DELETE_SPECIAL_PRODUCT"
	ActionGenerateCombinations = "GENERATE_COMBINATIONS"
	ActionCreateExpense        = "CREATE_EXPENSE"
)

// AuditLog tracks Who, What, and When for catalog and expense changes.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID    *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"` // nil for automated changes
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
