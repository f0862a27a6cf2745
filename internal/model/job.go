package model

import (
	"time"

	"github.com/google/uuid"
)

// Job status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// Job types
const (
	JobTypeInvoicePDF   = "invoice.pdf"
	JobTypeInvoiceEmail = "invoice.email"
)

// Job is the idempotent record shared with the background queue.
type Job struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Type           string     `gorm:"type:varchar(50);not null;index" json:"type"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Payload        string     `gorm:"type:jsonb;not null" json:"payload"`
	IdempotencyKey string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"idempotency_key"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts    int        `gorm:"not null;default:3" json:"max_attempts"`
	LastError      string     `gorm:"type:text" json:"last_error"`
	RunAt          time.Time  `gorm:"not null;index" json:"run_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
