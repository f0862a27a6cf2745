package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{OrderStatusPending, OrderStatusPreparing, true},
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusReady, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusCompleted, true},
		{OrderStatusReady, OrderStatusPreparing, false},
		{OrderStatusPreparing, OrderStatusPreparing, false},
		{OrderStatusPending, OrderStatusCanceled, true},
		{OrderStatusDelivered, OrderStatusCanceled, true},
		{OrderStatusCompleted, OrderStatusCanceled, false},
		{OrderStatusCanceled, OrderStatusPending, false},
		{OrderStatusPending, "shipped", false},
		{"shipped", OrderStatusReady, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestValidOrderStatus(t *testing.T) {
	assert.True(t, ValidOrderStatus(OrderStatusCanceled))
	assert.True(t, ValidOrderStatus(OrderStatusReady))
	assert.False(t, ValidOrderStatus("archived"))
}

func TestOrderSourceValid(t *testing.T) {
	for _, s := range []OrderSource{SourceCatalog, SourcePOS, SourceCommercialPOS, SourceAdmin, SourcePage} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, OrderSource("marketplace").Valid())
}

func TestInvoiceEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		status string
		due    time.Time
		want   string
	}{
		{"draft not due", InvoiceStatusDraft, future, InvoiceStatusDraft},
		{"draft past due", InvoiceStatusDraft, past, InvoiceStatusOverdue},
		{"partial past due", InvoiceStatusPartial, past, InvoiceStatusOverdue},
		{"paid past due", InvoiceStatusPaid, past, InvoiceStatusPaid},
		{"canceled past due", InvoiceStatusCanceled, past, InvoiceStatusCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invoice{Status: tt.status, DueDate: tt.due}
			assert.Equal(t, tt.want, inv.EffectiveStatus(now))
		})
	}
}
