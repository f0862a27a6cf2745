package repository

import (
	"context"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderFilter struct {
	Status string
	Source string
	Search string // matches order number or customer name
	Page   int
	Limit  int
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ExistsByNumber(ctx context.Context, orderNumber string) (bool, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	// UpdateStatus moves the order to `to` only if it is still in status `from`.
	// It reports false when another writer changed the status first.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, fields map[string]interface{}) (bool, error)
	// MarkStockDeducted flips stock_deducted from false to true and reports whether it did.
	MarkStockDeducted(ctx context.Context, id uuid.UUID) (bool, error)
	// ReplaceItems swaps the line items and persists recomputed totals.
	ReplaceItems(ctx context.Context, order *model.Order) error
	UpdatePayment(ctx context.Context, id uuid.UUID, amountPaid decimal.Decimal, paymentStatus string) error
	CreateActivity(ctx context.Context, activity *model.OrderActivity) error
	ListActivities(ctx context.Context, orderID uuid.UUID) ([]model.OrderActivity, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ExistsByNumber(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Order{}).Where("order_number = ?", orderNumber).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Order{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		db = db.Where("source = ?", filter.Source)
	}
	if filter.Search != "" {
		db = db.Where("order_number ILIKE ? OR customer_name ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(filter.Page, filter.Limit)
	if err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := GetDB(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) MarkStockDeducted(ctx context.Context, id uuid.UUID) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND stock_deducted = ?", id, false).
		Update("stock_deducted", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) ReplaceItems(ctx context.Context, order *model.Order) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("order_id = ?", order.ID).Delete(&model.OrderItem{}).Error; err != nil {
		return err
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	if len(order.Items) > 0 {
		if err := db.Create(&order.Items).Error; err != nil {
			return err
		}
	}
	return db.Model(order).
		Select("subtotal", "discount", "tax_rate", "tax", "total", "cost", "profit").
		Updates(order).Error
}

func (r *orderRepository) UpdatePayment(ctx context.Context, id uuid.UUID, amountPaid decimal.Decimal, paymentStatus string) error {
	return GetDB(ctx, r.db).Model(&model.Order{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"amount_paid":    amountPaid,
			"payment_status": paymentStatus,
		}).Error
}

func (r *orderRepository) CreateActivity(ctx context.Context, activity *model.OrderActivity) error {
	return GetDB(ctx, r.db).Create(activity).Error
}

func (r *orderRepository) ListActivities(ctx context.Context, orderID uuid.UUID) ([]model.OrderActivity, error) {
	var activities []model.OrderActivity
	if err := GetDB(ctx, r.db).Where("order_id = ?", orderID).Order("created_at ASC").Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}
