package repository

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryLogFilter struct {
	ProductID  *uuid.UUID
	OrderID    *uuid.UUID
	ChangeType string
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

// InventoryLogRepository is append-only: there is no update or delete.
type InventoryLogRepository interface {
	Create(ctx context.Context, entry *model.InventoryLog) error
	List(ctx context.Context, filter InventoryLogFilter) ([]model.InventoryLog, int64, error)
}

type inventoryLogRepository struct {
	db *gorm.DB
}

func NewInventoryLogRepository(db *gorm.DB) InventoryLogRepository {
	return &inventoryLogRepository{db: db}
}

func (r *inventoryLogRepository) Create(ctx context.Context, entry *model.InventoryLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *inventoryLogRepository) List(ctx context.Context, filter InventoryLogFilter) ([]model.InventoryLog, int64, error) {
	var logs []model.InventoryLog
	var total int64

	db := GetDB(ctx, r.db).Model(&model.InventoryLog{})
	if filter.ProductID != nil {
		db = db.Where("product_id = ? OR special_product_id = ?", *filter.ProductID, *filter.ProductID)
	}
	if filter.OrderID != nil {
		db = db.Where("order_id = ?", *filter.OrderID)
	}
	if filter.ChangeType != "" {
		db = db.Where("change_type = ?", filter.ChangeType)
	}
	if filter.From != nil {
		db = db.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("created_at < ?", *filter.To)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(filter.Page, filter.Limit)
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

type StockAlertRepository interface {
	// FindActive returns the active alert for a product, or nil when there is none.
	FindActive(ctx context.Context, productID uuid.UUID) (*model.StockAlert, error)
	// Create inserts an active alert and reports false if another active alert won the race.
	Create(ctx context.Context, alert *model.StockAlert) (bool, error)
	UpdateStock(ctx context.Context, id uuid.UUID, currentStock int) error
	Resolve(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error
	ListActive(ctx context.Context) ([]model.StockAlert, error)
}

type stockAlertRepository struct {
	db *gorm.DB
}

func NewStockAlertRepository(db *gorm.DB) StockAlertRepository {
	return &stockAlertRepository{db: db}
}

func (r *stockAlertRepository) FindActive(ctx context.Context, productID uuid.UUID) (*model.StockAlert, error) {
	var alert model.StockAlert
	err := GetDB(ctx, r.db).Where("product_id = ? AND is_active = ?", productID, true).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// activeAlertConflict targets the partial unique index idx_stock_alerts_active.
// The predicate must be literal SQL for Postgres to infer that index.
var activeAlertConflict = clause.OnConflict{
	Columns:     []clause.Column{{Name: "product_id"}},
	TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "is_active = TRUE"}}},
	DoNothing:   true,
}

func (r *stockAlertRepository) Create(ctx context.Context, alert *model.StockAlert) (bool, error) {
	res := GetDB(ctx, r.db).Clauses(activeAlertConflict).Create(alert)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *stockAlertRepository) UpdateStock(ctx context.Context, id uuid.UUID, currentStock int) error {
	return GetDB(ctx, r.db).Model(&model.StockAlert{}).Where("id = ?", id).Update("current_stock", currentStock).Error
}

func (r *stockAlertRepository) Resolve(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error {
	return GetDB(ctx, r.db).Model(&model.StockAlert{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "resolved_at": resolvedAt}).Error
}

func (r *stockAlertRepository) ListActive(ctx context.Context) ([]model.StockAlert, error) {
	var alerts []model.StockAlert
	if err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("current_stock ASC").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
