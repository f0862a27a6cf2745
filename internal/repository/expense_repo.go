package repository

import (
	"context"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExpenseFilter struct {
	Category string
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error)
	ExistsByNumber(ctx context.Context, expenseNumber string) (bool, error)
	List(ctx context.Context, filter ExpenseFilter) ([]model.Expense, int64, error)
}

type expenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return GetDB(ctx, r.db).Create(expense).Error
}

func (r *expenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	if err := GetDB(ctx, r.db).First(&expense, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *expenseRepository) ExistsByNumber(ctx context.Context, expenseNumber string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Expense{}).Where("expense_number = ?", expenseNumber).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *expenseRepository) List(ctx context.Context, filter ExpenseFilter) ([]model.Expense, int64, error) {
	var expenses []model.Expense
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Expense{})
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.From != nil {
		db = db.Where("incurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("incurred_at < ?", *filter.To)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(filter.Page, filter.Limit)
	if err := db.Order("incurred_at desc").Offset(offset).Limit(limit).Find(&expenses).Error; err != nil {
		return nil, 0, err
	}

	return expenses, total, nil
}
