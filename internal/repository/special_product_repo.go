package repository

import (
	"context"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SpecialProductRepository interface {
	Create(ctx context.Context, sp *model.SpecialProduct) error
	Update(ctx context.Context, sp *model.SpecialProduct) error
	Delete(ctx context.Context, id uuid.UUID) error
	// FindByID preloads combinations and both base products with their variants.
	FindByID(ctx context.Context, id uuid.UUID) (*model.SpecialProduct, error)
	ExistsBySlug(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error)
	List(ctx context.Context, search string, page, limit int) ([]model.SpecialProduct, int64, error)
	CreateCombinations(ctx context.Context, combinations []model.Combination) error
	UpdateCombination(ctx context.Context, combination *model.Combination) error
}

type specialProductRepository struct {
	db *gorm.DB
}

func NewSpecialProductRepository(db *gorm.DB) SpecialProductRepository {
	return &specialProductRepository{db: db}
}

func (r *specialProductRepository) Create(ctx context.Context, sp *model.SpecialProduct) error {
	return GetDB(ctx, r.db).Omit("BaseProductA", "BaseProductB").Create(sp).Error
}

func (r *specialProductRepository) Update(ctx context.Context, sp *model.SpecialProduct) error {
	return GetDB(ctx, r.db).Model(sp).
		Select("name", "slug", "description", "image", "final_price", "cost", "is_active").
		Updates(sp).Error
}

func (r *specialProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.SpecialProduct{}).Error
}

func (r *specialProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.SpecialProduct, error) {
	var sp model.SpecialProduct
	if err := GetDB(ctx, r.db).
		Preload("Combinations", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("BaseProductA").
		Preload("BaseProductA.Variants").
		Preload("BaseProductB").
		Preload("BaseProductB.Variants").
		First(&sp, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *specialProductRepository) ExistsBySlug(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	db := GetDB(ctx, r.db).Model(&model.SpecialProduct{}).Where("slug = ?", slug)
	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *specialProductRepository) List(ctx context.Context, search string, page, limit int) ([]model.SpecialProduct, int64, error) {
	var items []model.SpecialProduct
	var total int64

	db := GetDB(ctx, r.db).Model(&model.SpecialProduct{})
	if search != "" {
		db = db.Where("name ILIKE ?", "%"+search+"%")
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(page, limit)
	if err := db.
		Preload("Combinations").
		Preload("BaseProductA.Variants").
		Preload("BaseProductB.Variants").
		Order("created_at desc").Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *specialProductRepository) CreateCombinations(ctx context.Context, combinations []model.Combination) error {
	if len(combinations) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&combinations).Error
}

func (r *specialProductRepository) UpdateCombination(ctx context.Context, combination *model.Combination) error {
	return GetDB(ctx, r.db).Model(combination).
		Select("label", "final_image", "additional_price").
		Updates(combination).Error
}
