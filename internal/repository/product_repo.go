package repository

import (
	"context"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductFilter struct {
	Search     string
	CategoryID *uuid.UUID
	ActiveOnly bool
	Page       int
	Limit      int
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ExistsBySlug(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	CreateVariant(ctx context.Context, variant *model.ProductVariant) error
	UpdateVariant(ctx context.Context, variant *model.ProductVariant) error
	DeleteVariant(ctx context.Context, productID, variantID uuid.UUID) error
	// AdjustBaseStock applies stock = max(0, stock + delta) in a single statement.
	AdjustBaseStock(ctx context.Context, id uuid.UUID, delta int) (StockChange, error)
	// AdjustVariantStock applies stock = max(0, stock + delta) to one variant in a single statement.
	AdjustVariantStock(ctx context.Context, productID, variantID uuid.UUID, delta int) (StockChange, error)
	// DeductBaseStock subtracts qty only when stock >= qty, otherwise ErrStockShortfall.
	DeductBaseStock(ctx context.Context, id uuid.UUID, qty int) (StockChange, error)
	// DeductVariantStock subtracts qty from one variant only when stock >= qty, otherwise ErrStockShortfall.
	DeductVariantStock(ctx context.Context, productID, variantID uuid.UUID, qty int) (StockChange, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Create(product).Error
}

// Update never writes stock columns; stock only moves through the ledger.
func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Model(product).
		Select("sku", "name", "slug", "category_id", "description", "image",
			"retail_price", "wholesale_price", "channel_price", "cost", "is_active").
		Updates(product).Error
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Product{}).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := GetDB(ctx, r.db).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ExistsBySlug(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	db := GetDB(ctx, r.db).Model(&model.Product{}).Where("slug = ?", slug)
	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Product{})
	if filter.Search != "" {
		db = db.Where("name ILIKE ? OR sku ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.CategoryID != nil {
		db = db.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(filter.Page, filter.Limit)
	if err := db.Preload("Variants").Order("created_at desc").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *productRepository) CreateVariant(ctx context.Context, variant *model.ProductVariant) error {
	return GetDB(ctx, r.db).Create(variant).Error
}

func (r *productRepository) UpdateVariant(ctx context.Context, variant *model.ProductVariant) error {
	return GetDB(ctx, r.db).Model(variant).
		Select("value", "image", "additional_price").
		Updates(variant).Error
}

func (r *productRepository) DeleteVariant(ctx context.Context, productID, variantID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ? AND product_id = ?", variantID, productID).Delete(&model.ProductVariant{}).Error
}

func (r *productRepository) AdjustBaseStock(ctx context.Context, id uuid.UUID, delta int) (StockChange, error) {
	var change StockChange
	res := GetDB(ctx, r.db).Raw(`
		UPDATE products AS p
		SET base_stock = GREATEST(p.base_stock + ?, 0), updated_at = NOW()
		FROM (SELECT id, base_stock FROM products WHERE id = ? AND deleted_at IS NULL FOR UPDATE) AS old
		WHERE p.id = old.id
		RETURNING old.base_stock AS before, p.base_stock AS after
	`, delta, id).Scan(&change)
	if res.Error != nil {
		return StockChange{}, res.Error
	}
	if res.RowsAffected == 0 {
		return StockChange{}, gorm.ErrRecordNotFound
	}
	return change, nil
}

func (r *productRepository) AdjustVariantStock(ctx context.Context, productID, variantID uuid.UUID, delta int) (StockChange, error) {
	var change StockChange
	res := GetDB(ctx, r.db).Raw(`
		UPDATE product_variants AS v
		SET stock = GREATEST(v.stock + ?, 0), updated_at = NOW()
		FROM (SELECT id, stock FROM product_variants WHERE id = ? AND product_id = ? FOR UPDATE) AS old
		WHERE v.id = old.id
		RETURNING old.stock AS before, v.stock AS after
	`, delta, variantID, productID).Scan(&change)
	if res.Error != nil {
		return StockChange{}, res.Error
	}
	if res.RowsAffected == 0 {
		return StockChange{}, gorm.ErrRecordNotFound
	}
	return change, nil
}

func (r *productRepository) DeductBaseStock(ctx context.Context, id uuid.UUID, qty int) (StockChange, error) {
	var change StockChange
	res := GetDB(ctx, r.db).Raw(`
		UPDATE products AS p
		SET base_stock = p.base_stock - ?, updated_at = NOW()
		FROM (SELECT id, base_stock FROM products WHERE id = ? AND deleted_at IS NULL FOR UPDATE) AS old
		WHERE p.id = old.id AND old.base_stock >= ?
		RETURNING old.base_stock AS before, p.base_stock AS after
	`, qty, id, qty).Scan(&change)
	if res.Error != nil {
		return StockChange{}, res.Error
	}
	if res.RowsAffected == 0 {
		return StockChange{}, r.shortfallOrMissing(ctx, "products", "id = ? AND deleted_at IS NULL", id)
	}
	return change, nil
}

func (r *productRepository) DeductVariantStock(ctx context.Context, productID, variantID uuid.UUID, qty int) (StockChange, error) {
	var change StockChange
	res := GetDB(ctx, r.db).Raw(`
		UPDATE product_variants AS v
		SET stock = v.stock - ?, updated_at = NOW()
		FROM (SELECT id, stock FROM product_variants WHERE id = ? AND product_id = ? FOR UPDATE) AS old
		WHERE v.id = old.id AND old.stock >= ?
		RETURNING old.stock AS before, v.stock AS after
	`, qty, variantID, productID, qty).Scan(&change)
	if res.Error != nil {
		return StockChange{}, res.Error
	}
	if res.RowsAffected == 0 {
		return StockChange{}, r.shortfallOrMissing(ctx, "product_variants", "id = ? AND product_id = ?", variantID, productID)
	}
	return change, nil
}

// shortfallOrMissing tells a missing row apart from a guarded deduction that matched nothing.
func (r *productRepository) shortfallOrMissing(ctx context.Context, table, where string, args ...interface{}) error {
	var count int64
	if err := GetDB(ctx, r.db).Table(table).Where(where, args...).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStockShortfall
}
