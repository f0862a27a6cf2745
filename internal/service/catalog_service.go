package service

import (
	"context"
	"encoding/json"

	"backoffice/internal/apperror"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/pkg/logger"
	"backoffice/pkg/slug"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type VariantInput struct {
	Value           string          `json:"value" binding:"required"`
	Stock           int             `json:"stock" binding:"min=0"`
	Image           string          `json:"image"`
	AdditionalPrice decimal.Decimal `json:"additional_price"`
}

type CreateProductRequest struct {
	SKU            string          `json:"sku" binding:"required"`
	Name           string          `json:"name" binding:"required"`
	CategoryID     *uuid.UUID      `json:"category_id"`
	Description    string          `json:"description"`
	Image          string          `json:"image"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	ChannelPrice   decimal.Decimal `json:"channel_price"`
	Cost           decimal.Decimal `json:"cost"`
	// BaseStock is ignored when Variants is non-empty.
	BaseStock int            `json:"base_stock" binding:"min=0"`
	Variants  []VariantInput `json:"variants" binding:"dive"`
}

// UpdateProductRequest never carries stock; stock moves only through the ledger.
type UpdateProductRequest struct {
	SKU            string          `json:"sku" binding:"required"`
	Name           string          `json:"name" binding:"required"`
	CategoryID     *uuid.UUID      `json:"category_id"`
	Description    string          `json:"description"`
	Image          string          `json:"image"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	ChannelPrice   decimal.Decimal `json:"channel_price"`
	Cost           decimal.Decimal `json:"cost"`
	IsActive       bool            `json:"is_active"`
}

type ProductResponse struct {
	*model.Product
	EffectiveStock    int  `json:"effective_stock"`
	HasAvailableStock bool `json:"has_available_stock"`
}

type CreateSpecialProductRequest struct {
	Name           string           `json:"name" binding:"required"`
	Description    string           `json:"description"`
	Image          string           `json:"image"`
	BaseProductAID uuid.UUID        `json:"base_product_a_id" binding:"required"`
	BaseProductBID uuid.UUID        `json:"base_product_b_id" binding:"required"`
	FinalPrice     decimal.Decimal  `json:"final_price"`
	Cost           *decimal.Decimal `json:"cost"`
	// GenerateCombinations fills the cartesian product of both sides' variants.
	GenerateCombinations bool `json:"generate_combinations"`
}

type UpdateSpecialProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	FinalPrice  decimal.Decimal  `json:"final_price"`
	Cost        *decimal.Decimal `json:"cost"`
	IsActive    bool             `json:"is_active"`
}

type UpdateCombinationRequest struct {
	Label           string          `json:"label"`
	FinalImage      string          `json:"final_image"`
	AdditionalPrice decimal.Decimal `json:"additional_price"`
}

type CombinationResponse struct {
	model.Combination
	Stock int `json:"stock"`
}

type SpecialProductResponse struct {
	*model.SpecialProduct
	Combinations []CombinationResponse `json:"combinations"`
	TotalStock   int                   `json:"total_stock"`
}

// --- Interface ---

type CatalogService interface {
	CreateProduct(ctx context.Context, actorID *uuid.UUID, req CreateProductRequest) (*ProductResponse, error)
	UpdateProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error)
	DeleteProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductResponse, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]ProductResponse, int64, error)
	AddVariant(ctx context.Context, actorID *uuid.UUID, productID uuid.UUID, req VariantInput) (*ProductResponse, error)
	DeleteVariant(ctx context.Context, actorID *uuid.UUID, productID, variantID uuid.UUID) (*ProductResponse, error)

	CreateSpecialProduct(ctx context.Context, actorID *uuid.UUID, req CreateSpecialProductRequest) (*SpecialProductResponse, error)
	UpdateSpecialProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateSpecialProductRequest) (*SpecialProductResponse, error)
	DeleteSpecialProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error
	GetSpecialProduct(ctx context.Context, id uuid.UUID) (*SpecialProductResponse, error)
	ListSpecialProducts(ctx context.Context, search string, page, limit int) ([]SpecialProductResponse, int64, error)
	// GenerateCombinations inserts the missing variant pairings and returns how many were added.
	GenerateCombinations(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) (int, error)
	UpdateCombination(ctx context.Context, actorID *uuid.UUID, specialID, combinationID uuid.UUID, req UpdateCombinationRequest) (*SpecialProductResponse, error)

	ListAuditLogs(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	specialRepo repository.SpecialProductRepository
	auditRepo   repository.AuditRepository
	inventory   InventoryService
	txManager   repository.TransactionManager
	log         *logger.Logger
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	specialRepo repository.SpecialProductRepository,
	auditRepo repository.AuditRepository,
	inventory InventoryService,
	txManager repository.TransactionManager,
	log *logger.Logger,
) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		specialRepo: specialRepo,
		auditRepo:   auditRepo,
		inventory:   inventory,
		txManager:   txManager,
		log:         log.WithComponent("catalog"),
	}
}

func toProductResponse(p *model.Product) *ProductResponse {
	return &ProductResponse{
		Product:           p,
		EffectiveStock:    EffectiveStock(p),
		HasAvailableStock: HasAvailableStock(p),
	}
}

func toSpecialProductResponse(sp *model.SpecialProduct) *SpecialProductResponse {
	res := &SpecialProductResponse{
		SpecialProduct: sp,
		Combinations:   make([]CombinationResponse, 0, len(sp.Combinations)),
	}
	for i := range sp.Combinations {
		c := sp.Combinations[i]
		stock := CombinationStock(&c, sp.BaseProductA, sp.BaseProductB)
		res.Combinations = append(res.Combinations, CombinationResponse{Combination: c, Stock: stock})
		res.TotalStock += stock
	}
	return res
}

func (s *catalogService) audit(ctx context.Context, actorID *uuid.UUID, action, entityID, entityName string, details interface{}) error {
	raw, _ := json.Marshal(details)
	return s.auditRepo.Log(ctx, &model.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(raw),
	})
}

func validatePrices(prices map[string]decimal.Decimal) error {
	for field, v := range prices {
		if v.IsNegative() {
			return apperror.NewFieldValidation(field, field+" must not be negative")
		}
	}
	return nil
}

func (s *catalogService) productSlug(ctx context.Context, name string, excludeID *uuid.UUID) (string, error) {
	sl := slug.Make(name)
	if sl == "" {
		return "", apperror.NewFieldValidation("name", "name must contain letters or digits")
	}
	taken, err := s.productRepo.ExistsBySlug(ctx, sl, excludeID)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	if taken {
		return "", apperror.NewDuplicate("product", "slug", sl)
	}
	return sl, nil
}

func (s *catalogService) specialSlug(ctx context.Context, name string, excludeID *uuid.UUID) (string, error) {
	sl := slug.Make(name)
	if sl == "" {
		return "", apperror.NewFieldValidation("name", "name must contain letters or digits")
	}
	taken, err := s.specialRepo.ExistsBySlug(ctx, sl, excludeID)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	if taken {
		return "", apperror.NewDuplicate("special product", "slug", sl)
	}
	return sl, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, actorID *uuid.UUID, req CreateProductRequest) (*ProductResponse, error) {
	if err := validatePrices(map[string]decimal.Decimal{
		"retail_price": req.RetailPrice, "wholesale_price": req.WholesalePrice,
		"channel_price": req.ChannelPrice, "cost": req.Cost,
	}); err != nil {
		return nil, err
	}
	sl, err := s.productSlug(ctx, req.Name, nil)
	if err != nil {
		return nil, err
	}

	product := &model.Product{
		SKU:            req.SKU,
		Name:           req.Name,
		Slug:           sl,
		CategoryID:     req.CategoryID,
		Description:    req.Description,
		Image:          req.Image,
		RetailPrice:    req.RetailPrice,
		WholesalePrice: req.WholesalePrice,
		ChannelPrice:   req.ChannelPrice,
		Cost:           req.Cost,
		IsActive:       true,
	}
	initial := make([]int, 0, len(req.Variants))
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, model.ProductVariant{
			Value:           v.Value,
			Image:           v.Image,
			AdditionalPrice: v.AdditionalPrice,
		})
		initial = append(initial, v.Stock)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, product); err != nil {
			return err
		}

		// Opening stock goes through the ledger so it is logged like any other movement.
		if len(product.Variants) == 0 {
			if err := s.restock(txCtx, actorID, product.ID, nil, req.BaseStock); err != nil {
				return err
			}
		}
		for i := range product.Variants {
			variantID := product.Variants[i].ID
			if err := s.restock(txCtx, actorID, product.ID, &variantID, initial[i]); err != nil {
				return err
			}
		}

		return s.audit(txCtx, actorID, model.ActionCreateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return nil, s.fail("create product", err, "product", req.SKU)
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *catalogService) restock(ctx context.Context, actorID *uuid.UUID, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	_, err := s.inventory.AdjustStock(ctx, StockAdjustment{
		Ref: model.ProductRef{
			Type:      model.ProductTypeRegular,
			ProductID: productID,
			VariantID: variantID,
		},
		Delta:      qty,
		ChangeType: model.ChangeTypeRestock,
		Reason:     "Opening stock",
		ActorID:    actorID,
	})
	return err
}

func (s *catalogService) UpdateProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	if err := validatePrices(map[string]decimal.Decimal{
		"retail_price": req.RetailPrice, "wholesale_price": req.WholesalePrice,
		"channel_price": req.ChannelPrice, "cost": req.Cost,
	}); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "product", id)
	}

	sl := product.Slug
	if req.Name != product.Name {
		if sl, err = s.productSlug(ctx, req.Name, &product.ID); err != nil {
			return nil, err
		}
	}

	product.SKU = req.SKU
	product.Name = req.Name
	product.Slug = sl
	product.CategoryID = req.CategoryID
	product.Description = req.Description
	product.Image = req.Image
	product.RetailPrice = req.RetailPrice
	product.WholesalePrice = req.WholesalePrice
	product.ChannelPrice = req.ChannelPrice
	product.Cost = req.Cost
	product.IsActive = req.IsActive

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Update(txCtx, product); err != nil {
			return err
		}
		return s.audit(txCtx, actorID, model.ActionUpdateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return nil, s.fail("update product", err, "product", id)
	}
	return s.GetProduct(ctx, id)
}

func (s *catalogService) DeleteProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return storageError(err, "product", id)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Delete(txCtx, id); err != nil {
			return err
		}
		return s.audit(txCtx, actorID, model.ActionDeleteProduct, product.ID.String(), product.Name,
			map[string]interface{}{"deleted": true})
	})
	if err != nil {
		return s.fail("delete product", err, "product", id)
	}
	return nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "product", id)
	}
	return toProductResponse(product), nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]ProductResponse, int64, error) {
	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.NewInternal(err)
	}
	res := make([]ProductResponse, 0, len(products))
	for i := range products {
		res = append(res, *toProductResponse(&products[i]))
	}
	return res, total, nil
}

func (s *catalogService) AddVariant(ctx context.Context, actorID *uuid.UUID, productID uuid.UUID, req VariantInput) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, storageError(err, "product", productID)
	}
	if req.Stock < 0 {
		return nil, apperror.NewFieldValidation("stock", "stock must not be negative")
	}

	variant := &model.ProductVariant{
		ProductID:       product.ID,
		Value:           req.Value,
		Image:           req.Image,
		AdditionalPrice: req.AdditionalPrice,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.CreateVariant(txCtx, variant); err != nil {
			return err
		}
		if err := s.restock(txCtx, actorID, product.ID, &variant.ID, req.Stock); err != nil {
			return err
		}
		return s.audit(txCtx, actorID, model.ActionUpdateProduct, product.ID.String(), product.Name,
			map[string]interface{}{"added_variant": req.Value})
	})
	if err != nil {
		return nil, s.fail("add variant", err, "variant", req.Value)
	}
	return s.GetProduct(ctx, productID)
}

func (s *catalogService) DeleteVariant(ctx context.Context, actorID *uuid.UUID, productID, variantID uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, storageError(err, "product", productID)
	}
	variant := product.FindVariant(variantID)
	if variant == nil {
		return nil, apperror.NewNotFound("variant", variantID)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.DeleteVariant(txCtx, productID, variantID); err != nil {
			return err
		}
		return s.audit(txCtx, actorID, model.ActionUpdateProduct, product.ID.String(), product.Name,
			map[string]interface{}{"deleted_variant": variant.Value, "stock": variant.Stock})
	})
	if err != nil {
		return nil, s.fail("delete variant", err, "variant", variantID)
	}
	return s.GetProduct(ctx, productID)
}

func (s *catalogService) CreateSpecialProduct(ctx context.Context, actorID *uuid.UUID, req CreateSpecialProductRequest) (*SpecialProductResponse, error) {
	if !req.FinalPrice.IsPositive() {
		return nil, apperror.NewFieldValidation("final_price", "final_price must be greater than zero")
	}
	if req.Cost != nil && req.Cost.IsNegative() {
		return nil, apperror.NewFieldValidation("cost", "cost must not be negative")
	}
	if req.BaseProductAID == req.BaseProductBID {
		return nil, apperror.NewFieldValidation("base_product_b_id", "base products must differ")
	}

	baseA, err := s.productRepo.FindByID(ctx, req.BaseProductAID)
	if err != nil {
		return nil, storageError(err, "base product", req.BaseProductAID)
	}
	baseB, err := s.productRepo.FindByID(ctx, req.BaseProductBID)
	if err != nil {
		return nil, storageError(err, "base product", req.BaseProductBID)
	}

	sl, err := s.specialSlug(ctx, req.Name, nil)
	if err != nil {
		return nil, err
	}

	sp := &model.SpecialProduct{
		Name:           req.Name,
		Slug:           sl,
		Description:    req.Description,
		Image:          req.Image,
		BaseProductAID: baseA.ID,
		BaseProductBID: baseB.ID,
		FinalPrice:     req.FinalPrice,
		IsActive:       true,
	}
	if req.Cost != nil {
		sp.Cost = decimal.NewNullDecimal(*req.Cost)
	}
	if req.GenerateCombinations {
		sp.BaseProductA, sp.BaseProductB = baseA, baseB
		sp.Combinations = missingCombinations(sp)
		sp.BaseProductA, sp.BaseProductB = nil, nil
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.specialRepo.Create(txCtx, sp); err != nil {
			return err
		}
		return s.audit(txCtx, actorID, model.ActionCreateSpecialProduct, sp.ID.String(), sp.Name, req)
	})
	if err != nil {
		return nil, s.fail("create special product", err, "special product", req.Name)
	}
	return s.GetSpecialProduct(ctx, sp.ID)
}

func (s *catalogService) UpdateSpecialProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateSpecialProductRequest) (*SpecialProductResponse, error) {
	if !req.FinalPrice.IsPositive() {
		return nil, apperror.NewFieldValidation("final_price", "final_price must be greater than zero")
	}
	sp, err := s.specialRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "special product", id)
	}

	sl := sp.Slug
	if req.Name != sp.Name {
		if sl, err = s.specialSlug(ctx, req.Name, &sp.ID); err != nil {
			return nil, err
		}
	}
	sp.Name = req.Name
	sp.Slug = sl
	sp.Description = req.Description
	sp.Image = req.Image
	sp.FinalPrice = req.FinalPrice
	sp.IsActive = req.IsActive
	sp.Cost = decimal.NullDecimal{}
	if req.Cost != nil {
		sp.Cost = decimal.NewNullDecimal(*req.Cost)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.specialRepo.Update(txCtx, sp); err != nil {
			return err
		}
		return s.audit(txCtx, actorID, model.ActionUpdateSpecialProduct, sp.ID.String(), sp.Name, req)
	})
	if err != nil {
		return nil, s.fail("update special product", err, "special product", id)
	}
	return s.GetSpecialProduct(ctx, id)
}

func (s *catalogService) DeleteSpecialProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	sp, err := s.specialRepo.FindByID(ctx, id)
	if err != nil {
		return storageError(err, "special product", id)
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.specialRepo.Delete(txCtx, id); err != nil {
			return err
		}
		return s.audit(txCtx, actorID, model.ActionDeleteSpecialProduct, sp.ID.String(), sp.Name,
			map[string]interface{}{"deleted": true})
	})
	if err != nil {
		return s.fail("delete special product", err, "special product", id)
	}
	return nil
}

func (s *catalogService) GetSpecialProduct(ctx context.Context, id uuid.UUID) (*SpecialProductResponse, error) {
	sp, err := s.specialRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "special product", id)
	}
	return toSpecialProductResponse(sp), nil
}

func (s *catalogService) ListSpecialProducts(ctx context.Context, search string, page, limit int) ([]SpecialProductResponse, int64, error) {
	items, total, err := s.specialRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, apperror.NewInternal(err)
	}
	res := make([]SpecialProductResponse, 0, len(items))
	for i := range items {
		res = append(res, *toSpecialProductResponse(&items[i]))
	}
	return res, total, nil
}

func (s *catalogService) GenerateCombinations(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) (int, error) {
	sp, err := s.specialRepo.FindByID(ctx, id)
	if err != nil {
		return 0, storageError(err, "special product", id)
	}

	missing := missingCombinations(sp)
	if len(missing) == 0 {
		return 0, nil
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.specialRepo.CreateCombinations(txCtx, missing); err != nil {
			return err
		}
		return s.audit(txCtx, actorID, model.ActionGenerateCombinations, sp.ID.String(), sp.Name,
			map[string]interface{}{"added": len(missing)})
	})
	if err != nil {
		return 0, s.fail("generate combinations", err, "special product", id)
	}
	s.log.Infow("combinations generated", "special_product_id", id, "added", len(missing))
	return len(missing), nil
}

// missingCombinations lists the variant pairings sp does not have yet.
// A side without variants contributes a single unpinned option.
func missingCombinations(sp *model.SpecialProduct) []model.Combination {
	optionsA := sideOptions(sp.BaseProductA)
	optionsB := sideOptions(sp.BaseProductB)

	var missing []model.Combination
	for _, a := range optionsA {
		for _, b := range optionsB {
			if sp.FindCombinationByVariants(a, b) != nil {
				continue
			}
			c := model.Combination{
				SpecialProductID: sp.ID,
				VariantAID:       a,
				VariantBID:       b,
				AdditionalPrice:  decimal.Zero,
			}
			c.Label = combinationLabel(sp, &c)
			missing = append(missing, c)
		}
	}
	return missing
}

func sideOptions(base *model.Product) []*uuid.UUID {
	if !base.HasVariants() {
		return []*uuid.UUID{nil}
	}
	options := make([]*uuid.UUID, 0, len(base.Variants))
	for i := range base.Variants {
		id := base.Variants[i].ID
		options = append(options, &id)
	}
	return options
}

func (s *catalogService) UpdateCombination(ctx context.Context, actorID *uuid.UUID, specialID, combinationID uuid.UUID, req UpdateCombinationRequest) (*SpecialProductResponse, error) {
	if req.AdditionalPrice.IsNegative() {
		return nil, apperror.NewFieldValidation("additional_price", "additional_price must not be negative")
	}
	sp, err := s.specialRepo.FindByID(ctx, specialID)
	if err != nil {
		return nil, storageError(err, "special product", specialID)
	}
	combo := sp.FindCombination(combinationID)
	if combo == nil {
		return nil, apperror.NewNotFound("combination", combinationID)
	}

	combo.Label = req.Label
	combo.FinalImage = req.FinalImage
	combo.AdditionalPrice = req.AdditionalPrice

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.specialRepo.UpdateCombination(txCtx, combo); err != nil {
			return err
		}
		return s.audit(txCtx, actorID, model.ActionUpdateSpecialProduct, sp.ID.String(), sp.Name,
			map[string]interface{}{"combination_id": combinationID.String(), "update": req})
	})
	if err != nil {
		return nil, s.fail("update combination", err, "combination", combinationID)
	}
	return s.GetSpecialProduct(ctx, specialID)
}

func (s *catalogService) ListAuditLogs(ctx context.Context, entityID string, page, limit int) ([]model.AuditLog, int64, error) {
	logs, total, err := s.auditRepo.List(ctx, entityID, page, limit)
	if err != nil {
		return nil, 0, apperror.NewInternal(err)
	}
	return logs, total, nil
}

func (s *catalogService) fail(op string, err error, entity string, id any) error {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		appErr = storageError(err, entity, id).(*apperror.AppError)
	}
	if appErr.Code == apperror.CodeInternal {
		s.log.Errorw(op+" failed", "entity", entity, "id", id, "error", err)
	}
	return appErr
}

