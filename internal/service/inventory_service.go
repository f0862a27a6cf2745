package service

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Push events broadcast to connected dashboards.
const (
	EventStockAlertCreated  = "stock.alert.created"
	EventStockAlertResolved = "stock.alert.resolved"
	EventOrderStatusChanged = "order.status.changed"
)

// EventPublisher fans events out to live subscribers. Delivery is best effort.
type EventPublisher interface {
	Publish(event string, data map[string]interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, map[string]interface{}) {}

// DTOs
type StockAdjustment struct {
	Ref        model.ProductRef `json:"ref"`
	Delta      int              `json:"delta"`
	ChangeType string           `json:"change_type"`
	Reason     string           `json:"reason"`
	ActorID    *uuid.UUID       `json:"-"`
	OrderID    *uuid.UUID       `json:"order_id,omitempty"`
	InvoiceID  *uuid.UUID       `json:"invoice_id,omitempty"`
	// RequireStock makes a negative delta fail with InsufficientStock
	// instead of clamping at zero.
	RequireStock bool `json:"-"`
}

// StockAdjustmentResult reports the resolved stock of the adjusted reference.
// For special products Before/After are combination stocks.
type StockAdjustmentResult struct {
	Before int         `json:"before"`
	After  int         `json:"after"`
	LogIDs []uuid.UUID `json:"log_ids"`
}

type StockLine struct {
	Ref      model.ProductRef `json:"ref"`
	Quantity int              `json:"quantity"`
}

type InventoryService interface {
	// AdjustStock applies delta atomically, clamping at zero, and appends one ledger row
	// per stock-bearing row touched. It joins the caller's transaction if ctx carries one.
	AdjustStock(ctx context.Context, req StockAdjustment) (*StockAdjustmentResult, error)
	// ValidateStock returns one issue per line that cannot be fulfilled.
	// The error is reserved for storage failures and malformed input.
	ValidateStock(ctx context.Context, lines []StockLine) ([]apperror.StockIssue, error)
	// ResolveRef fills an empty product type by trying a regular product first, then a special one.
	ResolveRef(ctx context.Context, ref model.ProductRef) (model.ProductRef, error)
	ListLogs(ctx context.Context, filter repository.InventoryLogFilter) ([]model.InventoryLog, int64, error)
	ListActiveAlerts(ctx context.Context) ([]model.StockAlert, error)
}

type inventoryService struct {
	productRepo repository.ProductRepository
	specialRepo repository.SpecialProductRepository
	logRepo     repository.InventoryLogRepository
	alertRepo   repository.StockAlertRepository
	txManager   repository.TransactionManager
	publisher   EventPublisher
	threshold   int
	log         *logger.Logger
	now         func() time.Time
}

func NewInventoryService(
	productRepo repository.ProductRepository,
	specialRepo repository.SpecialProductRepository,
	logRepo repository.InventoryLogRepository,
	alertRepo repository.StockAlertRepository,
	txManager repository.TransactionManager,
	publisher EventPublisher,
	lowStockThreshold int,
	log *logger.Logger,
) InventoryService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &inventoryService{
		productRepo: productRepo,
		specialRepo: specialRepo,
		logRepo:     logRepo,
		alertRepo:   alertRepo,
		txManager:   txManager,
		publisher:   publisher,
		threshold:   lowStockThreshold,
		log:         log.WithComponent("inventory"),
		now:         time.Now,
	}
}

var validChangeTypes = map[string]bool{
	model.ChangeTypeSale:         true,
	model.ChangeTypeRestock:      true,
	model.ChangeTypeAdjustment:   true,
	model.ChangeTypeReturn:       true,
	model.ChangeTypeCancellation: true,
}

func (s *inventoryService) ResolveRef(ctx context.Context, ref model.ProductRef) (model.ProductRef, error) {
	if ref.ProductID == uuid.Nil {
		return ref, apperror.NewFieldValidation("product_id", "product_id is required")
	}
	if ref.Type != "" {
		if !ref.Type.Valid() {
			return ref, apperror.NewFieldValidation("product_type", "product_type must be regular or special")
		}
		return ref, nil
	}

	_, err := s.productRepo.FindByID(ctx, ref.ProductID)
	if err == nil {
		ref.Type = model.ProductTypeRegular
		return ref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ref, apperror.NewInternal(err)
	}

	_, err = s.specialRepo.FindByID(ctx, ref.ProductID)
	if err == nil {
		ref.Type = model.ProductTypeSpecial
		return ref, nil
	}
	return ref, storageError(err, "product", ref.ProductID)
}

func (s *inventoryService) AdjustStock(ctx context.Context, req StockAdjustment) (*StockAdjustmentResult, error) {
	if req.Delta == 0 {
		return nil, apperror.NewFieldValidation("delta", "delta must not be zero")
	}
	if !validChangeTypes[req.ChangeType] {
		return nil, apperror.NewFieldValidation("change_type", "unknown change type")
	}
	ref, err := s.ResolveRef(ctx, req.Ref)
	if err != nil {
		return nil, err
	}
	req.Ref = ref

	var result *StockAdjustmentResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if ref.Type == model.ProductTypeSpecial {
			result, err = s.adjustSpecial(txCtx, req)
		} else {
			result, err = s.adjustRegular(txCtx, req)
		}
		return err
	})
	if err != nil {
		appErr, ok := apperror.AsAppError(err)
		if !ok {
			appErr = apperror.NewInternal(err)
		}
		if appErr.Code == apperror.CodeInternal {
			s.log.Errorw("stock adjustment failed",
				"product_id", ref.ProductID, "product_type", ref.Type,
				"order_id", req.OrderID, "actor_id", req.ActorID, "error", err)
		}
		return nil, appErr
	}
	return result, nil
}

func (s *inventoryService) adjustRegular(ctx context.Context, req StockAdjustment) (*StockAdjustmentResult, error) {
	ref := req.Ref
	product, err := s.productRepo.FindByID(ctx, ref.ProductID)
	if err != nil {
		return nil, storageError(err, "product", ref.ProductID)
	}

	var change repository.StockChange
	switch {
	case product.HasVariants():
		if ref.VariantID == nil {
			return nil, apperror.NewFieldValidation("variant_id", "variant_id is required for a product with variants")
		}
		if product.FindVariant(*ref.VariantID) == nil {
			return nil, apperror.NewNotFound("variant", *ref.VariantID)
		}
		change, err = s.moveStock(ctx, product.ID, ref.VariantID, req)
	case ref.VariantID != nil:
		return nil, apperror.NewFieldValidation("variant_id", "product has no variants")
	default:
		change, err = s.moveStock(ctx, product.ID, nil, req)
	}
	if errors.Is(err, repository.ErrStockShortfall) {
		available := EffectiveStock(product)
		if ref.VariantID != nil {
			available = VariantStock(product, *ref.VariantID)
		}
		return nil, shortfallError(ref, product.Name, -req.Delta, available)
	}
	if err != nil {
		return nil, storageError(err, "product", product.ID)
	}

	entry := &model.InventoryLog{
		ProductType:    model.ProductTypeRegular,
		ProductID:      product.ID,
		ProductName:    product.Name,
		VariantID:      ref.VariantID,
		ChangeType:     req.ChangeType,
		Reason:         req.Reason,
		QuantityBefore: change.Before,
		QuantityAfter:  change.After,
		QuantityChange: change.After - change.Before,
		ActorID:        req.ActorID,
		OrderID:        req.OrderID,
		InvoiceID:      req.InvoiceID,
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.evaluateAlert(ctx, product.ID); err != nil {
		return nil, err
	}

	return &StockAdjustmentResult{
		Before: change.Before,
		After:  change.After,
		LogIDs: []uuid.UUID{entry.ID},
	}, nil
}

// adjustSpecial moves both base sides of the selected combination by delta.
func (s *inventoryService) adjustSpecial(ctx context.Context, req StockAdjustment) (*StockAdjustmentResult, error) {
	ref := req.Ref
	sp, combo, err := s.loadCombination(ctx, ref)
	if err != nil {
		return nil, err
	}

	sides := []struct {
		base   *model.Product
		pinned *uuid.UUID
	}{
		{sp.BaseProductA, combo.VariantAID},
		{sp.BaseProductB, combo.VariantBID},
	}

	result := &StockAdjustmentResult{}
	befores := make([]int, 0, 2)
	afters := make([]int, 0, 2)
	touched := make([]uuid.UUID, 0, 2)

	for _, side := range sides {
		if side.base == nil {
			return nil, apperror.NewNotFound("base product", sp.ID)
		}
		var change repository.StockChange
		var variantID *uuid.UUID
		if side.base.HasVariants() && side.pinned != nil {
			variantID = side.pinned
		}
		change, err = s.moveStock(ctx, side.base.ID, variantID, req)
		if errors.Is(err, repository.ErrStockShortfall) {
			return nil, shortfallError(ref, sp.Name, -req.Delta, SideStock(side.base, side.pinned))
		}
		if err != nil {
			return nil, storageError(err, "product", side.base.ID)
		}

		spID := sp.ID
		comboID := combo.ID
		entry := &model.InventoryLog{
			ProductType:      model.ProductTypeSpecial,
			ProductID:        side.base.ID,
			ProductName:      side.base.Name,
			VariantID:        variantID,
			SpecialProductID: &spID,
			CombinationID:    &comboID,
			ChangeType:       req.ChangeType,
			Reason:           req.Reason,
			QuantityBefore:   change.Before,
			QuantityAfter:    change.After,
			QuantityChange:   change.After - change.Before,
			ActorID:          req.ActorID,
			OrderID:          req.OrderID,
			InvoiceID:        req.InvoiceID,
		}
		if err := s.logRepo.Create(ctx, entry); err != nil {
			return nil, err
		}

		result.LogIDs = append(result.LogIDs, entry.ID)
		befores = append(befores, change.Before)
		afters = append(afters, change.After)
		if !containsID(touched, side.base.ID) {
			touched = append(touched, side.base.ID)
		}
	}

	for _, id := range touched {
		if err := s.evaluateAlert(ctx, id); err != nil {
			return nil, err
		}
	}

	result.Before = min(befores[0], befores[1])
	result.After = min(afters[0], afters[1])
	return result, nil
}

// moveStock applies req.Delta to the scalar stock, or to one variant when variantID is set.
func (s *inventoryService) moveStock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, req StockAdjustment) (repository.StockChange, error) {
	strict := req.RequireStock && req.Delta < 0
	switch {
	case variantID != nil && strict:
		return s.productRepo.DeductVariantStock(ctx, productID, *variantID, -req.Delta)
	case variantID != nil:
		return s.productRepo.AdjustVariantStock(ctx, productID, *variantID, req.Delta)
	case strict:
		return s.productRepo.DeductBaseStock(ctx, productID, -req.Delta)
	default:
		return s.productRepo.AdjustBaseStock(ctx, productID, req.Delta)
	}
}

func shortfallError(ref model.ProductRef, name string, requested, available int) error {
	return apperror.NewInsufficientStock([]apperror.StockIssue{{
		ProductID:   ref.ProductID.String(),
		ProductType: string(ref.Type),
		ProductName: name,
		Requested:   requested,
		Available:   available,
		Error:       apperror.IssueInsufficientStock,
	}})
}

// loadCombination resolves the combination a special-product reference selects,
// by id or by its variant pair.
func (s *inventoryService) loadCombination(ctx context.Context, ref model.ProductRef) (*model.SpecialProduct, *model.Combination, error) {
	sp, err := s.specialRepo.FindByID(ctx, ref.ProductID)
	if err != nil {
		return nil, nil, storageError(err, "special product", ref.ProductID)
	}
	combo, err := selectCombination(sp, ref)
	if err != nil {
		return nil, nil, err
	}
	return sp, combo, nil
}

func selectCombination(sp *model.SpecialProduct, ref model.ProductRef) (*model.Combination, error) {
	switch {
	case ref.CombinationID != nil:
		if c := sp.FindCombination(*ref.CombinationID); c != nil {
			return c, nil
		}
		return nil, apperror.NewNotFound("combination", *ref.CombinationID)
	case ref.VariantAID != nil || ref.VariantBID != nil:
		if c := sp.FindCombinationByVariants(ref.VariantAID, ref.VariantBID); c != nil {
			return c, nil
		}
		return nil, apperror.NewNotFound("combination", sp.ID)
	default:
		return nil, apperror.NewFieldValidation("combination_id", "a combination must be selected for a special product")
	}
}

// evaluateAlert keeps at most one active alert per product, keyed on aggregate stock.
func (s *inventoryService) evaluateAlert(ctx context.Context, productID uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	stock := EffectiveStock(product)

	active, err := s.alertRepo.FindActive(ctx, productID)
	if err != nil {
		return err
	}

	switch {
	case stock <= s.threshold && active == nil:
		alert := &model.StockAlert{
			ProductID:    product.ID,
			ProductName:  product.Name,
			CurrentStock: stock,
			Threshold:    s.threshold,
			IsActive:     true,
		}
		created, err := s.alertRepo.Create(ctx, alert)
		if err != nil {
			return err
		}
		if created {
			s.publishAfterCommit(ctx, EventStockAlertCreated, map[string]interface{}{
				"alert_id":      alert.ID.String(),
				"product_id":    product.ID.String(),
				"product_name":  product.Name,
				"current_stock": stock,
				"threshold":     s.threshold,
			})
		}
	case stock <= s.threshold:
		if active.CurrentStock != stock {
			return s.alertRepo.UpdateStock(ctx, active.ID, stock)
		}
	case active != nil:
		if err := s.alertRepo.Resolve(ctx, active.ID, s.now()); err != nil {
			return err
		}
		s.publishAfterCommit(ctx, EventStockAlertResolved, map[string]interface{}{
			"alert_id":      active.ID.String(),
			"product_id":    product.ID.String(),
			"product_name":  product.Name,
			"current_stock": stock,
		})
	}
	return nil
}

func (s *inventoryService) publishAfterCommit(ctx context.Context, event string, data map[string]interface{}) {
	repository.AfterCommit(ctx, func() {
		s.publisher.Publish(event, data)
	})
}

// stockRow identifies one stored stock counter. variantID is uuid.Nil for scalar stock.
type stockRow struct {
	productID uuid.UUID
	variantID uuid.UUID
}

// stockDraw is a row a line takes one unit from per unit sold. stock is its current level.
type stockDraw struct {
	row   stockRow
	stock int
}

// lineStock is what one reference can draw on: the resolved stock and the rows behind it.
type lineStock struct {
	name      string
	available int
	found     bool
	draws     []stockDraw
}

// ValidateStock checks every line against current stock. Lines drawing on the
// same stock row (two lines for one variant, or a special product sharing a base
// with another line) are checked against their combined demand.
func (s *inventoryService) ValidateStock(ctx context.Context, lines []StockLine) ([]apperror.StockIssue, error) {
	issues := make([]*apperror.StockIssue, len(lines))
	resolved := make([]*lineStock, len(lines))
	demand := make(map[stockRow]int)
	capacity := make(map[stockRow]int)

	for i, line := range lines {
		if line.Quantity < 1 {
			return nil, apperror.NewFieldValidation("quantity", "quantity must be at least 1").WithDetail("line", i)
		}

		issue := &apperror.StockIssue{
			Line:        i,
			ProductID:   line.Ref.ProductID.String(),
			ProductType: string(line.Ref.Type),
			Requested:   line.Quantity,
		}

		ref, err := s.ResolveRef(ctx, line.Ref)
		if err != nil {
			if apperror.IsNotFound(err) {
				issue.Error = apperror.IssueProductNotFound
				issues[i] = issue
				continue
			}
			return nil, err
		}
		issue.ProductType = string(ref.Type)

		stock, err := s.availableFor(ctx, ref)
		if err != nil {
			return nil, err
		}
		issue.ProductName = stock.name
		issue.Available = stock.available
		if !stock.found {
			issue.Error = apperror.IssueProductNotFound
			issues[i] = issue
			continue
		}
		for _, d := range stock.draws {
			demand[d.row] += line.Quantity
			capacity[d.row] = d.stock
		}
		resolved[i] = stock
		if stock.available < line.Quantity {
			issue.Error = apperror.IssueInsufficientStock
		}
		issues[i] = issue
	}

	for i, stock := range resolved {
		if stock == nil || issues[i].Error != "" {
			continue
		}
		for _, d := range stock.draws {
			if demand[d.row] > capacity[d.row] {
				issues[i].Error = apperror.IssueInsufficientStock
				break
			}
		}
	}

	out := make([]apperror.StockIssue, 0)
	for _, issue := range issues {
		if issue != nil && issue.Error != "" {
			out = append(out, *issue)
		}
	}
	return out, nil
}

// availableFor resolves the sellable stock behind one reference.
// found is false when the product, variant or combination does not exist.
func (s *inventoryService) availableFor(ctx context.Context, ref model.ProductRef) (*lineStock, error) {
	if ref.Type == model.ProductTypeSpecial {
		sp, err := s.specialRepo.FindByID(ctx, ref.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &lineStock{}, nil
		}
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		combo, err := selectCombination(sp, ref)
		if err != nil {
			return &lineStock{name: sp.Name}, nil
		}
		return &lineStock{
			name:      sp.Name,
			available: CombinationStock(combo, sp.BaseProductA, sp.BaseProductB),
			found:     true,
			draws: []stockDraw{
				sideDraw(sp.BaseProductA, combo.VariantAID),
				sideDraw(sp.BaseProductB, combo.VariantBID),
			},
		}, nil
	}

	product, err := s.productRepo.FindByID(ctx, ref.ProductID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &lineStock{}, nil
	}
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if ref.VariantID != nil {
		if product.FindVariant(*ref.VariantID) == nil {
			return &lineStock{name: product.Name}, nil
		}
		stock := VariantStock(product, *ref.VariantID)
		return &lineStock{
			name:      product.Name,
			available: stock,
			found:     true,
			draws:     []stockDraw{{row: stockRow{productID: product.ID, variantID: *ref.VariantID}, stock: stock}},
		}, nil
	}
	stock := EffectiveStock(product)
	return &lineStock{
		name:      product.Name,
		available: stock,
		found:     true,
		draws:     []stockDraw{{row: stockRow{productID: product.ID}, stock: stock}},
	}, nil
}

// sideDraw names the row one side of a combination deducts from.
func sideDraw(base *model.Product, pinned *uuid.UUID) stockDraw {
	if base == nil {
		return stockDraw{}
	}
	row := stockRow{productID: base.ID}
	if base.HasVariants() && pinned != nil {
		row.variantID = *pinned
	}
	return stockDraw{row: row, stock: SideStock(base, pinned)}
}

func (s *inventoryService) ListLogs(ctx context.Context, filter repository.InventoryLogFilter) ([]model.InventoryLog, int64, error) {
	logs, total, err := s.logRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.NewInternal(err)
	}
	return logs, total, nil
}

func (s *inventoryService) ListActiveAlerts(ctx context.Context) ([]model.StockAlert, error) {
	alerts, err := s.alertRepo.ListActive(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return alerts, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
