package service

import (
	"context"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type CreateOrderRequest struct {
	Source        model.OrderSource `json:"source" binding:"required"`
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	Notes         string            `json:"notes"`
	PaymentMethod string            `json:"payment_method"`
	Items         []OrderItemInput  `json:"items" binding:"required,min=1"`
	Discount      decimal.Decimal   `json:"discount"`
	// TaxRate defaults to the configured rate when omitted.
	TaxRate *decimal.Decimal `json:"tax_rate,omitempty"`
}

type UpdateOrderItemsRequest struct {
	Items    []OrderItemInput `json:"items" binding:"required,min=1"`
	Discount decimal.Decimal  `json:"discount"`
	// TaxRate keeps the order's current rate when omitted.
	TaxRate *decimal.Decimal `json:"tax_rate,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, actorID *uuid.UUID, req CreateOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, int64, error)
	// TransitionStatus moves the order along its state machine. Entering completed
	// deducts stock exactly once in the same transaction as the status write.
	TransitionStatus(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, req TransitionRequest) (*model.Order, error)
	// UpdateItems re-prices a non-terminal order. Stock is not touched.
	UpdateItems(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, req UpdateOrderItemsRequest) (*model.Order, error)
	ListActivities(ctx context.Context, id uuid.UUID) ([]model.OrderActivity, error)
	// ReconcileStock deducts stock for a completed order whose deduction never ran.
	ReconcileStock(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*model.Order, error)
}

type orderService struct {
	orderRepo      repository.OrderRepository
	inventory      InventoryService
	pricer         *Pricer
	numerator      *Numerator
	txManager      repository.TransactionManager
	publisher      EventPublisher
	defaultTaxRate decimal.Decimal
	log            *logger.Logger
	now            func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	inventory InventoryService,
	pricer *Pricer,
	numerator *Numerator,
	txManager repository.TransactionManager,
	publisher EventPublisher,
	defaultTaxRate float64,
	log *logger.Logger,
) OrderService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &orderService{
		orderRepo:      orderRepo,
		inventory:      inventory,
		pricer:         pricer,
		numerator:      numerator,
		txManager:      txManager,
		publisher:      publisher,
		defaultTaxRate: decimal.NewFromFloat(defaultTaxRate),
		log:            log.WithComponent("orders"),
		now:            time.Now,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, actorID *uuid.UUID, req CreateOrderRequest) (*model.Order, error) {
	if !req.Source.Valid() {
		return nil, apperror.NewFieldValidation("source", "unknown order source")
	}
	tier := ResolvePriceTier(req.Source)

	issues, err := s.inventory.ValidateStock(ctx, stockLinesFromInputs(req.Items))
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return nil, apperror.NewInsufficientStock(issues)
	}

	inputs, err := s.resolveInputs(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	items, err := s.pricer.BuildOrderItems(ctx, inputs, tier)
	if err != nil {
		return nil, err
	}

	taxRate := s.defaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	totals, err := CalculateOrderTotals(items, req.Discount, taxRate)
	if err != nil {
		return nil, err
	}

	number, err := s.numerator.Next(ctx, PrefixOrder, s.orderRepo.ExistsByNumber)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	order := &model.Order{
		OrderNumber:   number,
		Source:        req.Source,
		PriceTier:     tier,
		Status:        model.OrderStatusPending,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: model.PaymentStatusUnpaid,
		AmountPaid:    decimal.Zero,
		CreatedBy:     actorID,
		Items:         items,
	}
	applyTotals(order, totals)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orderRepo.Create(txCtx, order); err != nil {
			return err
		}
		return s.orderRepo.CreateActivity(txCtx, &model.OrderActivity{
			OrderID:  order.ID,
			Action:   model.ActivityCreated,
			ToStatus: model.OrderStatusPending,
			ActorID:  actorID,
		})
	})
	if err != nil {
		return nil, s.fail("create order", err, "order_number", number, "actor_id", actorID)
	}

	s.log.Infow("order created", "order_id", order.ID, "order_number", order.OrderNumber, "total", order.Total.StringFixed(2))
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "order", id)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, int64, error) {
	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.NewInternal(err)
	}
	return orders, total, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, req TransitionRequest) (*model.Order, error) {
	to := req.Status
	if !model.ValidOrderStatus(to) {
		return nil, apperror.NewFieldValidation("status", "unknown order status")
	}

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "order", id)
	}
	from := order.Status

	if from == to {
		return nil, apperror.NewConflict("order is already " + to).WithDetail("status", from)
	}
	if !model.CanTransition(from, to) {
		return nil, apperror.NewConflict("order cannot move from "+from+" to "+to).
			WithDetail("from", from).WithDetail("to", to)
	}
	if to == model.OrderStatusCanceled && order.StockDeducted {
		return nil, apperror.NewConflict("stock already deducted for this order")
	}

	now := s.now()
	fields := map[string]interface{}{}
	switch to {
	case model.OrderStatusCompleted:
		fields["completed_at"] = now
	case model.OrderStatusCanceled:
		fields["canceled_at"] = now
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Early rejection on the items read above. The locked items are checked again below.
		if to == model.OrderStatusCompleted {
			if err := s.checkStock(txCtx, order.Items); err != nil {
				return err
			}
		}

		moved, err := s.orderRepo.UpdateStatus(txCtx, order.ID, from, to, fields)
		if err != nil {
			return err
		}
		if !moved {
			return apperror.NewConflict("order status changed concurrently").WithDetail("expected", from)
		}

		if to == model.OrderStatusCompleted {
			// Items may have been edited between the first read and the status update.
			locked, err := s.orderRepo.FindByID(txCtx, order.ID)
			if err != nil {
				return storageError(err, "order", order.ID)
			}
			if err := s.checkStock(txCtx, locked.Items); err != nil {
				return err
			}
			if err := s.deductStock(txCtx, locked, actorID, true); err != nil {
				return err
			}
		}

		if err := s.orderRepo.CreateActivity(txCtx, &model.OrderActivity{
			OrderID:    order.ID,
			Action:     model.ActivityStatusChanged,
			FromStatus: from,
			ToStatus:   to,
			ActorID:    actorID,
			Note:       req.Note,
		}); err != nil {
			return err
		}

		repository.AfterCommit(txCtx, func() {
			s.publisher.Publish(EventOrderStatusChanged, map[string]interface{}{
				"order_id":     order.ID.String(),
				"order_number": order.OrderNumber,
				"from":         from,
				"to":           to,
			})
		})
		return nil
	})
	if err != nil {
		return nil, s.fail("transition order", err, "order_id", order.ID, "from", from, "to", to, "actor_id", actorID)
	}

	s.log.Infow("order status changed", "order_id", order.ID, "from", from, "to", to)
	return s.GetOrder(ctx, order.ID)
}

// deductStock flips the stock_deducted guard and then deducts every line.
// A false guard means another writer already deducted.
func (s *orderService) checkStock(ctx context.Context, items []model.OrderItem) error {
	issues, err := s.inventory.ValidateStock(ctx, stockLinesFromItems(items))
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return apperror.NewInsufficientStock(issues)
	}
	return nil
}

// deductStock books one sale entry per line. With requireStock a short row fails
// the deduction instead of clamping at zero.
func (s *orderService) deductStock(ctx context.Context, order *model.Order, actorID *uuid.UUID, requireStock bool) error {
	flipped, err := s.orderRepo.MarkStockDeducted(ctx, order.ID)
	if err != nil {
		return err
	}
	if !flipped {
		return apperror.NewConflict("stock already deducted for this order")
	}

	orderID := order.ID
	for _, item := range order.Items {
		if _, err := s.inventory.AdjustStock(ctx, StockAdjustment{
			Ref:          item.Ref(),
			Delta:        -item.Quantity,
			ChangeType:   model.ChangeTypeSale,
			Reason:       "Order " + order.OrderNumber,
			ActorID:      actorID,
			OrderID:      &orderID,
			RequireStock: requireStock,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *orderService) UpdateItems(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, req UpdateOrderItemsRequest) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "order", id)
	}
	if order.IsTerminal() {
		return nil, apperror.NewConflict("order items cannot change once the order is " + order.Status)
	}

	inputs, err := s.resolveInputs(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	items, err := s.pricer.BuildOrderItems(ctx, inputs, order.PriceTier)
	if err != nil {
		return nil, err
	}

	taxRate := order.TaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	totals, err := CalculateOrderTotals(items, req.Discount, taxRate)
	if err != nil {
		return nil, err
	}

	order.Items = items
	applyTotals(order, totals)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// The status guard keeps a concurrent completion from racing the edit.
		moved, err := s.orderRepo.UpdateStatus(txCtx, order.ID, order.Status, order.Status, nil)
		if err != nil {
			return err
		}
		if !moved {
			return apperror.NewConflict("order status changed concurrently")
		}
		if err := s.orderRepo.ReplaceItems(txCtx, order); err != nil {
			return err
		}
		return s.orderRepo.CreateActivity(txCtx, &model.OrderActivity{
			OrderID:    order.ID,
			Action:     model.ActivityItemsUpdated,
			FromStatus: order.Status,
			ToStatus:   order.Status,
			ActorID:    actorID,
		})
	})
	if err != nil {
		return nil, s.fail("update order items", err, "order_id", order.ID, "actor_id", actorID)
	}
	return s.GetOrder(ctx, order.ID)
}

func (s *orderService) ListActivities(ctx context.Context, id uuid.UUID) ([]model.OrderActivity, error) {
	if _, err := s.orderRepo.FindByID(ctx, id); err != nil {
		return nil, storageError(err, "order", id)
	}
	activities, err := s.orderRepo.ListActivities(ctx, id)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return activities, nil
}

func (s *orderService) ReconcileStock(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "order", id)
	}
	if order.Status != model.OrderStatusCompleted {
		return nil, apperror.NewConflict("only completed orders can be reconciled")
	}
	if order.StockDeducted {
		return nil, apperror.NewConflict("stock already deducted for this order")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orderRepo.FindByID(txCtx, order.ID)
		if err != nil {
			return storageError(err, "order", order.ID)
		}
		// Completed outside the service: a short row clamps instead of failing.
		if err := s.deductStock(txCtx, current, actorID, false); err != nil {
			return err
		}
		return s.orderRepo.CreateActivity(txCtx, &model.OrderActivity{
			OrderID:    order.ID,
			Action:     model.ActivityReconciled,
			FromStatus: order.Status,
			ToStatus:   order.Status,
			ActorID:    actorID,
		})
	})
	if err != nil {
		return nil, s.fail("reconcile order stock", err, "order_id", order.ID, "actor_id", actorID)
	}

	s.log.Infow("order stock reconciled", "order_id", order.ID)
	return s.GetOrder(ctx, order.ID)
}

// resolveInputs pins every line to an explicit product type.
func (s *orderService) resolveInputs(ctx context.Context, inputs []OrderItemInput) ([]OrderItemInput, error) {
	resolved := make([]OrderItemInput, len(inputs))
	for i, in := range inputs {
		ref, err := s.inventory.ResolveRef(ctx, in.ProductRef)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("line", i)
			}
			return nil, err
		}
		in.ProductRef = ref
		resolved[i] = in
	}
	return resolved, nil
}

// fail converts err to an AppError and logs internal failures with their correlation fields.
func (s *orderService) fail(op string, err error, keysAndValues ...interface{}) error {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		appErr = storageError(err, "order", "").(*apperror.AppError)
	}
	if appErr.Code == apperror.CodeInternal {
		s.log.Errorw(op+" failed", append(keysAndValues, "error", err)...)
	}
	return appErr
}

func applyTotals(order *model.Order, t Totals) {
	order.Subtotal = t.Subtotal
	order.Discount = t.Discount
	order.TaxRate = t.TaxRate
	order.Tax = t.Tax
	order.Total = t.Total
	order.Cost = t.Cost
	order.Profit = t.Profit
}

func stockLinesFromInputs(inputs []OrderItemInput) []StockLine {
	lines := make([]StockLine, len(inputs))
	for i, in := range inputs {
		lines[i] = StockLine{Ref: in.ProductRef, Quantity: in.Quantity}
	}
	return lines
}

func stockLinesFromItems(items []model.OrderItem) []StockLine {
	lines := make([]StockLine, len(items))
	for i, item := range items {
		lines[i] = StockLine{Ref: item.Ref(), Quantity: item.Quantity}
	}
	return lines
}
