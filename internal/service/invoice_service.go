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

// --- DTOs ---

type CreateInvoiceRequest struct {
	OrderID uuid.UUID  `json:"order_id" binding:"required"`
	DueDate *time.Time `json:"due_date,omitempty"`
	Notes   string     `json:"notes"`
}

type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
}

// InvoiceResponse renders an invoice with its status derived at read time.
type InvoiceResponse struct {
	*model.Invoice
	Status       string `json:"status"`
	StoredStatus string `json:"stored_status"`
}

// --- Interface ---

type InvoiceService interface {
	CreateFromOrder(ctx context.Context, actorID *uuid.UUID, req CreateInvoiceRequest) (*InvoiceResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*InvoiceResponse, error)
	List(ctx context.Context, filter repository.InvoiceFilter) ([]InvoiceResponse, int64, error)
	MarkSent(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error)
	// RecordPayment appends a payment under a row lock and mirrors the result on the order.
	RecordPayment(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, req RecordPaymentRequest) (*InvoiceResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error)
	// MarkEmailSent is called only after the email sender reports success.
	MarkEmailSent(ctx context.Context, id uuid.UUID) error
	SetPdfPath(ctx context.Context, id uuid.UUID, path string) error
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	orderRepo   repository.OrderRepository
	numerator   *Numerator
	txManager   repository.TransactionManager
	dueDays     int
	log         *logger.Logger
	now         func() time.Time
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	orderRepo repository.OrderRepository,
	numerator *Numerator,
	txManager repository.TransactionManager,
	dueDays int,
	log *logger.Logger,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		orderRepo:   orderRepo,
		numerator:   numerator,
		txManager:   txManager,
		dueDays:     dueDays,
		log:         log.WithComponent("invoices"),
		now:         time.Now,
	}
}

func (s *invoiceService) render(inv *model.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		Invoice:      inv,
		Status:       inv.EffectiveStatus(s.now()),
		StoredStatus: inv.Status,
	}
}

func (s *invoiceService) CreateFromOrder(ctx context.Context, actorID *uuid.UUID, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, storageError(err, "order", req.OrderID)
	}
	if order.Status == model.OrderStatusCanceled {
		return nil, apperror.NewConflict("cannot invoice a canceled order")
	}

	exists, err := s.invoiceRepo.ExistsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if exists {
		return nil, apperror.NewConflict("invoice already exists for this order").WithDetail("order_id", order.ID.String())
	}

	now := s.now()
	dueDate := now.AddDate(0, 0, s.dueDays)
	if req.DueDate != nil {
		dueDate = *req.DueDate
	}

	number, err := s.numerator.Next(ctx, PrefixInvoice, s.invoiceRepo.ExistsByNumber)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	items := make([]model.InvoiceItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, model.InvoiceItem{
			Position:     it.Position,
			ProductType:  it.ProductType,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			VariantLabel: it.VariantLabel,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Discount:     it.Discount,
			Total:        it.Total,
		})
	}

	inv := &model.Invoice{
		InvoiceNumber:   number,
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		Items:           items,
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		Tax:             order.Tax,
		Total:           order.Total,
		PaidAmount:      decimal.Zero,
		RemainingAmount: order.Total,
		Status:          model.InvoiceStatusDraft,
		DueDate:         dueDate,
		Notes:           req.Notes,
		CreatedBy:       actorID,
	}
	if !inv.Total.IsPositive() {
		inv.RemainingAmount = decimal.Zero
		inv.Status = model.InvoiceStatusPaid
		inv.PaidAt = &now
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return s.invoiceRepo.Create(txCtx, inv)
	})
	if err != nil {
		if appErr := storageError(err, "invoice", order.ID); apperror.IsConflict(appErr) {
			return nil, apperror.NewConflict("invoice already exists for this order").WithCause(err)
		}
		s.log.Errorw("create invoice failed", "order_id", order.ID, "invoice_number", number, "error", err)
		return nil, apperror.NewInternal(err)
	}

	s.log.Infow("invoice created", "invoice_id", inv.ID, "invoice_number", inv.InvoiceNumber, "order_id", order.ID)
	return s.render(inv), nil
}

func (s *invoiceService) Get(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "invoice", id)
	}
	return s.render(inv), nil
}

func (s *invoiceService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, storageError(err, "invoice", orderID)
	}
	return s.render(inv), nil
}

func (s *invoiceService) List(ctx context.Context, filter repository.InvoiceFilter) ([]InvoiceResponse, int64, error) {
	invoices, total, err := s.invoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.NewInternal(err)
	}
	res := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		res = append(res, *s.render(&invoices[i]))
	}
	return res, total, nil
}

func (s *invoiceService) MarkSent(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return storageError(err, "invoice", id)
		}
		if inv.Status != model.InvoiceStatusDraft {
			return apperror.NewConflict("only draft invoices can be sent").WithDetail("status", inv.Status)
		}
		now := s.now()
		inv.Status = model.InvoiceStatusSent
		inv.SentAt = &now
		return s.invoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return nil, s.fail("mark invoice sent", err, id)
	}
	return s.Get(ctx, id)
}

func (s *invoiceService) RecordPayment(ctx context.Context, id uuid.UUID, actorID *uuid.UUID, req RecordPaymentRequest) (*InvoiceResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.NewFieldValidation("amount", "amount must be greater than zero")
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return storageError(err, "invoice", id)
		}
		switch inv.Status {
		case model.InvoiceStatusCanceled:
			return apperror.NewConflict("invoice is canceled")
		case model.InvoiceStatusPaid:
			return apperror.NewConflict("invoice is already paid")
		}
		if req.Amount.GreaterThan(inv.RemainingAmount) {
			return apperror.NewConflict("amount exceeds remaining balance").
				WithDetail("remaining_amount", inv.RemainingAmount.StringFixed(2)).
				WithDetail("amount", req.Amount.StringFixed(2))
		}

		now := s.now()
		paidAt := now
		if req.PaidAt != nil {
			paidAt = *req.PaidAt
		}
		if err := s.invoiceRepo.CreatePayment(txCtx, &model.Payment{
			InvoiceID:  inv.ID,
			Amount:     req.Amount,
			Method:     req.Method,
			Reference:  req.Reference,
			RecordedBy: actorID,
			PaidAt:     paidAt,
		}); err != nil {
			return err
		}

		inv.PaidAmount = inv.PaidAmount.Add(req.Amount)
		inv.RemainingAmount = inv.Total.Sub(inv.PaidAmount)
		orderPaymentStatus := model.PaymentStatusPartial
		if !inv.RemainingAmount.IsPositive() {
			inv.RemainingAmount = decimal.Zero
			inv.Status = model.InvoiceStatusPaid
			inv.PaidAt = &now
			orderPaymentStatus = model.PaymentStatusPaid
		} else {
			inv.Status = model.InvoiceStatusPartial
		}
		if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
			return err
		}
		return s.orderRepo.UpdatePayment(txCtx, inv.OrderID, inv.PaidAmount, orderPaymentStatus)
	})
	if err != nil {
		return nil, s.fail("record payment", err, id, "actor_id", actorID, "amount", req.Amount.String())
	}

	s.log.Infow("payment recorded", "invoice_id", id, "amount", req.Amount.StringFixed(2))
	return s.Get(ctx, id)
}

func (s *invoiceService) Cancel(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return storageError(err, "invoice", id)
		}
		switch inv.Status {
		case model.InvoiceStatusCanceled:
			return apperror.NewConflict("invoice is already canceled")
		case model.InvoiceStatusPaid:
			return apperror.NewConflict("a paid invoice cannot be canceled")
		}
		now := s.now()
		inv.Status = model.InvoiceStatusCanceled
		inv.CanceledAt = &now
		return s.invoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return nil, s.fail("cancel invoice", err, id)
	}
	return s.Get(ctx, id)
}

func (s *invoiceService) MarkEmailSent(ctx context.Context, id uuid.UUID) error {
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return storageError(err, "invoice", id)
		}
		now := s.now()
		inv.EmailSent = true
		inv.EmailSentAt = &now
		return s.invoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return s.fail("mark invoice email sent", err, id)
	}
	return nil
}

func (s *invoiceService) SetPdfPath(ctx context.Context, id uuid.UUID, path string) error {
	if path == "" {
		return apperror.NewFieldValidation("pdf_path", "pdf path is required")
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return storageError(err, "invoice", id)
		}
		inv.PdfPath = path
		return s.invoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return s.fail("set invoice pdf path", err, id)
	}
	return nil
}

func (s *invoiceService) fail(op string, err error, id uuid.UUID, keysAndValues ...interface{}) error {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		appErr = storageError(err, "invoice", id).(*apperror.AppError)
	}
	if appErr.Code == apperror.CodeInternal {
		s.log.Errorw(op+" failed", append([]interface{}{"invoice_id", id, "error", err}, keysAndValues...)...)
	}
	return appErr
}
