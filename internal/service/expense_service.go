package service

import (
	"context"
	"encoding/json"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateExpenseRequest struct {
	Category    string     `json:"category" binding:"required,oneof=rent payroll supplies logistics marketing other"`
	Amount      string     `json:"amount" binding:"required"` // Decimal string
	Description string     `json:"description"`
	DocumentURL string     `json:"document_url"`
	IncurredAt  *time.Time `json:"incurred_at"`
}

type ExpenseResponse struct {
	ID            string  `json:"id"`
	ExpenseNumber string  `json:"expense_number"`
	Category      string  `json:"category"`
	Amount        string  `json:"amount"`
	Description   string  `json:"description"`
	DocumentURL   string  `json:"document_url"`
	IncurredAt    string  `json:"incurred_at"`
	CreatedBy     *string `json:"created_by"`
	CreatedAt     string  `json:"created_at"`
}

// --- Interface ---

type ExpenseService interface {
	CreateExpense(ctx context.Context, actorID *uuid.UUID, req CreateExpenseRequest) (ExpenseResponse, error)
	GetExpense(ctx context.Context, id uuid.UUID) (ExpenseResponse, error)
	GetExpenses(ctx context.Context, filter repository.ExpenseFilter) ([]ExpenseResponse, int64, error)
}

type expenseService struct {
	expenseRepo repository.ExpenseRepository
	auditRepo   repository.AuditRepository
	numerator   *Numerator
	txManager   repository.TransactionManager
	log         *logger.Logger
	now         func() time.Time
}

func NewExpenseService(
	expenseRepo repository.ExpenseRepository,
	auditRepo repository.AuditRepository,
	numerator *Numerator,
	txManager repository.TransactionManager,
	log *logger.Logger,
) ExpenseService {
	return &expenseService{
		expenseRepo: expenseRepo,
		auditRepo:   auditRepo,
		numerator:   numerator,
		txManager:   txManager,
		log:         log.WithComponent("expenses"),
		now:         time.Now,
	}
}

func (s *expenseService) CreateExpense(ctx context.Context, actorID *uuid.UUID, req CreateExpenseRequest) (ExpenseResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ExpenseResponse{}, apperror.NewFieldValidation("amount", "invalid amount")
	}
	if !amount.IsPositive() {
		return ExpenseResponse{}, apperror.NewFieldValidation("amount", "amount must be greater than zero")
	}

	incurredAt := s.now()
	if req.IncurredAt != nil {
		incurredAt = *req.IncurredAt
	}

	number, err := s.numerator.Next(ctx, PrefixExpense, s.expenseRepo.ExistsByNumber)
	if err != nil {
		return ExpenseResponse{}, apperror.NewInternal(err)
	}

	expense := model.Expense{
		ExpenseNumber: number,
		Category:      req.Category,
		Amount:        amount.Round(2),
		Description:   req.Description,
		DocumentURL:   req.DocumentURL,
		IncurredAt:    incurredAt,
		CreatedBy:     actorID,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.expenseRepo.Create(txCtx, &expense); err != nil {
			return err
		}
		details, _ := json.Marshal(map[string]interface{}{
			"category": expense.Category,
			"amount":   expense.Amount.StringFixed(2),
		})
		return s.auditRepo.Log(txCtx, &model.AuditLog{
			ActorID:    actorID,
			Action:     model.ActionCreateExpense,
			EntityID:   expense.ID.String(),
			EntityName: expense.ExpenseNumber,
			Details:    string(details),
		})
	})
	if err != nil {
		s.log.Errorw("create expense failed", "expense_number", number, "actor_id", actorID, "error", err)
		return ExpenseResponse{}, storageError(err, "expense", number)
	}

	return toExpenseResponse(expense), nil
}

func (s *expenseService) GetExpense(ctx context.Context, id uuid.UUID) (ExpenseResponse, error) {
	expense, err := s.expenseRepo.FindByID(ctx, id)
	if err != nil {
		return ExpenseResponse{}, storageError(err, "expense", id)
	}
	return toExpenseResponse(*expense), nil
}

func (s *expenseService) GetExpenses(ctx context.Context, filter repository.ExpenseFilter) ([]ExpenseResponse, int64, error) {
	expenses, total, err := s.expenseRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.NewInternal(err)
	}

	res := make([]ExpenseResponse, 0, len(expenses))
	for _, e := range expenses {
		res = append(res, toExpenseResponse(e))
	}
	return res, total, nil
}

func toExpenseResponse(e model.Expense) ExpenseResponse {
	var createdBy *string
	if e.CreatedBy != nil {
		s := e.CreatedBy.String()
		createdBy = &s
	}
	return ExpenseResponse{
		ID:            e.ID.String(),
		ExpenseNumber: e.ExpenseNumber,
		Category:      e.Category,
		Amount:        e.Amount.StringFixed(2),
		Description:   e.Description,
		DocumentURL:   e.DocumentURL,
		IncurredAt:    e.IncurredAt.Format(time.RFC3339),
		CreatedBy:     createdBy,
		CreatedAt:     e.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
