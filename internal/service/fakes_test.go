package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// passThroughTx runs fn directly; AfterCommit hooks therefore fire immediately.
type passThroughTx struct{}

func (passThroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type recordedEvent struct {
	Event string
	Data  map[string]interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(event string, data map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Event: event, Data: data})
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}

// --- products ---

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*model.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func cloneProduct(p *model.Product) *model.Product {
	c := *p
	c.Variants = append([]model.ProductVariant(nil), p.Variants...)
	return &c
}

// seed stores p as-is, assigning ids where missing, and returns a copy.
func (r *fakeProductRepo) seed(p *model.Product) *model.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignIDs(p)
	r.products[p.ID] = cloneProduct(p)
	return cloneProduct(p)
}

func (r *fakeProductRepo) assignIDs(p *model.Product) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	for i := range p.Variants {
		if p.Variants[i].ID == uuid.Nil {
			p.Variants[i].ID = uuid.New()
		}
		p.Variants[i].ProductID = p.ID
	}
}

func (r *fakeProductRepo) get(id uuid.UUID) *model.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil
	}
	return cloneProduct(p)
}

func (r *fakeProductRepo) Create(_ context.Context, product *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == product.Slug {
			return gorm.ErrDuplicatedKey
		}
	}
	r.assignIDs(product)
	r.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *fakeProductRepo) Update(_ context.Context, product *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.products[product.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c := cloneProduct(product)
	c.Variants = stored.Variants
	c.BaseStock = stored.BaseStock
	r.products[product.ID] = c
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	return nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	if p := r.get(id); p != nil {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeProductRepo) ExistsBySlug(_ context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == slug && (excludeID == nil || p.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeProductRepo) List(_ context.Context, filter repository.ProductFilter) ([]model.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (r *fakeProductRepo) CreateVariant(_ context.Context, variant *model.ProductVariant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[variant.ProductID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if variant.ID == uuid.Nil {
		variant.ID = uuid.New()
	}
	p.Variants = append(p.Variants, *variant)
	return nil
}

func (r *fakeProductRepo) UpdateVariant(_ context.Context, variant *model.ProductVariant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[variant.ProductID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variant.ID {
			stock := p.Variants[i].Stock
			p.Variants[i] = *variant
			p.Variants[i].Stock = stock
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeProductRepo) DeleteVariant(_ context.Context, productID, variantID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			p.Variants = append(p.Variants[:i], p.Variants[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeProductRepo) AdjustBaseStock(_ context.Context, id uuid.UUID, delta int) (repository.StockChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.StockChange{}, gorm.ErrRecordNotFound
	}
	before := p.BaseStock
	p.BaseStock = max(before+delta, 0)
	return repository.StockChange{Before: before, After: p.BaseStock}, nil
}

func (r *fakeProductRepo) AdjustVariantStock(_ context.Context, productID, variantID uuid.UUID, delta int) (repository.StockChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return repository.StockChange{}, gorm.ErrRecordNotFound
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			before := p.Variants[i].Stock
			p.Variants[i].Stock = max(before+delta, 0)
			return repository.StockChange{Before: before, After: p.Variants[i].Stock}, nil
		}
	}
	return repository.StockChange{}, gorm.ErrRecordNotFound
}

func (r *fakeProductRepo) DeductBaseStock(_ context.Context, id uuid.UUID, qty int) (repository.StockChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.StockChange{}, gorm.ErrRecordNotFound
	}
	if p.BaseStock < qty {
		return repository.StockChange{}, repository.ErrStockShortfall
	}
	before := p.BaseStock
	p.BaseStock -= qty
	return repository.StockChange{Before: before, After: p.BaseStock}, nil
}

func (r *fakeProductRepo) DeductVariantStock(_ context.Context, productID, variantID uuid.UUID, qty int) (repository.StockChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return repository.StockChange{}, gorm.ErrRecordNotFound
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			if p.Variants[i].Stock < qty {
				return repository.StockChange{}, repository.ErrStockShortfall
			}
			before := p.Variants[i].Stock
			p.Variants[i].Stock -= qty
			return repository.StockChange{Before: before, After: p.Variants[i].Stock}, nil
		}
	}
	return repository.StockChange{}, gorm.ErrRecordNotFound
}

// --- special products ---

type fakeSpecialRepo struct {
	mu       sync.Mutex
	products *fakeProductRepo
	specials map[uuid.UUID]*model.SpecialProduct
}

func newFakeSpecialRepo(products *fakeProductRepo) *fakeSpecialRepo {
	return &fakeSpecialRepo{products: products, specials: make(map[uuid.UUID]*model.SpecialProduct)}
}

func cloneSpecial(sp *model.SpecialProduct) *model.SpecialProduct {
	c := *sp
	c.Combinations = append([]model.Combination(nil), sp.Combinations...)
	c.BaseProductA, c.BaseProductB = nil, nil
	return &c
}

func (r *fakeSpecialRepo) seed(sp *model.SpecialProduct) *model.SpecialProduct {
	r.mu.Lock()
	if sp.ID == uuid.Nil {
		sp.ID = uuid.New()
	}
	for i := range sp.Combinations {
		if sp.Combinations[i].ID == uuid.Nil {
			sp.Combinations[i].ID = uuid.New()
		}
		sp.Combinations[i].SpecialProductID = sp.ID
	}
	r.specials[sp.ID] = cloneSpecial(sp)
	r.mu.Unlock()
	out, _ := r.FindByID(context.Background(), sp.ID)
	return out
}

func (r *fakeSpecialRepo) Create(_ context.Context, sp *model.SpecialProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.specials {
		if existing.Slug == sp.Slug {
			return gorm.ErrDuplicatedKey
		}
	}
	if sp.ID == uuid.Nil {
		sp.ID = uuid.New()
	}
	for i := range sp.Combinations {
		sp.Combinations[i].ID = uuid.New()
		sp.Combinations[i].SpecialProductID = sp.ID
	}
	r.specials[sp.ID] = cloneSpecial(sp)
	return nil
}

func (r *fakeSpecialRepo) Update(_ context.Context, sp *model.SpecialProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.specials[sp.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c := cloneSpecial(sp)
	c.Combinations = stored.Combinations
	r.specials[sp.ID] = c
	return nil
}

func (r *fakeSpecialRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.specials, id)
	return nil
}

func (r *fakeSpecialRepo) FindByID(_ context.Context, id uuid.UUID) (*model.SpecialProduct, error) {
	r.mu.Lock()
	sp, ok := r.specials[id]
	if !ok {
		r.mu.Unlock()
		return nil, gorm.ErrRecordNotFound
	}
	out := cloneSpecial(sp)
	r.mu.Unlock()

	out.BaseProductA = r.products.get(out.BaseProductAID)
	out.BaseProductB = r.products.get(out.BaseProductBID)
	return out, nil
}

func (r *fakeSpecialRepo) ExistsBySlug(_ context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sp := range r.specials {
		if sp.Slug == slug && (excludeID == nil || sp.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSpecialRepo) List(ctx context.Context, _ string, _, _ int) ([]model.SpecialProduct, int64, error) {
	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.specials))
	for id := range r.specials {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	out := make([]model.SpecialProduct, 0, len(ids))
	for _, id := range ids {
		sp, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *sp)
	}
	return out, int64(len(out)), nil
}

func (r *fakeSpecialRepo) CreateCombinations(_ context.Context, combinations []model.Combination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range combinations {
		c := combinations[i]
		sp, ok := r.specials[c.SpecialProductID]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		sp.Combinations = append(sp.Combinations, c)
	}
	return nil
}

func (r *fakeSpecialRepo) UpdateCombination(_ context.Context, combination *model.Combination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sp, ok := r.specials[combination.SpecialProductID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range sp.Combinations {
		if sp.Combinations[i].ID == combination.ID {
			sp.Combinations[i] = *combination
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// --- ledger ---

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []model.InventoryLog
}

func (r *fakeLogRepo) Create(_ context.Context, entry *model.InventoryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLogRepo) List(_ context.Context, filter repository.InventoryLogFilter) ([]model.InventoryLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.InventoryLog
	for _, e := range r.entries {
		if filter.OrderID != nil && (e.OrderID == nil || *e.OrderID != *filter.OrderID) {
			continue
		}
		if filter.ChangeType != "" && e.ChangeType != filter.ChangeType {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (r *fakeLogRepo) all() []model.InventoryLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.InventoryLog(nil), r.entries...)
}

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []model.StockAlert
}

func (r *fakeAlertRepo) FindActive(_ context.Context, productID uuid.UUID) (*model.StockAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ProductID == productID && a.IsActive {
			c := a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeAlertRepo) Create(_ context.Context, alert *model.StockAlert) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ProductID == alert.ProductID && a.IsActive {
			return false, nil
		}
	}
	alert.ID = uuid.New()
	r.alerts = append(r.alerts, *alert)
	return true, nil
}

func (r *fakeAlertRepo) UpdateStock(_ context.Context, id uuid.UUID, currentStock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			r.alerts[i].CurrentStock = currentStock
		}
	}
	return nil
}

func (r *fakeAlertRepo) Resolve(_ context.Context, id uuid.UUID, resolvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			r.alerts[i].IsActive = false
			r.alerts[i].ResolvedAt = &resolvedAt
		}
	}
	return nil
}

func (r *fakeAlertRepo) ListActive(_ context.Context) ([]model.StockAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockAlert
	for _, a := range r.alerts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- orders ---

type fakeOrderRepo struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*model.Order
	activities []model.OrderActivity
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.OrderItem(nil), o.Items...)
	return &c
}

func (r *fakeOrderRepo) Create(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == order.OrderNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) ExistsByNumber(_ context.Context, orderNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeOrderRepo) List(_ context.Context, filter repository.OrderFilter) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to string, fields map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if t, ok := fields["completed_at"].(time.Time); ok {
		o.CompletedAt = &t
	}
	if t, ok := fields["canceled_at"].(time.Time); ok {
		o.CanceledAt = &t
	}
	return true, nil
}

func (r *fakeOrderRepo) MarkStockDeducted(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.StockDeducted {
		return false, nil
	}
	o.StockDeducted = true
	return true, nil
}

func (r *fakeOrderRepo) ReplaceItems(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *fakeOrderRepo) UpdatePayment(_ context.Context, id uuid.UUID, amountPaid decimal.Decimal, paymentStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.AmountPaid = amountPaid
	o.PaymentStatus = paymentStatus
	return nil
}

func (r *fakeOrderRepo) CreateActivity(_ context.Context, activity *model.OrderActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	activity.ID = uuid.New()
	r.activities = append(r.activities, *activity)
	return nil
}

func (r *fakeOrderRepo) ListActivities(_ context.Context, orderID uuid.UUID) ([]model.OrderActivity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.OrderActivity
	for _, a := range r.activities {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

// setStatus writes a status directly, as a row edited outside the service would be.
func (r *fakeOrderRepo) setStatus(id uuid.UUID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[id].Status = status
}

// --- invoices ---

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*model.Invoice
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[uuid.UUID]*model.Invoice)}
}

func cloneInvoice(inv *model.Invoice) *model.Invoice {
	c := *inv
	c.Items = append([]model.InvoiceItem(nil), inv.Items...)
	c.Payments = append([]model.Payment(nil), inv.Payments...)
	return &c
}

func (r *fakeInvoiceRepo) Create(_ context.Context, invoice *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.OrderID == invoice.OrderID {
			return gorm.ErrDuplicatedKey
		}
	}
	invoice.ID = uuid.New()
	r.invoices[invoice.ID] = cloneInvoice(invoice)
	return nil
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneInvoice(inv), nil
}

func (r *fakeInvoiceRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeInvoiceRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.OrderID == orderID {
			return cloneInvoice(inv), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeInvoiceRepo) ExistsByOrderID(ctx context.Context, orderID uuid.UUID) (bool, error) {
	_, err := r.FindByOrderID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *fakeInvoiceRepo) ExistsByNumber(_ context.Context, invoiceNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeInvoiceRepo) Update(_ context.Context, invoice *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[invoice.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c := cloneInvoice(invoice)
	c.Items = stored.Items
	c.Payments = stored.Payments
	r.invoices[invoice.ID] = c
	return nil
}

func (r *fakeInvoiceRepo) CreatePayment(_ context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[payment.InvoiceID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	payment.ID = uuid.New()
	inv.Payments = append(inv.Payments, *payment)
	return nil
}

func (r *fakeInvoiceRepo) List(_ context.Context, _ repository.InvoiceFilter) ([]model.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Invoice
	for _, inv := range r.invoices {
		out = append(out, *cloneInvoice(inv))
	}
	return out, int64(len(out)), nil
}

// --- expenses, audit, sequences ---

type fakeExpenseRepo struct {
	mu       sync.Mutex
	expenses []model.Expense
}

func (r *fakeExpenseRepo) Create(_ context.Context, expense *model.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	expense.ID = uuid.New()
	expense.CreatedAt = time.Now()
	r.expenses = append(r.expenses, *expense)
	return nil
}

func (r *fakeExpenseRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.expenses {
		if e.ID == id {
			c := e
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeExpenseRepo) ExistsByNumber(_ context.Context, expenseNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.expenses {
		if e.ExpenseNumber == expenseNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeExpenseRepo) List(_ context.Context, filter repository.ExpenseFilter) ([]model.Expense, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Expense
	for _, e := range r.expenses {
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.New()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, entityID string, _, _ int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for _, e := range r.entries {
		if entityID == "" || e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeSequenceRepo struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func newFakeSequenceRepo() *fakeSequenceRepo {
	return &fakeSequenceRepo{values: make(map[string]int64)}
}

func (r *fakeSequenceRepo) Next(_ context.Context, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.values[key]++
	return r.values[key], nil
}

// --- jobs ---

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs []*model.Job
}

func (r *fakeJobRepo) CreateIfAbsent(_ context.Context, job *model.Job) (*model.Job, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.IdempotencyKey == job.IdempotencyKey {
			c := *j
			return &c, false, nil
		}
	}
	job.ID = uuid.New()
	c := *job
	r.jobs = append(r.jobs, &c)
	out := c
	return &out, true, nil
}

func (r *fakeJobRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ID == id {
			c := *j
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeJobRepo) ClaimNext(_ context.Context, now time.Time) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.Status == model.JobStatusPending && !j.RunAt.After(now) {
			j.Status = model.JobStatusRunning
			j.Attempts++
			c := *j
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeJobRepo) Update(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, j := range r.jobs {
		if j.ID == job.ID {
			c := *job
			r.jobs[i] = &c
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeJobRepo) RequeueFailed(_ context.Context, id uuid.UUID, payload string, runAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ID == id && j.Status == model.JobStatusFailed {
			j.Status = model.JobStatusPending
			j.Payload = payload
			j.Attempts = 0
			j.LastError = ""
			j.FinishedAt = nil
			j.RunAt = runAt
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeJobRepo) List(_ context.Context, status string, _, _ int) ([]model.Job, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Job
	for _, j := range r.jobs {
		if status == "" || j.Status == status {
			out = append(out, *j)
		}
	}
	return out, int64(len(out)), nil
}

// --- wiring ---

const testThreshold = 10

type testEnv struct {
	products  *fakeProductRepo
	specials  *fakeSpecialRepo
	logs      *fakeLogRepo
	alerts    *fakeAlertRepo
	orders    *fakeOrderRepo
	invoices  *fakeInvoiceRepo
	expenses  *fakeExpenseRepo
	audits    *fakeAuditRepo
	sequences *fakeSequenceRepo
	publisher *fakePublisher

	numerator *Numerator
	inventory InventoryService
	pricer    *Pricer
	catalog   CatalogService
	orderSvc  OrderService
	invoice   InvoiceService
	expense   ExpenseService
}

func newTestEnv() *testEnv {
	log := logger.Nop()
	e := &testEnv{
		products:  newFakeProductRepo(),
		logs:      &fakeLogRepo{},
		alerts:    &fakeAlertRepo{},
		orders:    newFakeOrderRepo(),
		invoices:  newFakeInvoiceRepo(),
		expenses:  &fakeExpenseRepo{},
		audits:    &fakeAuditRepo{},
		sequences: newFakeSequenceRepo(),
		publisher: &fakePublisher{},
	}
	e.specials = newFakeSpecialRepo(e.products)
	tx := passThroughTx{}

	e.numerator = NewNumerator(e.sequences, 5, log)
	e.inventory = NewInventoryService(e.products, e.specials, e.logs, e.alerts, tx, e.publisher, testThreshold, log)
	e.pricer = NewPricer(e.products, e.specials, 0.6)
	e.catalog = NewCatalogService(e.products, e.specials, e.audits, e.inventory, tx, log)
	e.orderSvc = NewOrderService(e.orders, e.inventory, e.pricer, e.numerator, tx, e.publisher, 0, log)
	e.invoice = NewInvoiceService(e.invoices, e.orders, e.numerator, tx, 30, log)
	e.expense = NewExpenseService(e.expenses, e.audits, e.numerator, tx, log)
	return e
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func regularRef(id uuid.UUID) model.ProductRef {
	return model.ProductRef{Type: model.ProductTypeRegular, ProductID: id}
}

func variantRef(id, variantID uuid.UUID) model.ProductRef {
	return model.ProductRef{Type: model.ProductTypeRegular, ProductID: id, VariantID: &variantID}
}
