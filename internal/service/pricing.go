package service

import (
	"context"
	"fmt"

	"backoffice/internal/apperror"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResolvePriceTier maps a sales channel onto its price tier.
// The mapping is total over model.OrderSource; an unknown source is a programming error.
func ResolvePriceTier(source model.OrderSource) model.PriceTier {
	switch source {
	case model.SourceCatalog:
		return model.TierWholesale
	case model.SourcePOS, model.SourceCommercialPOS, model.SourceAdmin:
		return model.TierRetail
	case model.SourcePage:
		return model.TierChannel
	}
	panic(fmt.Sprintf("pricing: unmapped order source %q", source))
}

// OrderItemInput is one raw line as submitted by a caller.
type OrderItemInput struct {
	model.ProductRef
	Quantity int `json:"quantity"`
	// UnitPrice is used only when the catalog price for the tier is zero.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Discount  decimal.Decimal  `json:"discount"`
}

// Totals is the reconciled money summary of an order.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Cost     decimal.Decimal `json:"cost"`
	Profit   decimal.Decimal `json:"profit"`
}

// CalculateOrderTotals sums the lines and applies the order discount and tax.
// Profit is taken before tax.
func CalculateOrderTotals(items []model.OrderItem, discount, taxRate decimal.Decimal) (Totals, error) {
	if taxRate.IsNegative() {
		return Totals{}, apperror.NewFieldValidation("tax_rate", "tax rate must not be negative")
	}

	subtotal := decimal.Zero
	cost := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal)
		cost = cost.Add(item.Cost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if discount.IsNegative() {
		return Totals{}, apperror.NewFieldValidation("discount", "discount must not be negative")
	}
	if discount.GreaterThan(subtotal) {
		return Totals{}, apperror.NewFieldValidation("discount", "discount exceeds subtotal").
			WithDetail("subtotal", subtotal.StringFixed(2))
	}

	afterDiscount := subtotal.Sub(discount)
	tax := afterDiscount.Mul(taxRate).Round(2)

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		TaxRate:  taxRate,
		Tax:      tax,
		Total:    afterDiscount.Add(tax),
		Cost:     cost.Round(2),
		Profit:   afterDiscount.Sub(cost).Round(2),
	}, nil
}

// Pricer turns raw lines into priced, snapshotted order items.
type Pricer struct {
	products  repository.ProductRepository
	specials  repository.SpecialProductRepository
	costRatio decimal.Decimal
}

func NewPricer(products repository.ProductRepository, specials repository.SpecialProductRepository, compositeCostRatio float64) *Pricer {
	return &Pricer{
		products:  products,
		specials:  specials,
		costRatio: decimal.NewFromFloat(compositeCostRatio),
	}
}

// BuildOrderItems prices every line under tier. Every line must carry a resolved product type.
func (p *Pricer) BuildOrderItems(ctx context.Context, raw []OrderItemInput, tier model.PriceTier) ([]model.OrderItem, error) {
	if len(raw) == 0 {
		return nil, apperror.NewFieldValidation("items", "at least one item is required")
	}

	items := make([]model.OrderItem, 0, len(raw))
	for i, in := range raw {
		if in.Quantity < 1 {
			return nil, apperror.NewFieldValidation("quantity", "quantity must be at least 1").WithDetail("line", i)
		}

		var item model.OrderItem
		var err error
		switch in.Type {
		case model.ProductTypeRegular:
			item, err = p.regularItem(ctx, in, tier)
		case model.ProductTypeSpecial:
			item, err = p.specialItem(ctx, in)
		default:
			err = apperror.NewFieldValidation("product_type", "product type must be resolved before pricing")
		}
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("line", i)
			}
			return nil, err
		}

		gross := item.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		if in.Discount.IsNegative() || in.Discount.GreaterThan(gross) {
			return nil, apperror.NewFieldValidation("discount", "line discount must be between 0 and the line amount").WithDetail("line", i)
		}

		item.Position = i
		item.Quantity = in.Quantity
		item.Discount = in.Discount
		item.Subtotal = gross.Sub(in.Discount)
		item.Total = item.Subtotal
		items = append(items, item)
	}
	return items, nil
}

func (p *Pricer) regularItem(ctx context.Context, in OrderItemInput, tier model.PriceTier) (model.OrderItem, error) {
	product, err := p.products.FindByID(ctx, in.ProductID)
	if err != nil {
		return model.OrderItem{}, storageError(err, "product", in.ProductID)
	}

	base, err := pickPrice(tierPrice(product, tier), in.UnitPrice)
	if err != nil {
		return model.OrderItem{}, err
	}

	item := model.OrderItem{
		ProductType: model.ProductTypeRegular,
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   base,
		Cost:        product.Cost,
	}

	switch {
	case product.HasVariants():
		if in.VariantID == nil {
			return model.OrderItem{}, apperror.NewFieldValidation("variant_id", "variant_id is required for a product with variants")
		}
		variant := product.FindVariant(*in.VariantID)
		if variant == nil {
			return model.OrderItem{}, apperror.NewNotFound("variant", *in.VariantID)
		}
		item.VariantID = &variant.ID
		item.VariantLabel = variant.Value
		item.UnitPrice = base.Add(variant.AdditionalPrice)
	case in.VariantID != nil:
		return model.OrderItem{}, apperror.NewFieldValidation("variant_id", "product has no variants")
	}
	return item, nil
}

func (p *Pricer) specialItem(ctx context.Context, in OrderItemInput) (model.OrderItem, error) {
	sp, err := p.specials.FindByID(ctx, in.ProductID)
	if err != nil {
		return model.OrderItem{}, storageError(err, "special product", in.ProductID)
	}
	combo, err := selectCombination(sp, in.ProductRef)
	if err != nil {
		return model.OrderItem{}, err
	}

	base, err := pickPrice(sp.FinalPrice, in.UnitPrice)
	if err != nil {
		return model.OrderItem{}, err
	}

	cost := sp.FinalPrice.Mul(p.costRatio).Round(2)
	if sp.Cost.Valid {
		cost = sp.Cost.Decimal
	}

	comboID := combo.ID
	return model.OrderItem{
		ProductType:   model.ProductTypeSpecial,
		ProductID:     sp.ID,
		CombinationID: &comboID,
		ProductName:   sp.Name,
		VariantLabel:  combinationLabel(sp, combo),
		UnitPrice:     base.Add(combo.AdditionalPrice),
		Cost:          cost,
	}, nil
}

func tierPrice(p *model.Product, tier model.PriceTier) decimal.Decimal {
	switch tier {
	case model.TierWholesale:
		return p.WholesalePrice
	case model.TierChannel:
		return p.ChannelPrice
	default:
		return p.RetailPrice
	}
}

// pickPrice prefers the catalog price and falls back to the caller's override when it is unset.
func pickPrice(catalog decimal.Decimal, override *decimal.Decimal) (decimal.Decimal, error) {
	if catalog.IsPositive() {
		return catalog, nil
	}
	if override == nil {
		return decimal.Zero, apperror.NewFieldValidation("unit_price", "no price configured for this tier and no unit_price given")
	}
	if override.IsNegative() {
		return decimal.Zero, apperror.NewFieldValidation("unit_price", "unit_price must not be negative")
	}
	return *override, nil
}

func combinationLabel(sp *model.SpecialProduct, c *model.Combination) string {
	if c.Label != "" {
		return c.Label
	}
	a := sideLabel(sp.BaseProductA, c.VariantAID)
	b := sideLabel(sp.BaseProductB, c.VariantBID)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " / " + b
}

func sideLabel(base *model.Product, pinned *uuid.UUID) string {
	if base == nil || pinned == nil {
		return ""
	}
	if v := base.FindVariant(*pinned); v != nil {
		return v.Value
	}
	return ""
}
