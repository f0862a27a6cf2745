package service

import (
	"backoffice/internal/model"

	"github.com/google/uuid"
)

// EffectiveStock is the sellable stock of a regular product: the sum of its
// variant stocks when it has variants, otherwise its scalar stock.
// Nil products and negative stored values resolve to zero.
func EffectiveStock(p *model.Product) int {
	if p == nil {
		return 0
	}
	if !p.HasVariants() {
		return nonNegative(p.BaseStock)
	}
	total := 0
	for _, v := range p.Variants {
		total += nonNegative(v.Stock)
	}
	return total
}

// HasAvailableStock reports whether any unit of the product can be sold.
func HasAvailableStock(p *model.Product) bool {
	if p == nil {
		return false
	}
	if !p.HasVariants() {
		return p.BaseStock > 0
	}
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}

// VariantStock returns the stock of one variant, or zero if the product has no such variant.
func VariantStock(p *model.Product, variantID uuid.UUID) int {
	v := p.FindVariant(variantID)
	if v == nil {
		return 0
	}
	return nonNegative(v.Stock)
}

// SideStock resolves one side of a combination independently of the other side.
// The scalar stock is used when the base product has no variants or when the side
// pins no variant. A pinned variant that no longer exists resolves to zero.
func SideStock(base *model.Product, pinned *uuid.UUID) int {
	if base == nil {
		return 0
	}
	if !base.HasVariants() || pinned == nil {
		return nonNegative(base.BaseStock)
	}
	return VariantStock(base, *pinned)
}

// CombinationStock is min(stock of side A, stock of side B).
func CombinationStock(c *model.Combination, productA, productB *model.Product) int {
	if c == nil {
		return 0
	}
	a := SideStock(productA, c.VariantAID)
	b := SideStock(productB, c.VariantBID)
	if a < b {
		return a
	}
	return b
}

// SpecialProductStock is the total sellable stock over all combinations.
// Combinations share base stock, so this is an upper bound for display only.
func SpecialProductStock(sp *model.SpecialProduct) int {
	if sp == nil {
		return 0
	}
	total := 0
	for i := range sp.Combinations {
		total += CombinationStock(&sp.Combinations[i], sp.BaseProductA, sp.BaseProductB)
	}
	return total
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
