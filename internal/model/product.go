package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductType discriminates order lines and ledger rows between simple and composite products.
type ProductType string

const (
	ProductTypeRegular ProductType = "regular"
	ProductTypeSpecial ProductType = "special"
)

// Valid reports whether t is one of the known product types.
func (t ProductType) Valid() bool {
	return t == ProductTypeRegular || t == ProductTypeSpecial
}

// Product is a sellable catalog item, optionally partitioned into variants.
// When Variants is non-empty the sellable stock lives on the variants and BaseStock is ignored.
type Product struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKU            string           `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name           string           `gorm:"type:varchar(255);not null" json:"name"`
	Slug           string           `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	CategoryID     *uuid.UUID       `gorm:"type:uuid;index" json:"category_id"`
	Description    string           `gorm:"type:text" json:"description"`
	Image          string           `gorm:"type:text" json:"image"`
	RetailPrice    decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"retail_price"`
	WholesalePrice decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"wholesale_price"`
	ChannelPrice   decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"channel_price"`
	Cost           decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"cost"`
	BaseStock      int              `gorm:"type:int;not null;default:0;check:base_stock >= 0" json:"base_stock"`
	IsActive       bool             `gorm:"default:true" json:"is_active"`
	Variants       []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	DeletedAt      gorm.DeletedAt   `gorm:"index" json:"-"`
}

// ProductVariant is one option of a product (e.g. a color) with its own stock.
type ProductVariant struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_variant_value" json:"product_id"`
	Value           string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_variant_value" json:"value"`
	Stock           int             `gorm:"type:int;not null;default:0;check:stock >= 0" json:"stock"`
	Image           string          `gorm:"type:text" json:"image"`
	AdditionalPrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"additional_price"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasVariants reports whether stock is tracked per variant.
func (p *Product) HasVariants() bool {
	return p != nil && len(p.Variants) > 0
}

// FindVariant returns the variant with the given id, or nil.
func (p *Product) FindVariant(id uuid.UUID) *ProductVariant {
	if p == nil {
		return nil
	}
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// SpecialProduct is a composite sold as a pairing of one option of BaseProductA with one of BaseProductB.
// It never stores stock of its own.
type SpecialProduct struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name           string              `gorm:"type:varchar(255);not null" json:"name"`
	Slug           string              `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Description    string              `gorm:"type:text" json:"description"`
	Image          string              `gorm:"type:text" json:"image"`
	BaseProductAID uuid.UUID           `gorm:"type:uuid;not null;index" json:"base_product_a_id"`
	BaseProductA   *Product            `gorm:"foreignKey:BaseProductAID" json:"base_product_a,omitempty"`
	BaseProductBID uuid.UUID           `gorm:"type:uuid;not null;index" json:"base_product_b_id"`
	BaseProductB   *Product            `gorm:"foreignKey:BaseProductBID" json:"base_product_b,omitempty"`
	FinalPrice     decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"final_price"`
	Cost           decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"cost"`
	IsActive       bool                `gorm:"default:true" json:"is_active"`
	Combinations   []Combination       `gorm:"foreignKey:SpecialProductID;constraint:OnDelete:CASCADE" json:"combinations"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	DeletedAt      gorm.DeletedAt      `gorm:"index" json:"-"`
}

// Combination pins (optionally) one variant of each base product.
// A nil side falls back to that base product's scalar stock.
type Combination struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SpecialProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"special_product_id"`
	VariantAID       *uuid.UUID      `gorm:"type:uuid" json:"variant_a_id"`
	VariantBID       *uuid.UUID      `gorm:"type:uuid" json:"variant_b_id"`
	Label            string          `gorm:"type:varchar(255)" json:"label"`
	FinalImage       string          `gorm:"type:text" json:"final_image"`
	AdditionalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"additional_price"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Combination) TableName() string {
	return "special_product_combinations"
}

// FindCombination returns the combination with the given id, or nil.
func (sp *SpecialProduct) FindCombination(id uuid.UUID) *Combination {
	if sp == nil {
		return nil
	}
	for i := range sp.Combinations {
		if sp.Combinations[i].ID == id {
			return &sp.Combinations[i]
		}
	}
	return nil
}

// FindCombinationByVariants matches a combination by its pinned variant pair.
func (sp *SpecialProduct) FindCombinationByVariants(variantA, variantB *uuid.UUID) *Combination {
	if sp == nil {
		return nil
	}
	for i := range sp.Combinations {
		c := &sp.Combinations[i]
		if sameRef(c.VariantAID, variantA) && sameRef(c.VariantBID, variantB) {
			return c
		}
	}
	return nil
}

func sameRef(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
