package domain

import (
	"github.com/shopspring/decimal"
	"strings"
)

const EntityProduct = "product"

// WeightUnit 商品重量/容量单位
type WeightUnit string

const (
	WeightUnitKG WeightUnit = "KG"
	WeightUnitG  WeightUnit = "G"
	WeightUnitL  WeightUnit = "L"
	WeightUnitML WeightUnit = "ML"
	WeightUnitU  WeightUnit = "U" // 按件计
)

func (u WeightUnit) Valid() bool {
	switch u {
	case WeightUnitKG, WeightUnitG, WeightUnitL, WeightUnitML, WeightUnitU:
		return true
	}
	return false
}

// Product 商品。Quantity、Version、Price 必填，nil / Valid=false 表示请求中缺省。
// RelatedCategories 和 Tags 由商品拥有；AssociatedPromotions 和 AssociatedPromotionalCodes
// 是关联的反向一侧。所有集合只能通过 Relation 维护。
type Product struct {
	ID          int64
	Name        string
	Description string
	Quantity    *int
	Version     *int
	Origin      string
	Brand       string
	ImagePath   string
	Price       decimal.NullDecimal
	Weight      decimal.NullDecimal
	WeightUnit  WeightUnit
	Category    *Category

	RelatedCategories RefSet[*Category]
	Tags              RefSet[*Tag]

	AssociatedPromotions       RefSet[*Promotion]
	AssociatedPromotionalCodes RefSet[*PromotionalCode]
}

func (p *Product) Identity() int64 {
	if p == nil {
		return 0
	}
	return p.ID
}

func (p *Product) EntityName() string { return EntityProduct }

func (p *Product) Equal(other *Product) bool { return SameEntity(p, other) }

func (p *Product) AddAssociatedPromotion(pr *Promotion) *Product {
	PromotionProducts.Add(pr, p)
	return p
}

func (p *Product) RemoveAssociatedPromotion(pr *Promotion) *Product {
	PromotionProducts.Remove(pr, p)
	return p
}

func (p *Product) AddAssociatedPromotionalCode(c *PromotionalCode) *Product {
	PromotionalCodeProducts.Add(c, p)
	return p
}

func (p *Product) RemoveAssociatedPromotionalCode(c *PromotionalCode) *Product {
	PromotionalCodeProducts.Remove(c, p)
	return p
}

func (p *Product) AddRelatedCategory(c *Category) *Product {
	ProductRelatedCategories.Add(p, c)
	return p
}

func (p *Product) RemoveRelatedCategory(c *Category) *Product {
	ProductRelatedCategories.Remove(p, c)
	return p
}

func (p *Product) AddTag(t *Tag) *Product {
	ProductTags.Add(p, t)
	return p
}

func (p *Product) RemoveTag(t *Tag) *Product {
	ProductTags.Remove(p, t)
	return p
}

// Violations 只做必填和枚举检查，数值范围交给规则校验器
func (p *Product) Violations() []string {
	var v []string
	if strings.TrimSpace(p.Name) == "" {
		v = append(v, "name: must not be blank")
	}
	if p.Quantity == nil {
		v = append(v, "quantity: must not be null")
	}
	if p.Version == nil {
		v = append(v, "version: must not be null")
	}
	if !p.Price.Valid {
		v = append(v, "price: must not be null")
	}
	if p.WeightUnit != "" && !p.WeightUnit.Valid() {
		v = append(v, "weightUnit: unknown unit "+string(p.WeightUnit))
	}
	return v
}

// ContentEquals 比较全部标量字段，测试中使用
func (p *Product) ContentEquals(o *Product) bool {
	return p.ID == o.ID &&
		p.Name == o.Name &&
		p.Description == o.Description &&
		sameValue(p.Quantity, o.Quantity) &&
		sameValue(p.Version, o.Version) &&
		p.Origin == o.Origin &&
		p.Brand == o.Brand &&
		p.ImagePath == o.ImagePath &&
		p.Price.Valid == o.Price.Valid &&
		p.Price.Decimal.Equal(o.Price.Decimal) &&
		p.Weight.Valid == o.Weight.Valid &&
		p.Weight.Decimal.Equal(o.Weight.Decimal) &&
		p.WeightUnit == o.WeightUnit &&
		p.Category.Identity() == o.Category.Identity()
}

type ProductPatch struct {
	ID          int64
	Name        *string
	Description *string
	Quantity    *int
	Version     *int
	Origin      *string
	Brand       *string
	ImagePath   *string
	Price       *decimal.Decimal
	Weight      *decimal.Decimal
	WeightUnit  *WeightUnit
}

func (p ProductPatch) TargetID() int64 { return p.ID }

func (p ProductPatch) ApplyTo(e *Product) {
	assign(&e.Name, p.Name)
	assign(&e.Description, p.Description)
	assignRef(&e.Quantity, p.Quantity)
	assignRef(&e.Version, p.Version)
	assign(&e.Origin, p.Origin)
	assign(&e.Brand, p.Brand)
	assign(&e.ImagePath, p.ImagePath)
	if p.Price != nil {
		e.Price = decimal.NewNullDecimal(*p.Price)
	}
	if p.Weight != nil {
		e.Weight = decimal.NewNullDecimal(*p.Weight)
	}
	assign(&e.WeightUnit, p.WeightUnit)
}
