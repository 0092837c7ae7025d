package infrastructure

import (
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/shopspring/decimal"
)

// ToDomainCategory 将数据库模型转换为领域模型
func ToDomainCategory(m *CategoryModel) *domain.Category {
	if m == nil {
		return nil
	}
	return &domain.Category{ID: m.ID, Name: m.Name, Description: m.Description}
}

// FromDomainCategory 将领域模型转换为数据库模型
func FromDomainCategory(c *domain.Category) *CategoryModel {
	return &CategoryModel{ID: c.ID, Name: c.Name, Description: c.Description}
}

func ToDomainTag(m *TagModel) *domain.Tag {
	if m == nil {
		return nil
	}
	return &domain.Tag{ID: m.ID, Name: m.Name}
}

func FromDomainTag(t *domain.Tag) *TagModel {
	return &TagModel{ID: t.ID, Name: t.Name}
}

// productScalars 只转换标量字段，关联由调用方按需连接
func productScalars(m *ProductModel) *domain.Product {
	quantity, version := m.Quantity, m.Version
	return &domain.Product{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Quantity:    &quantity,
		Version:     &version,
		Origin:      m.Origin,
		Brand:       m.Brand,
		ImagePath:   m.ImagePath,
		Price:       decimal.NewNullDecimal(m.Price),
		Weight:      m.Weight,
		WeightUnit:  domain.WeightUnit(m.WeightUnit),
		Category:    ToDomainCategory(m.Category),
	}
}

func promotionScalars(m *PromotionModel) *domain.Promotion {
	return &domain.Promotion{
		ID:                  m.ID,
		StartDate:           m.StartDate,
		EndDate:             m.EndDate,
		ReductionPercentage: m.ReductionPercentage,
	}
}

func promotionalCodeScalars(m *PromotionalCodeModel) *domain.PromotionalCode {
	return &domain.PromotionalCode{
		ID:        m.ID,
		Code:      m.Code,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		Value:     m.Value,
		Unit:      domain.ReductionType(m.Unit),
	}
}

// ToDomainProduct 转换商品以及预加载的相关分类、标签、促销、优惠码，两侧集合通过 Relation 建立，保证对称
func ToDomainProduct(m *ProductModel) *domain.Product {
	if m == nil {
		return nil
	}
	p := productScalars(m)
	for _, cm := range m.RelatedCategories {
		domain.ProductRelatedCategories.Add(p, ToDomainCategory(cm))
	}
	for _, tm := range m.Tags {
		domain.ProductTags.Add(p, ToDomainTag(tm))
	}
	for _, pm := range m.AssociatedPromotions {
		domain.PromotionProducts.Add(promotionScalars(pm), p)
	}
	for _, cm := range m.AssociatedPromotionalCodes {
		domain.PromotionalCodeProducts.Add(promotionalCodeScalars(cm), p)
	}
	return p
}

func ToDomainPromotion(m *PromotionModel) *domain.Promotion {
	if m == nil {
		return nil
	}
	pr := promotionScalars(m)
	for _, pm := range m.Products {
		domain.PromotionProducts.Add(pr, productScalars(pm))
	}
	return pr
}

func ToDomainPromotionalCode(m *PromotionalCodeModel) *domain.PromotionalCode {
	if m == nil {
		return nil
	}
	c := promotionalCodeScalars(m)
	for _, pm := range m.Products {
		domain.PromotionalCodeProducts.Add(c, productScalars(pm))
	}
	return c
}

// FromDomainProduct 只转换标量和分类外键，多对多关联由仓储单独同步。
// 必填字段在校验阶段已保证非空。
func FromDomainProduct(p *domain.Product) *ProductModel {
	m := &ProductModel{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Quantity:    valueOf(p.Quantity),
		Version:     valueOf(p.Version),
		Origin:      p.Origin,
		Brand:       p.Brand,
		ImagePath:   p.ImagePath,
		Price:       p.Price.Decimal,
		Weight:      p.Weight,
		WeightUnit:  string(p.WeightUnit),
	}
	if id := p.Category.Identity(); id != 0 {
		m.CategoryID = &id
	}
	return m
}

func FromDomainPromotion(pr *domain.Promotion) *PromotionModel {
	return &PromotionModel{
		ID:                  pr.ID,
		StartDate:           pr.StartDate,
		EndDate:             pr.EndDate,
		ReductionPercentage: pr.ReductionPercentage,
	}
}

func FromDomainPromotionalCode(c *domain.PromotionalCode) *PromotionalCodeModel {
	return &PromotionalCodeModel{
		ID:        c.ID,
		Code:      c.Code,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		Value:     c.Value,
		Unit:      string(c.Unit),
	}
}

func valueOf[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}
