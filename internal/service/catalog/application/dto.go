// internal/service/catalog/application/dto.go
package application

import (
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/shopspring/decimal"
	"time"
)

// 请求与响应共用同一组 DTO。嵌套的关联只展开一层，避免双向引用导致的循环。

type CategoryDTO struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (d *CategoryDTO) ToEntity() *domain.Category {
	return &domain.Category{ID: d.ID, Name: d.Name, Description: d.Description}
}

func NewCategoryDTO(c *domain.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	return &CategoryDTO{ID: c.ID, Name: c.Name, Description: c.Description}
}

// CategoryPatchDTO 中为 null 或缺省的字段不会被修改
type CategoryPatchDTO struct {
	ID          int64   `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (d *CategoryPatchDTO) ToPatch() domain.CategoryPatch {
	return domain.CategoryPatch{ID: d.ID, Name: d.Name, Description: d.Description}
}

type TagDTO struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

func (d *TagDTO) ToEntity() *domain.Tag {
	return &domain.Tag{ID: d.ID, Name: d.Name}
}

func NewTagDTO(t *domain.Tag) *TagDTO {
	return &TagDTO{ID: t.ID, Name: t.Name}
}

type TagPatchDTO struct {
	ID   int64   `json:"id"`
	Name *string `json:"name"`
}

func (d *TagPatchDTO) ToPatch() domain.TagPatch {
	return domain.TagPatch{ID: d.ID, Name: d.Name}
}

// ProductDTO 中 quantity、version、price 缺省或为 null 时保持为空，由校验拒绝
type ProductDTO struct {
	ID          int64               `json:"id,omitempty"`
	Name        string              `json:"name,omitempty"`
	Description string              `json:"description,omitempty"`
	Quantity    *int                `json:"quantity"`
	Version     *int                `json:"version"`
	Origin      string              `json:"origin,omitempty"`
	Brand       string              `json:"brand,omitempty"`
	ImagePath   string              `json:"imagePath,omitempty"`
	Price       decimal.NullDecimal `json:"price"`
	Weight      decimal.NullDecimal `json:"weight"`
	WeightUnit  domain.WeightUnit   `json:"weightUnit,omitempty"`
	Category    *CategoryDTO        `json:"category"`

	RelatedCategories []CategoryDTO `json:"relatedCategories,omitempty"`
	Tags              []TagDTO      `json:"tags,omitempty"`

	AssociatedPromotions       []PromotionDTO       `json:"associatedPromotions,omitempty"`
	AssociatedPromotionalCodes []PromotionalCodeDTO `json:"associatedPromotionalCodes,omitempty"`
}

// ToEntity 分类、相关分类和标签只保留 id，由服务层解析。反向集合由拥有方维护，这里忽略。
func (d *ProductDTO) ToEntity() *domain.Product {
	p := &domain.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Quantity:    d.Quantity,
		Version:     d.Version,
		Origin:      d.Origin,
		Brand:       d.Brand,
		ImagePath:   d.ImagePath,
		Price:       d.Price,
		Weight:      d.Weight,
		WeightUnit:  d.WeightUnit,
	}
	if d.Category != nil {
		p.Category = &domain.Category{ID: d.Category.ID}
	}
	for _, ref := range d.RelatedCategories {
		p.AddRelatedCategory(&domain.Category{ID: ref.ID})
	}
	for _, ref := range d.Tags {
		p.AddTag(&domain.Tag{ID: ref.ID})
	}
	return p
}

func productSummary(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Quantity:    p.Quantity,
		Version:     p.Version,
		Origin:      p.Origin,
		Brand:       p.Brand,
		ImagePath:   p.ImagePath,
		Price:       p.Price,
		Weight:      p.Weight,
		WeightUnit:  p.WeightUnit,
		Category:    NewCategoryDTO(p.Category),
	}
}

// NewProductDTO 商品及其相关分类、标签、促销和优惠码
func NewProductDTO(p *domain.Product) *ProductDTO {
	d := productSummary(p)
	for _, c := range p.RelatedCategories.Items() {
		d.RelatedCategories = append(d.RelatedCategories, *NewCategoryDTO(c))
	}
	for _, t := range p.Tags.Items() {
		d.Tags = append(d.Tags, *NewTagDTO(t))
	}
	for _, pr := range p.AssociatedPromotions.Items() {
		d.AssociatedPromotions = append(d.AssociatedPromotions, promotionSummary(pr))
	}
	for _, c := range p.AssociatedPromotionalCodes.Items() {
		d.AssociatedPromotionalCodes = append(d.AssociatedPromotionalCodes, promotionalCodeSummary(c))
	}
	return &d
}

type ProductPatchDTO struct {
	ID          int64              `json:"id"`
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Quantity    *int               `json:"quantity"`
	Version     *int               `json:"version"`
	Origin      *string            `json:"origin"`
	Brand       *string            `json:"brand"`
	ImagePath   *string            `json:"imagePath"`
	Price       *decimal.Decimal   `json:"price"`
	Weight      *decimal.Decimal   `json:"weight"`
	WeightUnit  *domain.WeightUnit `json:"weightUnit"`
}

func (d *ProductPatchDTO) ToPatch() domain.ProductPatch {
	return domain.ProductPatch{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Quantity:    d.Quantity,
		Version:     d.Version,
		Origin:      d.Origin,
		Brand:       d.Brand,
		ImagePath:   d.ImagePath,
		Price:       d.Price,
		Weight:      d.Weight,
		WeightUnit:  d.WeightUnit,
	}
}

type PromotionDTO struct {
	ID                  int64           `json:"id,omitempty"`
	StartDate           time.Time       `json:"startDate"`
	EndDate             time.Time       `json:"endDate"`
	ReductionPercentage decimal.Decimal `json:"reductionPercentage"`
	Products            []ProductDTO    `json:"products,omitempty"`
}

// ToEntity 商品只保留 id，由服务层解析并替换
func (d *PromotionDTO) ToEntity() *domain.Promotion {
	pr := &domain.Promotion{
		ID:                  d.ID,
		StartDate:           d.StartDate,
		EndDate:             d.EndDate,
		ReductionPercentage: d.ReductionPercentage,
	}
	for _, ref := range d.Products {
		pr.AddProduct(&domain.Product{ID: ref.ID})
	}
	return pr
}

func promotionSummary(pr *domain.Promotion) PromotionDTO {
	return PromotionDTO{
		ID:                  pr.ID,
		StartDate:           pr.StartDate,
		EndDate:             pr.EndDate,
		ReductionPercentage: pr.ReductionPercentage,
	}
}

func NewPromotionDTO(pr *domain.Promotion) *PromotionDTO {
	d := promotionSummary(pr)
	for _, p := range pr.Products.Items() {
		d.Products = append(d.Products, productSummary(p))
	}
	return &d
}

type PromotionPatchDTO struct {
	ID                  int64            `json:"id"`
	StartDate           *time.Time       `json:"startDate"`
	EndDate             *time.Time       `json:"endDate"`
	ReductionPercentage *decimal.Decimal `json:"reductionPercentage"`
}

func (d *PromotionPatchDTO) ToPatch() domain.PromotionPatch {
	return domain.PromotionPatch{
		ID:                  d.ID,
		StartDate:           d.StartDate,
		EndDate:             d.EndDate,
		ReductionPercentage: d.ReductionPercentage,
	}
}

type PromotionalCodeDTO struct {
	ID        int64                `json:"id,omitempty"`
	Code      string               `json:"code"`
	StartDate time.Time            `json:"startDate"`
	EndDate   time.Time            `json:"endDate"`
	Value     decimal.Decimal      `json:"value"`
	Unit      domain.ReductionType `json:"unit"`
	Products  []ProductDTO         `json:"products,omitempty"`
}

func (d *PromotionalCodeDTO) ToEntity() *domain.PromotionalCode {
	c := &domain.PromotionalCode{
		ID:        d.ID,
		Code:      d.Code,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		Value:     d.Value,
		Unit:      d.Unit,
	}
	for _, ref := range d.Products {
		c.AddProduct(&domain.Product{ID: ref.ID})
	}
	return c
}

func promotionalCodeSummary(c *domain.PromotionalCode) PromotionalCodeDTO {
	return PromotionalCodeDTO{
		ID:        c.ID,
		Code:      c.Code,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		Value:     c.Value,
		Unit:      c.Unit,
	}
}

func NewPromotionalCodeDTO(c *domain.PromotionalCode) *PromotionalCodeDTO {
	d := promotionalCodeSummary(c)
	for _, p := range c.Products.Items() {
		d.Products = append(d.Products, productSummary(p))
	}
	return &d
}

type PromotionalCodePatchDTO struct {
	ID        int64                 `json:"id"`
	Code      *string               `json:"code"`
	StartDate *time.Time            `json:"startDate"`
	EndDate   *time.Time            `json:"endDate"`
	Value     *decimal.Decimal      `json:"value"`
	Unit      *domain.ReductionType `json:"unit"`
}

func (d *PromotionalCodePatchDTO) ToPatch() domain.PromotionalCodePatch {
	return domain.PromotionalCodePatch{
		ID:        d.ID,
		Code:      d.Code,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		Value:     d.Value,
		Unit:      d.Unit,
	}
}
