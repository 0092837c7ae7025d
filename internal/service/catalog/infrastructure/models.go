package infrastructure

import (
	"github.com/shopspring/decimal"
	"time"
)

// CategoryModel 对应数据库中的 category 表
type CategoryModel struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"size:1024"`
}

func (CategoryModel) TableName() string { return "category" }

// TagModel 对应 tag 表
type TagModel struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"size:255;not null"`
}

func (TagModel) TableName() string { return "tag" }

// ProductModel 对应 product 表。RelatedCategories 和 Tags 由商品拥有；
// 促销和优惠码两个 many2many 字段是关联表的反向视图，只用于预加载。
type ProductModel struct {
	ID          int64               `gorm:"primaryKey"`
	Name        string              `gorm:"size:255;not null"`
	Description string              `gorm:"size:2048"`
	Quantity    int                 `gorm:"not null"`
	Version     int                 `gorm:"not null"`
	Origin      string              `gorm:"size:255"`
	Brand       string              `gorm:"size:255;index"`
	ImagePath   string              `gorm:"size:1024"`
	Price       decimal.Decimal     `gorm:"type:decimal(21,2);not null"`
	Weight      decimal.NullDecimal `gorm:"type:decimal(21,2)"`
	WeightUnit  string              `gorm:"size:8"`
	CategoryID  *int64              `gorm:"index"`
	Category    *CategoryModel      `gorm:"foreignKey:CategoryID"`

	RelatedCategories []*CategoryModel `gorm:"many2many:rel_product__related_categories;joinForeignKey:product_id;joinReferences:related_categories_id"`
	Tags              []*TagModel      `gorm:"many2many:rel_product__tags;joinForeignKey:product_id;joinReferences:tags_id"`

	AssociatedPromotions       []*PromotionModel       `gorm:"many2many:rel_promotion__products;joinForeignKey:products_id;joinReferences:promotion_id"`
	AssociatedPromotionalCodes []*PromotionalCodeModel `gorm:"many2many:rel_promotional_code__products;joinForeignKey:products_id;joinReferences:promotional_code_id"`
}

func (ProductModel) TableName() string { return "product" }

// PromotionModel 对应 promotion 表
type PromotionModel struct {
	ID                  int64           `gorm:"primaryKey"`
	StartDate           time.Time       `gorm:"not null"`
	EndDate             time.Time       `gorm:"not null"`
	ReductionPercentage decimal.Decimal `gorm:"type:decimal(21,2);not null"`

	Products []*ProductModel `gorm:"many2many:rel_promotion__products;joinForeignKey:promotion_id;joinReferences:products_id"`
}

func (PromotionModel) TableName() string { return "promotion" }

// PromotionalCodeModel 对应 promotional_code 表
type PromotionalCodeModel struct {
	ID        int64           `gorm:"primaryKey"`
	Code      string          `gorm:"size:64;not null;index"`
	StartDate time.Time       `gorm:"not null"`
	EndDate   time.Time       `gorm:"not null"`
	Value     decimal.Decimal `gorm:"type:decimal(21,2);not null"`
	Unit      string          `gorm:"size:16;not null"`

	Products []*ProductModel `gorm:"many2many:rel_promotional_code__products;joinForeignKey:promotional_code_id;joinReferences:products_id"`
}

func (PromotionalCodeModel) TableName() string { return "promotional_code" }

// 关联表的行模型，写关联时直接操作，避免 GORM 的级联 upsert
type promotionProductRow struct {
	PromotionID int64 `gorm:"column:promotion_id;primaryKey"`
	ProductsID  int64 `gorm:"column:products_id;primaryKey"`
}

func (promotionProductRow) TableName() string { return "rel_promotion__products" }

type promotionalCodeProductRow struct {
	PromotionalCodeID int64 `gorm:"column:promotional_code_id;primaryKey"`
	ProductsID        int64 `gorm:"column:products_id;primaryKey"`
}

func (promotionalCodeProductRow) TableName() string { return "rel_promotional_code__products" }

type productRelatedCategoryRow struct {
	ProductID           int64 `gorm:"column:product_id;primaryKey"`
	RelatedCategoriesID int64 `gorm:"column:related_categories_id;primaryKey"`
}

func (productRelatedCategoryRow) TableName() string { return "rel_product__related_categories" }

type productTagRow struct {
	ProductID int64 `gorm:"column:product_id;primaryKey"`
	TagsID    int64 `gorm:"column:tags_id;primaryKey"`
}

func (productTagRow) TableName() string { return "rel_product__tags" }
