package infrastructure

import (
	"context"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"strings"
)

// gormRepository 是四个实体仓储共用的 GORM 实现，M 是数据库模型，E 是领域实体
type gormRepository[M any, E domain.Entity] struct {
	db     *gorm.DB
	entity string

	// always 任何读取都会预加载；eager 只在 FindByID 和 FindAll(eager=true) 时预加载
	always []string
	eager  []string

	toDomain   func(*M) E
	fromDomain func(E) *M
	modelID    func(*M) int64
	assignID   func(E, int64)
	// beforeDelete 删除主记录前清理关联表和外键引用，在同一事务中执行
	beforeDelete func(tx *gorm.DB, id int64) error
}

func (r *gormRepository[M, E]) query(ctx context.Context, eager bool) *gorm.DB {
	q := conn(ctx, r.db)
	for _, p := range r.always {
		q = q.Preload(p)
	}
	if eager {
		for _, p := range r.eager {
			q = q.Preload(p)
		}
	}
	return q
}

// Save 使用 GORM 保存实体的标量字段，并把生成的主键写回实体
func (r *gormRepository[M, E]) Save(ctx context.Context, entity E) (E, error) {
	model := r.fromDomain(entity)
	if err := conn(ctx, r.db).Omit(clause.Associations).Save(model).Error; err != nil {
		var zero E
		return zero, errors.Wrapf(err, "failed to save %s", r.entity)
	}
	r.assignID(entity, r.modelID(model))
	return entity, nil
}

// FindByID 使用 GORM 从数据库中查找实体，包含全部关联
func (r *gormRepository[M, E]) FindByID(ctx context.Context, id int64) (E, error) {
	var model M
	err := r.query(ctx, true).First(&model, id).Error
	if err != nil {
		var zero E
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, domain.NotFound(r.entity, id)
		}
		return zero, errors.Wrapf(err, "failed to find %s %d", r.entity, id)
	}
	return r.toDomain(&model), nil
}

func (r *gormRepository[M, E]) FindByIDForUpdate(ctx context.Context, id int64) (E, error) {
	if err := lockForUpdate(ctx, r.db, new(M), id); err != nil {
		var zero E
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, domain.NotFound(r.entity, id)
		}
		return zero, errors.Wrapf(err, "failed to lock %s %d", r.entity, id)
	}
	return r.FindByID(ctx, id)
}

func (r *gormRepository[M, E]) FindAll(ctx context.Context, eager bool) ([]E, error) {
	var models []M
	if err := r.query(ctx, eager).Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", r.entity)
	}
	return r.mapAll(models), nil
}

func (r *gormRepository[M, E]) mapAll(models []M) []E {
	out := make([]E, 0, len(models))
	for i := range models {
		out = append(out, r.toDomain(&models[i]))
	}
	return out
}

func (r *gormRepository[M, E]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := conn(ctx, r.db).Model(new(M)).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, errors.Wrapf(err, "failed to check %s %d", r.entity, id)
	}
	return n > 0, nil
}

// DeleteByID 删除记录，记录不存在时返回 ErrNotFound
func (r *gormRepository[M, E]) DeleteByID(ctx context.Context, id int64) error {
	tx := conn(ctx, r.db)
	if r.beforeDelete != nil {
		if err := r.beforeDelete(tx, id); err != nil {
			return errors.Wrapf(err, "failed to detach %s %d", r.entity, id)
		}
	}
	res := tx.Delete(new(M), id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete %s %d", r.entity, id)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound(r.entity, id)
	}
	return nil
}

// GormCategoryRepository 是 CategoryRepository 的 GORM 实现
type GormCategoryRepository struct {
	gormRepository[CategoryModel, *domain.Category]
}

func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{gormRepository[CategoryModel, *domain.Category]{
		db:         db,
		entity:     domain.EntityCategory,
		toDomain:   ToDomainCategory,
		fromDomain: FromDomainCategory,
		modelID:    func(m *CategoryModel) int64 { return m.ID },
		assignID:   func(c *domain.Category, id int64) { c.ID = id },
		beforeDelete: func(tx *gorm.DB, id int64) error {
			if err := tx.Where("related_categories_id = ?", id).Delete(&productRelatedCategoryRow{}).Error; err != nil {
				return err
			}
			// 分类被删除后商品变为未分类
			return tx.Model(&ProductModel{}).Where("category_id = ?", id).Update("category_id", nil).Error
		},
	}}
}

// GormTagRepository 是 TagRepository 的 GORM 实现
type GormTagRepository struct {
	gormRepository[TagModel, *domain.Tag]
}

func NewGormTagRepository(db *gorm.DB) *GormTagRepository {
	return &GormTagRepository{gormRepository[TagModel, *domain.Tag]{
		db:         db,
		entity:     domain.EntityTag,
		toDomain:   ToDomainTag,
		fromDomain: FromDomainTag,
		modelID:    func(m *TagModel) int64 { return m.ID },
		assignID:   func(t *domain.Tag, id int64) { t.ID = id },
		beforeDelete: func(tx *gorm.DB, id int64) error {
			return tx.Where("tags_id = ?", id).Delete(&productTagRow{}).Error
		},
	}}
}

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	gormRepository[ProductModel, *domain.Product]
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{gormRepository[ProductModel, *domain.Product]{
		db:         db,
		entity:     domain.EntityProduct,
		always:     []string{"Category"},
		eager:      []string{"RelatedCategories", "Tags", "AssociatedPromotions", "AssociatedPromotionalCodes"},
		toDomain:   ToDomainProduct,
		fromDomain: FromDomainProduct,
		modelID:    func(m *ProductModel) int64 { return m.ID },
		assignID:   func(p *domain.Product, id int64) { p.ID = id },
		beforeDelete: func(tx *gorm.DB, id int64) error {
			for _, row := range []any{&promotionProductRow{}, &promotionalCodeProductRow{}} {
				if err := tx.Where("products_id = ?", id).Delete(row).Error; err != nil {
					return err
				}
			}
			for _, row := range []any{&productRelatedCategoryRow{}, &productTagRow{}} {
				if err := tx.Where("product_id = ?", id).Delete(row).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}}
}

// SaveAssociations 用商品当前的相关分类和标签整体替换关联表中的行。
// 促销和优惠码由各自的拥有方维护，这里不动。
func (r *GormProductRepository) SaveAssociations(ctx context.Context, p *domain.Product) error {
	tx := conn(ctx, r.db)
	if err := tx.Where("product_id = ?", p.ID).Delete(&productRelatedCategoryRow{}).Error; err != nil {
		return errors.Wrapf(err, "failed to clear related categories of product %d", p.ID)
	}
	if err := tx.Where("product_id = ?", p.ID).Delete(&productTagRow{}).Error; err != nil {
		return errors.Wrapf(err, "failed to clear tags of product %d", p.ID)
	}
	if ids := p.RelatedCategories.IDs(); len(ids) > 0 {
		rows := make([]productRelatedCategoryRow, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, productRelatedCategoryRow{ProductID: p.ID, RelatedCategoriesID: id})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return errors.Wrapf(err, "failed to link related categories of product %d", p.ID)
		}
	}
	if ids := p.Tags.IDs(); len(ids) > 0 {
		rows := make([]productTagRow, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, productTagRow{ProductID: p.ID, TagsID: id})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return errors.Wrapf(err, "failed to link tags of product %d", p.ID)
		}
	}
	return nil
}

// Search 在名称、品牌、描述中做不区分大小写的包含匹配
func (r *GormProductRepository) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	var models []ProductModel
	err := r.query(ctx, false).
		Where("LOWER(name) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern, pattern).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to search products")
	}
	return r.mapAll(models), nil
}

func (r *GormProductRepository) FindByCategory(ctx context.Context, categoryID int64) ([]*domain.Product, error) {
	var models []ProductModel
	err := r.query(ctx, false).Where("category_id = ?", categoryID).Order("id").Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list products of category %d", categoryID)
	}
	return r.mapAll(models), nil
}

// GormPromotionRepository 是 PromotionRepository 的 GORM 实现
type GormPromotionRepository struct {
	gormRepository[PromotionModel, *domain.Promotion]
}

func NewGormPromotionRepository(db *gorm.DB) *GormPromotionRepository {
	return &GormPromotionRepository{gormRepository[PromotionModel, *domain.Promotion]{
		db:         db,
		entity:     domain.EntityPromotion,
		eager:      []string{"Products"},
		toDomain:   ToDomainPromotion,
		fromDomain: FromDomainPromotion,
		modelID:    func(m *PromotionModel) int64 { return m.ID },
		assignID:   func(pr *domain.Promotion, id int64) { pr.ID = id },
		beforeDelete: func(tx *gorm.DB, id int64) error {
			return tx.Where("promotion_id = ?", id).Delete(&promotionProductRow{}).Error
		},
	}}
}

// SaveAssociations 用实体当前的商品集合整体替换关联表中的行
func (r *GormPromotionRepository) SaveAssociations(ctx context.Context, pr *domain.Promotion) error {
	tx := conn(ctx, r.db)
	if err := tx.Where("promotion_id = ?", pr.ID).Delete(&promotionProductRow{}).Error; err != nil {
		return errors.Wrapf(err, "failed to clear products of promotion %d", pr.ID)
	}
	ids := pr.Products.IDs()
	if len(ids) == 0 {
		return nil
	}
	rows := make([]promotionProductRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, promotionProductRow{PromotionID: pr.ID, ProductsID: id})
	}
	return errors.Wrapf(tx.Create(&rows).Error, "failed to link products of promotion %d", pr.ID)
}

// GormPromotionalCodeRepository 是 PromotionalCodeRepository 的 GORM 实现
type GormPromotionalCodeRepository struct {
	gormRepository[PromotionalCodeModel, *domain.PromotionalCode]
}

func NewGormPromotionalCodeRepository(db *gorm.DB) *GormPromotionalCodeRepository {
	return &GormPromotionalCodeRepository{gormRepository[PromotionalCodeModel, *domain.PromotionalCode]{
		db:         db,
		entity:     domain.EntityPromotionalCode,
		eager:      []string{"Products"},
		toDomain:   ToDomainPromotionalCode,
		fromDomain: FromDomainPromotionalCode,
		modelID:    func(m *PromotionalCodeModel) int64 { return m.ID },
		assignID:   func(c *domain.PromotionalCode, id int64) { c.ID = id },
		beforeDelete: func(tx *gorm.DB, id int64) error {
			return tx.Where("promotional_code_id = ?", id).Delete(&promotionalCodeProductRow{}).Error
		},
	}}
}

func (r *GormPromotionalCodeRepository) SaveAssociations(ctx context.Context, c *domain.PromotionalCode) error {
	tx := conn(ctx, r.db)
	if err := tx.Where("promotional_code_id = ?", c.ID).Delete(&promotionalCodeProductRow{}).Error; err != nil {
		return errors.Wrapf(err, "failed to clear products of promotional code %d", c.ID)
	}
	ids := c.Products.IDs()
	if len(ids) == 0 {
		return nil
	}
	rows := make([]promotionalCodeProductRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, promotionalCodeProductRow{PromotionalCodeID: c.ID, ProductsID: id})
	}
	return errors.Wrapf(tx.Create(&rows).Error, "failed to link products of promotional code %d", c.ID)
}

var (
	_ domain.CategoryRepository        = (*GormCategoryRepository)(nil)
	_ domain.ProductRepository         = (*GormProductRepository)(nil)
	_ domain.TagRepository             = (*GormTagRepository)(nil)
	_ domain.PromotionRepository       = (*GormPromotionRepository)(nil)
	_ domain.PromotionalCodeRepository = (*GormPromotionalCodeRepository)(nil)
)
