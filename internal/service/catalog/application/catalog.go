package application

import (
	"context"
	"fmt"
	"github.com/ecom2122/ecom/internal/pkg/logger"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Dependencies 汇总应用层需要的端口
type Dependencies struct {
	Transactor       domain.Transactor
	Validator        domain.Validator
	Events           domain.EventPublisher
	Tracer           trace.Tracer
	Categories       domain.CategoryRepository
	Tags             domain.TagRepository
	Products         domain.ProductRepository
	Promotions       domain.PromotionRepository
	PromotionalCodes domain.PromotionalCodeRepository
}

// Services 是目录服务的全部用例入口
type Services struct {
	Categories       *CategoryService
	Tags             *TagService
	Products         *ProductService
	Promotions       *PromotionService
	PromotionalCodes *PromotionalCodeService
}

func NewServices(deps Dependencies) *Services {
	return &Services{
		Categories:       NewCategoryService(deps),
		Tags:             NewTagService(deps),
		Products:         NewProductService(deps),
		Promotions:       NewPromotionService(deps),
		PromotionalCodes: NewPromotionalCodeService(deps),
	}
}

func newCrud[E domain.Entity, P domain.Patch[E]](deps Dependencies, entity, label string, repo domain.Repository[E]) *crudService[E, P] {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("catalog-service")
	}
	return &crudService[E, P]{
		entity:    entity,
		label:     label,
		repo:      repo,
		tx:        deps.Transactor,
		validator: deps.Validator,
		events:    deps.Events,
		tracer:    tracer,
	}
}

type CategoryService struct {
	*crudService[*domain.Category, domain.CategoryPatch]
}

func NewCategoryService(deps Dependencies) *CategoryService {
	crud := newCrud[*domain.Category, domain.CategoryPatch](deps, domain.EntityCategory, "Category", deps.Categories)
	crud.detach = domain.ProductRelatedCategories.DetachRelated
	return &CategoryService{crud}
}

type TagService struct {
	*crudService[*domain.Tag, domain.TagPatch]
}

func NewTagService(deps Dependencies) *TagService {
	crud := newCrud[*domain.Tag, domain.TagPatch](deps, domain.EntityTag, "Tag", deps.Tags)
	crud.detach = domain.ProductTags.DetachRelated
	return &TagService{crud}
}

// ProductService 商品用例。商品拥有相关分类和标签；对促销和优惠码它是被关联方，
// PUT 时请求体里的反向集合被忽略。
type ProductService struct {
	*crudService[*domain.Product, domain.ProductPatch]
	products   domain.ProductRepository
	categories domain.CategoryRepository
	tags       domain.TagRepository
}

func NewProductService(deps Dependencies) *ProductService {
	s := &ProductService{
		crudService: newCrud[*domain.Product, domain.ProductPatch](deps, domain.EntityProduct, "Product", deps.Products),
		products:    deps.Products,
		categories:  deps.Categories,
		tags:        deps.Tags,
	}
	s.resolve = s.resolveReferences
	s.persisted = deps.Products.SaveAssociations
	s.detach = func(p *domain.Product) {
		domain.PromotionProducts.DetachRelated(p)
		domain.PromotionalCodeProducts.DetachRelated(p)
		domain.ProductRelatedCategories.DetachOwner(p)
		domain.ProductTags.DetachOwner(p)
	}
	return s
}

// resolveReferences 解析主分类、相关分类和标签
func (s *ProductService) resolveReferences(ctx context.Context, p *domain.Product) error {
	if err := s.resolveCategory(ctx, p); err != nil {
		return err
	}
	if err := resolveRefs(ctx, p, domain.ProductRelatedCategories, domain.EntityCategory, s.categories.FindByID); err != nil {
		return err
	}
	return resolveRefs(ctx, p, domain.ProductTags, domain.EntityTag, s.tags.FindByID)
}

// resolveCategory 把请求体中只带 id 的分类替换为已持久化的分类
func (s *ProductService) resolveCategory(ctx context.Context, p *domain.Product) error {
	if p.Category == nil {
		return nil
	}
	if p.Category.ID == 0 {
		return domain.BadRequest(domain.EntityCategory, domain.ReasonIDNull, "category reference must carry an id")
	}
	category, err := s.categories.FindByID(ctx, p.Category.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.BadRequest(domain.EntityCategory, domain.ReasonIDNotFound, fmt.Sprintf("category %d does not exist", p.Category.ID))
	}
	if err != nil {
		return err
	}
	p.Category = category
	return nil
}

// Search 按关键字查找商品
func (s *ProductService) Search(ctx context.Context, query string) (result []*domain.Product, err error) {
	ctx, span := s.start(ctx, "Search", 0)
	defer func() { s.finish(span, "search", err) }()
	span.SetAttributes(attribute.String("catalog.query", query))
	logger.Ctx(ctx).Debug().Str("query", query).Msg("Request to search Products")

	return s.products.Search(ctx, query)
}

// FindByCategory 列出某个分类下的商品，分类不存在时返回 ErrNotFound
func (s *ProductService) FindByCategory(ctx context.Context, categoryID int64) (result []*domain.Product, err error) {
	ctx, span := s.start(ctx, "FindByCategory", 0)
	defer func() { s.finish(span, "find_by_category", err) }()
	span.SetAttributes(attribute.Int64("catalog.category_id", categoryID))

	exists, err := s.categories.ExistsByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NotFound(domain.EntityCategory, categoryID)
	}
	return s.products.FindByCategory(ctx, categoryID)
}

// resolveRefs 把 owner 在 relation 中只带 id 的引用换成已持久化的实体，并让集合与之相等。
// id 为 0 返回 idnull，实体不存在返回 idnotfound。
func resolveRefs[O, R domain.Entity](ctx context.Context, owner O, relation domain.Relation[O, R], entity string,
	load func(ctx context.Context, id int64) (R, error)) error {
	refs := relation.Related(owner)
	targets := make([]R, 0, len(refs))
	for _, ref := range refs {
		id := ref.Identity()
		if id == 0 {
			return domain.BadRequest(entity, domain.ReasonIDNull, entity+" reference must carry an id")
		}
		target, err := load(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.BadRequest(entity, domain.ReasonIDNotFound, fmt.Sprintf("%s %d does not exist", entity, id))
		}
		if err != nil {
			return err
		}
		targets = append(targets, target)
	}
	relation.Replace(owner, targets)
	return nil
}

// ownerRepository 是关联拥有方的仓储
type ownerRepository[O domain.Entity] interface {
	domain.Repository[O]
	domain.AssociationStore[O]
}

// productLinks 维护拥有方与商品之间的关联
type productLinks[O domain.Entity, P domain.Patch[O]] struct {
	crud     *crudService[O, P]
	owners   ownerRepository[O]
	products domain.ProductRepository
	relation domain.Relation[O, *domain.Product]
}

// resolveProducts 把请求体里的商品引用换成已持久化的商品，并让拥有方的集合与之相等
func (l productLinks[O, P]) resolveProducts(ctx context.Context, owner O) error {
	return resolveRefs(ctx, owner, l.relation, domain.EntityProduct, l.products.FindByID)
}

// AddProduct 建立关联，重复调用结果不变
func (l productLinks[O, P]) AddProduct(ctx context.Context, ownerID, productID int64) (O, error) {
	return l.link(ctx, ownerID, productID, true)
}

// RemoveProduct 解除关联，不存在的关联直接忽略
func (l productLinks[O, P]) RemoveProduct(ctx context.Context, ownerID, productID int64) (O, error) {
	return l.link(ctx, ownerID, productID, false)
}

func (l productLinks[O, P]) link(ctx context.Context, ownerID, productID int64, add bool) (result O, err error) {
	op, metricOp, typ := "RemoveProduct", "remove_product", domain.EventDissociated
	if add {
		op, metricOp, typ = "AddProduct", "add_product", domain.EventAssociated
	}
	ctx, span := l.crud.start(ctx, op, ownerID)
	defer func() { l.crud.finish(span, metricOp, err) }()
	span.SetAttributes(attribute.Int64("catalog.product_id", productID))
	logger.Ctx(ctx).Debug().Int64("id", ownerID).Int64("product_id", productID).
		Msgf("Request to %s on %s", op, l.relation.Name())

	err = l.crud.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		owner, err := l.owners.FindByIDForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}
		product, err := l.products.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if add {
			l.relation.Add(owner, product)
		} else {
			l.relation.Remove(owner, product)
		}
		if err := l.owners.SaveAssociations(ctx, owner); err != nil {
			return err
		}
		result, err = l.owners.FindByID(ctx, ownerID)
		return err
	})
	if err != nil {
		return result, err
	}
	l.crud.publish(ctx, typ, ownerID, l.relation.Name(), productID)
	return result, nil
}

// PromotionService 促销活动用例，促销是 promotion.products 的拥有方
type PromotionService struct {
	*crudService[*domain.Promotion, domain.PromotionPatch]
	productLinks[*domain.Promotion, domain.PromotionPatch]
}

func NewPromotionService(deps Dependencies) *PromotionService {
	crud := newCrud[*domain.Promotion, domain.PromotionPatch](deps, domain.EntityPromotion, "Promotion", deps.Promotions)
	links := productLinks[*domain.Promotion, domain.PromotionPatch]{
		crud:     crud,
		owners:   deps.Promotions,
		products: deps.Products,
		relation: domain.PromotionProducts,
	}
	crud.resolve = links.resolveProducts
	crud.persisted = deps.Promotions.SaveAssociations
	crud.detach = domain.PromotionProducts.DetachOwner
	return &PromotionService{crudService: crud, productLinks: links}
}

// PromotionalCodeService 优惠码用例，优惠码是 promotionalCode.products 的拥有方
type PromotionalCodeService struct {
	*crudService[*domain.PromotionalCode, domain.PromotionalCodePatch]
	productLinks[*domain.PromotionalCode, domain.PromotionalCodePatch]
}

func NewPromotionalCodeService(deps Dependencies) *PromotionalCodeService {
	crud := newCrud[*domain.PromotionalCode, domain.PromotionalCodePatch](deps, domain.EntityPromotionalCode, "PromotionalCode", deps.PromotionalCodes)
	links := productLinks[*domain.PromotionalCode, domain.PromotionalCodePatch]{
		crud:     crud,
		owners:   deps.PromotionalCodes,
		products: deps.Products,
		relation: domain.PromotionalCodeProducts,
	}
	crud.resolve = links.resolveProducts
	crud.persisted = deps.PromotionalCodes.SaveAssociations
	crud.detach = domain.PromotionalCodeProducts.DetachOwner
	return &PromotionalCodeService{crudService: crud, productLinks: links}
}
