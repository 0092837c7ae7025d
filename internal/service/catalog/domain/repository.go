package domain

import "context"

// Repository 定义了单个实体的持久化接口
// 这是领域层与基础设施层之间的“插座”
type Repository[E Entity] interface {
	// Save 插入（主键为 0）或整体覆盖一条记录，不处理多对多关联
	Save(ctx context.Context, entity E) (E, error)
	// FindByID 加载实体及其关联，不存在时返回 ErrNotFound
	FindByID(ctx context.Context, id int64) (E, error)
	// FindByIDForUpdate 同 FindByID，但会对该行加锁，必须在事务中调用
	FindByIDForUpdate(ctx context.Context, id int64) (E, error)
	FindAll(ctx context.Context, eager bool) ([]E, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	// DeleteByID 删除记录以及它在关联表中的所有行
	DeleteByID(ctx context.Context, id int64) error
}

// AssociationStore 把实体内存中的多对多集合同步到关联表
type AssociationStore[E Entity] interface {
	SaveAssociations(ctx context.Context, owner E) error
}

type CategoryRepository interface {
	Repository[*Category]
}

type ProductRepository interface {
	Repository[*Product]
	// SaveAssociations 只同步商品拥有的相关分类和标签
	AssociationStore[*Product]
	// Search 在名称、品牌、描述中做包含匹配
	Search(ctx context.Context, query string) ([]*Product, error)
	FindByCategory(ctx context.Context, categoryID int64) ([]*Product, error)
}

type TagRepository interface {
	Repository[*Tag]
}

type PromotionRepository interface {
	Repository[*Promotion]
	AssociationStore[*Promotion]
}

type PromotionalCodeRepository interface {
	Repository[*PromotionalCode]
	AssociationStore[*PromotionalCode]
}

// Transactor 提供事务边界。fn 内通过 ctx 使用的所有仓储调用都在同一事务中执行。
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Validator 在持久化之前校验实体，失败时返回 ReasonValidation 的 BadRequest
type Validator interface {
	Validate(ctx context.Context, entity Identified) error
}
