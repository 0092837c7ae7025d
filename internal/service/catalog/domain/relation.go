package domain

// Relation 描述一条对称的多对多关联：O 是拥有方，R 是被关联方。
// 边集合不属于任何一方实体，两边实体的 add/remove 方法都委托给这里，
// 因此每次调用之后都满足 A ∈ rel(B) ⇔ B ∈ rel(A)。
type Relation[O Entity, R Entity] struct {
	name    string
	owned   func(O) *RefSet[R]
	inverse func(R) *RefSet[O]
}

// NewRelation 通过两侧集合的访问器声明一条关联
func NewRelation[O Entity, R Entity](name string, owned func(O) *RefSet[R], inverse func(R) *RefSet[O]) Relation[O, R] {
	return Relation[O, R]{name: name, owned: owned, inverse: inverse}
}

func (r Relation[O, R]) Name() string {
	return r.name
}

// Add 建立 owner 与 related 的关联。重复添加不会产生变化，只会补齐缺失的反向引用。
func (r Relation[O, R]) Add(owner O, related R) {
	set := r.owned(owner)
	if stored, ok := set.find(related); ok && stored != related {
		// 集合里是主键相同的另一个实例，它的反向集合也要保持一致
		r.inverse(stored).Add(owner)
	}
	set.Add(related)
	r.inverse(related).Add(owner)
}

// Remove 解除关联。不存在的关联直接忽略。
func (r Relation[O, R]) Remove(owner O, related R) {
	if stored, ok := r.owned(owner).Remove(related); ok && stored != related {
		r.inverse(stored).Remove(owner)
	}
	r.inverse(related).Remove(owner)
}

// Linked 判断 owner 是否引用了 related
func (r Relation[O, R]) Linked(owner O, related R) bool {
	return r.owned(owner).Contains(related)
}

// Related 返回 owner 当前引用的实体副本
func (r Relation[O, R]) Related(owner O) []R {
	return r.owned(owner).Items()
}

// Replace 让 owner 的集合等于 targets：移除多余的，补上缺少的，两侧同时维护。
func (r Relation[O, R]) Replace(owner O, targets []R) {
	wanted := NewRefSet(targets...)
	for _, current := range r.owned(owner).Items() {
		if !wanted.Contains(current) {
			r.Remove(owner, current)
		}
	}
	for _, t := range targets {
		r.Add(owner, t)
	}
}

// DetachOwner 把 owner 从所有被关联实体的反向集合中移除，并清空自己的集合。删除实体前调用。
func (r Relation[O, R]) DetachOwner(owner O) {
	for _, related := range r.owned(owner).Items() {
		r.Remove(owner, related)
	}
}

// DetachRelated 是从被关联方视角的 DetachOwner
func (r Relation[O, R]) DetachRelated(related R) {
	for _, owner := range r.inverse(related).Items() {
		r.Remove(owner, related)
	}
}

// PromotionalCodeProducts 优惠码 <-> 适用商品
var PromotionalCodeProducts = NewRelation(
	"promotionalCode.products",
	func(c *PromotionalCode) *RefSet[*Product] { return &c.Products },
	func(p *Product) *RefSet[*PromotionalCode] { return &p.AssociatedPromotionalCodes },
)

// PromotionProducts 促销活动 <-> 适用商品
var PromotionProducts = NewRelation(
	"promotion.products",
	func(pr *Promotion) *RefSet[*Product] { return &pr.Products },
	func(p *Product) *RefSet[*Promotion] { return &p.AssociatedPromotions },
)

// ProductRelatedCategories 商品 <-> 相关分类
var ProductRelatedCategories = NewRelation(
	"product.relatedCategories",
	func(p *Product) *RefSet[*Category] { return &p.RelatedCategories },
	func(c *Category) *RefSet[*Product] { return &c.RelatedProducts },
)

// ProductTags 商品 <-> 标签
var ProductTags = NewRelation(
	"product.tags",
	func(p *Product) *RefSet[*Tag] { return &p.Tags },
	func(t *Tag) *RefSet[*Product] { return &t.Products },
)
