package domain

import (
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func newSummer10() *PromotionalCode {
	return &PromotionalCode{
		ID:    1,
		Code:  "SUMMER10",
		Unit:  ReductionPercentage,
		Value: decimal.RequireFromString("10.00"),
	}
}

func TestPromotionalCode_AddAndRemoveProduct(t *testing.T) {
	code := newSummer10()
	p1 := &Product{ID: 11, Name: "P1"}

	code.AddProduct(p1)
	require.Equal(t, []*Product{p1}, code.Products.Items())
	require.Equal(t, []*PromotionalCode{code}, p1.AssociatedPromotionalCodes.Items())

	code.RemoveProduct(p1)
	assert.Zero(t, code.Products.Len())
	assert.Zero(t, p1.AssociatedPromotionalCodes.Len())
}

func TestRelation_AddIsIdempotent(t *testing.T) {
	promo := &Promotion{ID: 3}
	p := &Product{ID: 7}

	promo.AddProduct(p)
	promo.AddProduct(p)
	p.AddAssociatedPromotion(promo)

	assert.Equal(t, 1, promo.Products.Len())
	assert.Equal(t, 1, p.AssociatedPromotions.Len())
}

func TestRelation_RemoveNeverAddedIsNoop(t *testing.T) {
	code := newSummer10()
	linked := &Product{ID: 1}
	stranger := &Product{ID: 2}
	code.AddProduct(linked)

	code.RemoveProduct(stranger)

	assert.Equal(t, []*Product{linked}, code.Products.Items())
	assert.Equal(t, []*PromotionalCode{code}, linked.AssociatedPromotionalCodes.Items())
	assert.Zero(t, stranger.AssociatedPromotionalCodes.Len())
}

func TestRelation_InverseMutatorKeepsBothSides(t *testing.T) {
	code := newSummer10()
	p := &Product{ID: 5}

	p.AddAssociatedPromotionalCode(code)
	assert.True(t, code.Products.Contains(p))

	p.RemoveAssociatedPromotionalCode(code)
	assert.False(t, code.Products.Contains(p))
	assert.False(t, p.AssociatedPromotionalCodes.Contains(code))
}

func TestRelation_RemoveByIdentityCleansStoredInstance(t *testing.T) {
	code := newSummer10()
	stored := &Product{ID: 9}
	code.AddProduct(stored)

	// 另一份从数据库重新加载的副本
	reloaded := &Product{ID: 9}
	code.RemoveProduct(reloaded)

	assert.Zero(t, code.Products.Len())
	assert.Zero(t, stored.AssociatedPromotionalCodes.Len())
}

func TestRelation_UnpersistedInstancesAreDistinct(t *testing.T) {
	promo := &Promotion{}
	a := &Product{Name: "a"}
	b := &Product{Name: "b"}

	promo.AddProduct(a).AddProduct(b).AddProduct(a)

	assert.Equal(t, 2, promo.Products.Len())
}

func TestRelation_Replace(t *testing.T) {
	promo := &Promotion{ID: 1}
	p1, p2, p3 := &Product{ID: 1}, &Product{ID: 2}, &Product{ID: 3}
	promo.AddProduct(p1).AddProduct(p2)

	PromotionProducts.Replace(promo, []*Product{p2, p3})

	assert.Equal(t, []int64{2, 3}, promo.Products.IDs())
	assert.Zero(t, p1.AssociatedPromotions.Len())
	assert.True(t, p3.AssociatedPromotions.Contains(promo))
}

func TestRelation_DetachCascades(t *testing.T) {
	code := newSummer10()
	other := &PromotionalCode{ID: 2, Code: "WINTER"}
	p1, p2 := &Product{ID: 1}, &Product{ID: 2}
	code.AddProduct(p1).AddProduct(p2)
	other.AddProduct(p1)

	PromotionalCodeProducts.DetachOwner(code)
	assert.Zero(t, code.Products.Len())
	assert.Equal(t, []*PromotionalCode{other}, p1.AssociatedPromotionalCodes.Items())
	assert.Zero(t, p2.AssociatedPromotionalCodes.Len())

	PromotionalCodeProducts.DetachRelated(p1)
	assert.Zero(t, other.Products.Len())
}

func TestEquality(t *testing.T) {
	assert.True(t, (&Product{ID: 1}).Equal(&Product{ID: 1, Name: "different"}))
	assert.False(t, (&Product{ID: 1}).Equal(&Product{ID: 2}))

	unsaved := &Product{Name: "x"}
	assert.False(t, unsaved.Equal(unsaved))
	assert.False(t, unsaved.Equal(nil))
	assert.True(t, unsaved.ContentEquals(&Product{Name: "x"}))
}

func TestProduct_OwnsTagsAndRelatedCategories(t *testing.T) {
	p := &Product{ID: 1, Name: "Espresso"}
	organic := &Tag{ID: 2, Name: "organic"}
	coffee := &Category{ID: 3, Name: "Coffee"}

	p.AddTag(organic).AddRelatedCategory(coffee)
	organic.AddProduct(p)

	assert.Equal(t, []*Tag{organic}, p.Tags.Items())
	assert.Equal(t, []*Product{p}, organic.Products.Items())
	assert.Equal(t, []*Category{coffee}, p.RelatedCategories.Items())
	assert.Equal(t, []*Product{p}, coffee.RelatedProducts.Items())

	organic.RemoveProduct(p)
	p.RemoveRelatedCategory(coffee)
	assert.Zero(t, p.Tags.Len())
	assert.Zero(t, organic.Products.Len())
	assert.Zero(t, p.RelatedCategories.Len())
	assert.Zero(t, coffee.RelatedProducts.Len())
}

func TestProductTags_DetachRelatedTag(t *testing.T) {
	sale := &Tag{ID: 9, Name: "sale"}
	p1 := (&Product{ID: 1}).AddTag(sale)
	p2 := (&Product{ID: 2}).AddTag(sale)

	ProductTags.DetachRelated(sale)

	assert.Zero(t, sale.Products.Len())
	assert.Zero(t, p1.Tags.Len())
	assert.Zero(t, p2.Tags.Len())
}
