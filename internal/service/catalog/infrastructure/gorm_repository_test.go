package infrastructure

import (
	"context"
	"github.com/ecom2122/ecom/internal/pkg/bootstrap"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"testing"
	"time"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDatabase(bootstrap.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), db, nil))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func intPtr(v int) *int { return &v }

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

type fixture struct {
	db         *gorm.DB
	categories *GormCategoryRepository
	tags       *GormTagRepository
	products   *GormProductRepository
	promotions *GormPromotionRepository
	codes      *GormPromotionalCodeRepository
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	return &fixture{
		db:         db,
		categories: NewGormCategoryRepository(db),
		tags:       NewGormTagRepository(db),
		products:   NewGormProductRepository(db),
		promotions: NewGormPromotionRepository(db),
		codes:      NewGormPromotionalCodeRepository(db),
	}
}

func (f *fixture) product(t *testing.T, name string) *domain.Product {
	t.Helper()
	p, err := f.products.Save(context.Background(), &domain.Product{
		Name:     name,
		Quantity: intPtr(5),
		Version:  intPtr(1),
		Brand:    "Acme",
		Price:    price("19.99"),
	})
	require.NoError(t, err)
	return p
}

func TestProductRepository_SaveAndFind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat, err := f.categories.Save(ctx, &domain.Category{Name: "Coffee"})
	require.NoError(t, err)
	require.NotZero(t, cat.ID)

	p := &domain.Product{
		Name:       "Espresso beans",
		Quantity:   intPtr(3),
		Version:    intPtr(1),
		Price:      price("12.50"),
		Weight:     decimal.NewNullDecimal(decimal.RequireFromString("0.25")),
		WeightUnit: domain.WeightUnitKG,
		Category:   cat,
	}
	saved, err := f.products.Save(ctx, p)
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	found, err := f.products.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, found.ContentEquals(p), "stored %+v, loaded %+v", p, found)
	assert.Equal(t, "Coffee", found.Category.Name)

	exists, err := f.products.ExistsByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRepository_FindByIDMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.promotions.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.codes.FindByIDForUpdate(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := f.codes.ExistsByID(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPromotionalCodeRepository_AssociationsAreSymmetricOnLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.product(t, "P1")
	p2 := f.product(t, "P2")

	code := &domain.PromotionalCode{
		Code:      "SUMMER10",
		StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC),
		Value:     decimal.RequireFromString("10.00"),
		Unit:      domain.ReductionPercentage,
	}
	_, err := f.codes.Save(ctx, code)
	require.NoError(t, err)
	code.AddProduct(p1).AddProduct(p2)
	require.NoError(t, f.codes.SaveAssociations(ctx, code))

	loaded, err := f.codes.FindByID(ctx, code.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{p1.ID, p2.ID}, loaded.Products.IDs())
	for _, p := range loaded.Products.Items() {
		assert.True(t, p.AssociatedPromotionalCodes.Contains(loaded))
	}

	product, err := f.products.FindByID(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{code.ID}, product.AssociatedPromotionalCodes.IDs())

	// 替换为只剩 P2
	loaded.RemoveProduct(p1)
	require.NoError(t, f.codes.SaveAssociations(ctx, loaded))
	product, err = f.products.FindByID(ctx, p1.ID)
	require.NoError(t, err)
	assert.Zero(t, product.AssociatedPromotionalCodes.Len())
}

func TestFindAll_EagerFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "P1")

	promo := &domain.Promotion{
		StartDate:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:             time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		ReductionPercentage: decimal.NewFromInt(20),
	}
	_, err := f.promotions.Save(ctx, promo)
	require.NoError(t, err)
	promo.AddProduct(p)
	require.NoError(t, f.promotions.SaveAssociations(ctx, promo))

	lazy, err := f.promotions.FindAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, lazy, 1)
	assert.Zero(t, lazy[0].Products.Len())

	eager, err := f.promotions.FindAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, eager, 1)
	assert.Equal(t, []int64{p.ID}, eager[0].Products.IDs())
}

func TestDeleteByID_RemovesJoinRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "P1")

	code := &domain.PromotionalCode{Code: "X", StartDate: time.Now(), EndDate: time.Now(), Value: decimal.NewFromInt(1), Unit: domain.ReductionFix}
	_, err := f.codes.Save(ctx, code)
	require.NoError(t, err)
	code.AddProduct(p)
	require.NoError(t, f.codes.SaveAssociations(ctx, code))

	require.NoError(t, f.products.DeleteByID(ctx, p.ID))

	var rows int64
	require.NoError(t, f.db.Model(&promotionalCodeProductRow{}).Count(&rows).Error)
	assert.Zero(t, rows)

	loaded, err := f.codes.FindByID(ctx, code.ID)
	require.NoError(t, err)
	assert.Zero(t, loaded.Products.Len())

	assert.ErrorIs(t, f.products.DeleteByID(ctx, p.ID), domain.ErrNotFound)
}

func TestProductRepository_OwnedAssociations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coffee, err := f.categories.Save(ctx, &domain.Category{Name: "Coffee"})
	require.NoError(t, err)
	gifts, err := f.categories.Save(ctx, &domain.Category{Name: "Gifts"})
	require.NoError(t, err)
	organic, err := f.tags.Save(ctx, &domain.Tag{Name: "organic"})
	require.NoError(t, err)

	p := f.product(t, "Espresso")
	p.AddRelatedCategory(coffee).AddRelatedCategory(gifts).AddTag(organic)
	require.NoError(t, f.products.SaveAssociations(ctx, p))

	loaded, err := f.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{coffee.ID, gifts.ID}, loaded.RelatedCategories.IDs())
	assert.Equal(t, []int64{organic.ID}, loaded.Tags.IDs())
	for _, c := range loaded.RelatedCategories.Items() {
		assert.True(t, c.RelatedProducts.Contains(loaded))
	}

	// 删除标签和分类会清理关联表
	require.NoError(t, f.tags.DeleteByID(ctx, organic.ID))
	require.NoError(t, f.categories.DeleteByID(ctx, gifts.ID))
	loaded, err = f.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{coffee.ID}, loaded.RelatedCategories.IDs())
	assert.Zero(t, loaded.Tags.Len())

	require.NoError(t, f.products.DeleteByID(ctx, p.ID))
	var rows int64
	require.NoError(t, f.db.Model(&productRelatedCategoryRow{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestCategoryDelete_UncategorisesProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat, err := f.categories.Save(ctx, &domain.Category{Name: "Tea"})
	require.NoError(t, err)
	p, err := f.products.Save(ctx, &domain.Product{Name: "Sencha", Version: intPtr(1), Price: price("4"), Category: cat})
	require.NoError(t, err)

	require.NoError(t, f.categories.DeleteByID(ctx, cat.ID))

	loaded, err := f.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.Category)
}

func TestProductRepository_SearchAndCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat, err := f.categories.Save(ctx, &domain.Category{Name: "Coffee"})
	require.NoError(t, err)

	_, err = f.products.Save(ctx, &domain.Product{Name: "Espresso Roast", Version: intPtr(1), Price: price("9"), Category: cat})
	require.NoError(t, err)
	_, err = f.products.Save(ctx, &domain.Product{Name: "Green tea", Brand: "Leafy", Version: intPtr(1), Price: price("5")})
	require.NoError(t, err)

	found, err := f.products.Search(ctx, "espresso")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Espresso Roast", found[0].Name)

	found, err = f.products.Search(ctx, "LEAF")
	require.NoError(t, err)
	require.Len(t, found, 1)

	inCat, err := f.products.FindByCategory(ctx, cat.ID)
	require.NoError(t, err)
	require.Len(t, inCat, 1)
	assert.Equal(t, cat.ID, inCat[0].Category.ID)
}

func TestTransactor_RollsBack(t *testing.T) {
	f := newFixture(t)
	tx := NewGormTransactor(f.db)
	ctx := context.Background()

	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := f.categories.Save(ctx, &domain.Category{Name: "Doomed"}); err != nil {
			return err
		}
		return domain.BadRequest(domain.EntityCategory, domain.ReasonValidation, "abort")
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	all, err := f.categories.FindAll(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

type fakeLocker struct{ locked, unlocked int }

func (l *fakeLocker) Lock(context.Context) error { l.locked++; return nil }
func (l *fakeLocker) Unlock() error               { l.unlocked++; return nil }

func TestMigrate_UsesLocker(t *testing.T) {
	db := setupTestDB(t)
	locker := &fakeLocker{}

	require.NoError(t, Migrate(context.Background(), db, locker))
	assert.Equal(t, 1, locker.locked)
	assert.Equal(t, 1, locker.unlocked)
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(bootstrap.DatabaseConfig{Host: "db", Port: 3306, User: "app", Password: "p@ss", Name: "ecom"})
	assert.Contains(t, dsn, "app:p@ss@tcp(db:3306)/ecom?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
