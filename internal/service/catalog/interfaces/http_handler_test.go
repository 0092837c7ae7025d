package interfaces

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ecom2122/ecom/internal/pkg/bootstrap"
	"github.com/ecom2122/ecom/internal/service/catalog/application"
	"github.com/ecom2122/ecom/internal/service/catalog/infrastructure"
	"github.com/ecom2122/ecom/internal/service/catalog/infrastructure/rule"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testApp = "ecomApp"

func newTestServices(t *testing.T) *application.Services {
	t.Helper()
	db, err := infrastructure.OpenDatabase(bootstrap.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, infrastructure.Migrate(context.Background(), db, nil))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	validator, err := rule.NewCELValidator()
	require.NoError(t, err)
	return application.NewServices(application.Dependencies{
		Transactor:       infrastructure.NewGormTransactor(db),
		Validator:        validator,
		Categories:       infrastructure.NewGormCategoryRepository(db),
		Tags:             infrastructure.NewGormTagRepository(db),
		Products:         infrastructure.NewGormProductRepository(db),
		Promotions:       infrastructure.NewGormPromotionRepository(db),
		PromotionalCodes: infrastructure.NewGormPromotionalCodeRepository(db),
	})
}

func newTestMux(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	NewCatalogHandler(testApp, newTestServices(t), nil).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createProduct(t *testing.T, mux http.Handler, name string) int64 {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/api/products", fmt.Sprintf(`{"name":%q,"quantity":1,"version":1,"price":9.9}`, name))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[application.ProductDTO](t, rec).ID
}

func TestCreate_AlertHeadersAndLocation(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/categories", `{"name":"Coffee"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[application.CategoryDTO](t, rec)
	id := fmt.Sprint(created.ID)

	assert.Equal(t, "/api/categories/"+id, rec.Header().Get("Location"))
	assert.Equal(t, "ecomApp.category.created", rec.Header().Get("X-ecomApp-alert"))
	assert.Equal(t, id, rec.Header().Get("X-ecomApp-params"))
}

func TestCreate_WithIDIsRejected(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/promotional-codes", `{"id":3,"code":"SUMMER10"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error.idexists", rec.Header().Get("X-ecomApp-error"))
	assert.Equal(t, "promotionalCode", rec.Header().Get("X-ecomApp-params"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	problem := decodeBody[Problem](t, rec)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, "idexists", problem.ErrorKey)
	assert.Equal(t, "promotionalCode", problem.EntityName)
	assert.Equal(t, "error.idexists", problem.Message)
}

func TestValidationProblemListsViolations(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/products", `{"name":"","version":1,"price":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeBody[Problem](t, rec)
	assert.Equal(t, "validation", problem.ErrorKey)
	assert.Contains(t, problem.Violations, "name: must not be blank")

	rec = do(t, mux, http.MethodPost, "/api/products", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductRequiredFields(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPost, "/api/products", `{"name":"no-price-no-qty","version":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "error.validation", rec.Header().Get("X-ecomApp-error"))
	problem := decodeBody[Problem](t, rec)
	assert.ElementsMatch(t, []string{"quantity: must not be null", "price: must not be null"}, problem.Violations)

	rec = do(t, mux, http.MethodPost, "/api/products", `{"name":"no-version","quantity":1,"price":2}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"version: must not be null"}, decodeBody[Problem](t, rec).Violations)

	rec = do(t, mux, http.MethodPost, "/api/products", `{"name":"zero-stock","quantity":0,"version":1,"price":0}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[application.ProductDTO](t, rec)
	require.NotNil(t, created.Quantity)
	assert.Equal(t, 0, *created.Quantity)

	id := createProduct(t, mux, "p")
	path := fmt.Sprintf("/api/products/%d", id)
	for _, body := range []string{
		fmt.Sprintf(`{"id":%d,"name":"p","version":1}`, id),
		fmt.Sprintf(`{"id":%d,"name":"p","version":1,"price":3}`, id),
		fmt.Sprintf(`{"id":%d,"name":"p","quantity":2,"version":1}`, id),
		fmt.Sprintf(`{"id":%d,"name":"p","quantity":2,"price":3}`, id),
	} {
		rec = do(t, mux, http.MethodPut, path, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "error.validation", rec.Header().Get("X-ecomApp-error"), body)
	}

	stored := decodeBody[application.ProductDTO](t, do(t, mux, http.MethodGet, path, ""))
	require.NotNil(t, stored.Quantity)
	assert.Equal(t, 1, *stored.Quantity)
	assert.True(t, stored.Price.Valid)
}

func TestTagsAndProductOwnedAssociations(t *testing.T) {
	mux := newTestMux(t)
	rec := do(t, mux, http.MethodPost, "/api/tags", `{"name":"organic"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "ecomApp.tag.created", rec.Header().Get("X-ecomApp-alert"))
	tag := decodeBody[application.TagDTO](t, rec)

	rec = do(t, mux, http.MethodPost, "/api/tags", `{"name":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/categories", `{"name":"Gifts"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	gifts := decodeBody[application.CategoryDTO](t, rec)

	rec = do(t, mux, http.MethodPost, "/api/products", fmt.Sprintf(
		`{"name":"Mug","quantity":5,"version":1,"price":7.5,"tags":[{"id":%d}],"relatedCategories":[{"id":%d}]}`, tag.ID, gifts.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	mug := decodeBody[application.ProductDTO](t, rec)
	require.Len(t, mug.Tags, 1)
	assert.Equal(t, "organic", mug.Tags[0].Name)
	require.Len(t, mug.RelatedCategories, 1)
	assert.Equal(t, "Gifts", mug.RelatedCategories[0].Name)

	rec = do(t, mux, http.MethodPost, "/api/products", `{"name":"Cup","quantity":5,"version":1,"price":7.5,"tags":[{"id":404}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error.idnotfound", rec.Header().Get("X-ecomApp-error"))
	assert.Equal(t, "tag", rec.Header().Get("X-ecomApp-params"))

	tagPath := fmt.Sprintf("/api/tags/%d", tag.ID)
	req := httptest.NewRequest(http.MethodPatch, tagPath, strings.NewReader(fmt.Sprintf(`{"id":%d,"name":"bio"}`, tag.ID)))
	req.Header.Set("Content-Type", "application/merge-patch+json")
	patched := httptest.NewRecorder()
	mux.ServeHTTP(patched, req)
	require.Equal(t, http.StatusOK, patched.Code, patched.Body.String())
	assert.Equal(t, "bio", decodeBody[application.TagDTO](t, patched).Name)

	tags := decodeBody[[]application.TagDTO](t, do(t, mux, http.MethodGet, "/api/tags", ""))
	assert.Len(t, tags, 1)

	rec = do(t, mux, http.MethodDelete, tagPath, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ecomApp.tag.deleted", rec.Header().Get("X-ecomApp-alert"))

	got := decodeBody[application.ProductDTO](t, do(t, mux, http.MethodGet, fmt.Sprintf("/api/products/%d", mug.ID), ""))
	assert.Empty(t, got.Tags)
	assert.Len(t, got.RelatedCategories, 1)
}

func TestMissingEntities(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/api/promotions/404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error.notfound", rec.Header().Get("X-ecomApp-error"))

	// PUT 不存在的实体是 400，PATCH 是 404
	rec = do(t, mux, http.MethodPut, "/api/categories/404", `{"id":404,"name":"Tea"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error.idnotfound", rec.Header().Get("X-ecomApp-error"))

	rec = do(t, mux, http.MethodPatch, "/api/categories/404", `{"id":404,"name":"Tea"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/categories/404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/categories/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error.idinvalid", rec.Header().Get("X-ecomApp-error"))
}

func TestUpdateAndPatch(t *testing.T) {
	mux := newTestMux(t)
	rec := do(t, mux, http.MethodPost, "/api/categories", `{"name":"Tea","description":"leaves"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[application.CategoryDTO](t, rec).ID
	path := fmt.Sprintf("/api/categories/%d", id)

	rec = do(t, mux, http.MethodPut, path, `{"name":"Tea"}`)
	assert.Equal(t, "error.idnull", rec.Header().Get("X-ecomApp-error"))

	rec = do(t, mux, http.MethodPut, path, fmt.Sprintf(`{"id":%d,"name":"Tea"}`, id+1))
	assert.Equal(t, "error.idinvalid", rec.Header().Get("X-ecomApp-error"))

	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(fmt.Sprintf(`{"id":%d,"name":"Green tea"}`, id)))
	req.Header.Set("Content-Type", "application/merge-patch+json")
	patched := httptest.NewRecorder()
	mux.ServeHTTP(patched, req)
	require.Equal(t, http.StatusOK, patched.Code, patched.Body.String())
	assert.Equal(t, "ecomApp.category.updated", patched.Header().Get("X-ecomApp-alert"))
	got := decodeBody[application.CategoryDTO](t, patched)
	assert.Equal(t, "Green tea", got.Name)
	assert.Equal(t, "leaves", got.Description)

	req = httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	unsupported := httptest.NewRecorder()
	mux.ServeHTTP(unsupported, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, unsupported.Code)
	assert.Equal(t, "application/problem+json", unsupported.Header().Get("Content-Type"))
	assert.Equal(t, "error.unsupportedmediatype", unsupported.Header().Get("X-ecomApp-error"))
	assert.Equal(t, "category", unsupported.Header().Get("X-ecomApp-params"))
	problem := decodeBody[Problem](t, unsupported)
	assert.Equal(t, http.StatusUnsupportedMediaType, problem.Status)
	assert.Equal(t, "unsupportedmediatype", problem.ErrorKey)

	rec = do(t, mux, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ecomApp.category.deleted", rec.Header().Get("X-ecomApp-alert"))
}

func TestPromotionalCodeProductsEndpoints(t *testing.T) {
	mux := newTestMux(t)
	p1 := createProduct(t, mux, "P1")
	p2 := createProduct(t, mux, "P2")

	body := fmt.Sprintf(`{"code":"SUMMER10","startDate":"2024-06-01T00:00:00Z","endDate":"2024-08-31T00:00:00Z",
		"value":10,"unit":"PERCENTAGE","products":[{"id":%d},{"id":%d}]}`, p1, p2)
	rec := do(t, mux, http.MethodPost, "/api/promotional-codes", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	code := decodeBody[application.PromotionalCodeDTO](t, rec)
	assert.Len(t, code.Products, 2)

	rec = do(t, mux, http.MethodDelete, fmt.Sprintf("/api/promotional-codes/%d/products/%d", code.ID, p1), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	code = decodeBody[application.PromotionalCodeDTO](t, rec)
	require.Len(t, code.Products, 1)
	assert.Equal(t, p2, code.Products[0].ID)

	rec = do(t, mux, http.MethodGet, fmt.Sprintf("/api/products/%d", p1), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[application.ProductDTO](t, rec).AssociatedPromotionalCodes)

	rec = do(t, mux, http.MethodGet, fmt.Sprintf("/api/products/%d", p2), "")
	require.Equal(t, http.StatusOK, rec.Code)
	product := decodeBody[application.ProductDTO](t, rec)
	require.Len(t, product.AssociatedPromotionalCodes, 1)
	assert.Equal(t, "SUMMER10", product.AssociatedPromotionalCodes[0].Code)

	rec = do(t, mux, http.MethodPut, fmt.Sprintf("/api/promotional-codes/%d/products/%d", code.ID, 404), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEagerLoadAndProductQueries(t *testing.T) {
	mux := newTestMux(t)
	p := createProduct(t, mux, "Espresso")
	createProduct(t, mux, "Teapot")

	rec := do(t, mux, http.MethodPost, "/api/promotions", fmt.Sprintf(
		`{"startDate":"2024-01-01T00:00:00Z","endDate":"2024-01-31T00:00:00Z","reductionPercentage":20,"products":[{"id":%d}]}`, p))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	lazy := decodeBody[[]application.PromotionDTO](t, do(t, mux, http.MethodGet, "/api/promotions", ""))
	require.Len(t, lazy, 1)
	assert.Empty(t, lazy[0].Products)

	eager := decodeBody[[]application.PromotionDTO](t, do(t, mux, http.MethodGet, "/api/promotions?eagerload=true", ""))
	require.Len(t, eager, 1)
	assert.Len(t, eager[0].Products, 1)

	found := decodeBody[[]application.ProductDTO](t, do(t, mux, http.MethodGet, "/api/products?query=press", ""))
	require.Len(t, found, 1)
	assert.Equal(t, "Espresso", found[0].Name)

	rec = do(t, mux, http.MethodGet, "/api/products?categoryId=404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadiness(t *testing.T) {
	mux := http.NewServeMux()
	NewCatalogHandler(testApp, newTestServices(t), func(context.Context) error {
		return errors.New("db down")
	}).RegisterRoutes(mux)

	rec := do(t, mux, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, newTestMux(t), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
