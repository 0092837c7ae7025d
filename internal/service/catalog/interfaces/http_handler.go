package interfaces

import (
	"context"
	"encoding/json"
	"github.com/ecom2122/ecom/internal/pkg/logger"
	"github.com/ecom2122/ecom/internal/service/catalog/application"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/pkg/errors"
	"mime"
	"net/http"
	"strconv"
)

const problemType = "https://www.jhipster.tech/problem/problem-with-message"

// crudUseCase 是 application 层对单个实体暴露的用例集合
type crudUseCase[E domain.Entity, P domain.Patch[E]] interface {
	Create(ctx context.Context, e E) (E, error)
	Update(ctx context.Context, id int64, e E) (E, error)
	PartialUpdate(ctx context.Context, id int64, patch P) (E, error)
	FindAll(ctx context.Context, eager bool) ([]E, error)
	FindOne(ctx context.Context, id int64) (E, error)
	Delete(ctx context.Context, id int64) error
}

// CatalogHandler 封装了目录服务的 HTTP 处理器
type CatalogHandler struct {
	alerts   alerts
	services *application.Services
	ready    func(ctx context.Context) error
	cache    *ResponseCache
}

// NewCatalogHandler 创建处理器。app 用于告警头的前缀，ready 用于 /readyz 探活。
func NewCatalogHandler(app string, services *application.Services, ready func(ctx context.Context) error) *CatalogHandler {
	return &CatalogHandler{alerts: alerts{app: app}, services: services, ready: ready}
}

// WithCache 为 /api 下的路由启用响应缓存
func (h *CatalogHandler) WithCache(c *ResponseCache) *CatalogHandler {
	h.cache = c
	return h
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /readyz", h.handleReady)

	register(mux, h, &resource[*domain.Category, domain.CategoryPatch, *application.CategoryDTO]{
		path:        "categories",
		entity:      domain.EntityCategory,
		service:     h.services.Categories,
		decode:      decodeEntity[application.CategoryDTO, *domain.Category],
		decodePatch: decodePatch[application.CategoryPatchDTO, domain.CategoryPatch],
		render:      application.NewCategoryDTO,
	})
	register(mux, h, &resource[*domain.Tag, domain.TagPatch, *application.TagDTO]{
		path:        "tags",
		entity:      domain.EntityTag,
		service:     h.services.Tags,
		decode:      decodeEntity[application.TagDTO, *domain.Tag],
		decodePatch: decodePatch[application.TagPatchDTO, domain.TagPatch],
		render:      application.NewTagDTO,
	})
	products := &resource[*domain.Product, domain.ProductPatch, *application.ProductDTO]{
		path:        "products",
		entity:      domain.EntityProduct,
		service:     h.services.Products,
		decode:      decodeEntity[application.ProductDTO, *domain.Product],
		decodePatch: decodePatch[application.ProductPatchDTO, domain.ProductPatch],
		render:      application.NewProductDTO,
	}
	products.list = h.listProducts
	register(mux, h, products)

	promotions := &resource[*domain.Promotion, domain.PromotionPatch, *application.PromotionDTO]{
		path:        "promotions",
		entity:      domain.EntityPromotion,
		service:     h.services.Promotions,
		decode:      decodeEntity[application.PromotionDTO, *domain.Promotion],
		decodePatch: decodePatch[application.PromotionPatchDTO, domain.PromotionPatch],
		render:      application.NewPromotionDTO,
	}
	register(mux, h, promotions)
	registerLinks(mux, h, promotions, h.services.Promotions)

	codes := &resource[*domain.PromotionalCode, domain.PromotionalCodePatch, *application.PromotionalCodeDTO]{
		path:        "promotional-codes",
		entity:      domain.EntityPromotionalCode,
		service:     h.services.PromotionalCodes,
		decode:      decodeEntity[application.PromotionalCodeDTO, *domain.PromotionalCode],
		decodePatch: decodePatch[application.PromotionalCodePatchDTO, domain.PromotionalCodePatch],
		render:      application.NewPromotionalCodeDTO,
	}
	register(mux, h, codes)
	registerLinks(mux, h, codes, h.services.PromotionalCodes)
}

func (h *CatalogHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			logger.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// handle 包装 /api 路由，启用缓存时读请求走缓存，写请求成功后让缓存失效
func (h *CatalogHandler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	var handler http.Handler = fn
	if h.cache != nil {
		handler = h.cache.Wrap(handler)
	}
	mux.Handle(pattern, handler)
}

// listProducts 支持 ?query= 关键字搜索和 ?categoryId= 按分类过滤
func (h *CatalogHandler) listProducts(r *http.Request) ([]*domain.Product, error) {
	q := r.URL.Query()
	if query := q.Get("query"); query != "" {
		return h.services.Products.Search(r.Context(), query)
	}
	if raw := q.Get("categoryId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, domain.BadRequest(domain.EntityCategory, domain.ReasonIDInvalid, "categoryId must be numeric")
		}
		return h.services.Products.FindByCategory(r.Context(), id)
	}
	return h.services.Products.FindAll(r.Context(), eagerLoad(r))
}

// resource 描述一个 REST 资源：路径、用例以及 DTO 的编解码
type resource[E domain.Entity, P domain.Patch[E], R any] struct {
	path        string
	entity      string
	service     crudUseCase[E, P]
	decode      func(r *http.Request) (E, error)
	decodePatch func(r *http.Request) (P, error)
	render      func(E) R
	// list 覆盖默认的集合查询
	list func(r *http.Request) ([]E, error)
}

func register[E domain.Entity, P domain.Patch[E], R any](mux *http.ServeMux, h *CatalogHandler, res *resource[E, P, R]) {
	collection := "/api/" + res.path
	item := collection + "/{id}"
	h.handle(mux, "POST "+collection, func(w http.ResponseWriter, r *http.Request) { createEntity(w, r, h.alerts, res) })
	h.handle(mux, "GET "+collection, func(w http.ResponseWriter, r *http.Request) { listEntities(w, r, h.alerts, res) })
	h.handle(mux, "GET "+item, func(w http.ResponseWriter, r *http.Request) { getEntity(w, r, h.alerts, res) })
	h.handle(mux, "PUT "+item, func(w http.ResponseWriter, r *http.Request) { updateEntity(w, r, h.alerts, res) })
	h.handle(mux, "PATCH "+item, func(w http.ResponseWriter, r *http.Request) { patchEntity(w, r, h.alerts, res) })
	h.handle(mux, "DELETE "+item, func(w http.ResponseWriter, r *http.Request) { deleteEntity(w, r, h.alerts, res) })
}

func createEntity[E domain.Entity, P domain.Patch[E], R any](w http.ResponseWriter, r *http.Request, a alerts, res *resource[E, P, R]) {
	logger.Ctx(r.Context()).Debug().Msgf("REST request to save %s", res.entity)
	e, err := res.decode(r)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	created, err := res.service.Create(r.Context(), e)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	id := strconv.FormatInt(created.Identity(), 10)
	w.Header().Set("Location", "/api/"+res.path+"/"+id)
	a.success(w, res.entity, "created", id)
	writeJSON(w, http.StatusCreated, res.render(created))
}

func updateEntity[E domain.Entity, P domain.Patch[E], R any](w http.ResponseWriter, r *http.Request, a alerts, res *resource[E, P, R]) {
	id, err := pathID(r, "id", res.entity)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	logger.Ctx(r.Context()).Debug().Int64("id", id).Msgf("REST request to update %s", res.entity)
	e, err := res.decode(r)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	updated, err := res.service.Update(r.Context(), id, e)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	a.success(w, res.entity, "updated", strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusOK, res.render(updated))
}

func patchEntity[E domain.Entity, P domain.Patch[E], R any](w http.ResponseWriter, r *http.Request, a alerts, res *resource[E, P, R]) {
	id, err := pathID(r, "id", res.entity)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	logger.Ctx(r.Context()).Debug().Int64("id", id).Msgf("REST request to partial update %s", res.entity)
	if !acceptsPatch(r) {
		a.failure(w, r, res.entity, domain.UnsupportedMediaType(res.entity, r.Header.Get("Content-Type")))
		return
	}
	patch, err := res.decodePatch(r)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	merged, err := res.service.PartialUpdate(r.Context(), id, patch)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	a.success(w, res.entity, "updated", strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusOK, res.render(merged))
}

func listEntities[E domain.Entity, P domain.Patch[E], R any](w http.ResponseWriter, r *http.Request, a alerts, res *resource[E, P, R]) {
	logger.Ctx(r.Context()).Debug().Msgf("REST request to get all %s", res.entity)
	var (
		all []E
		err error
	)
	if res.list != nil {
		all, err = res.list(r)
	} else {
		all, err = res.service.FindAll(r.Context(), eagerLoad(r))
	}
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	out := make([]R, 0, len(all))
	for _, e := range all {
		out = append(out, res.render(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func getEntity[E domain.Entity, P domain.Patch[E], R any](w http.ResponseWriter, r *http.Request, a alerts, res *resource[E, P, R]) {
	id, err := pathID(r, "id", res.entity)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	logger.Ctx(r.Context()).Debug().Int64("id", id).Msgf("REST request to get %s", res.entity)
	e, err := res.service.FindOne(r.Context(), id)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	writeJSON(w, http.StatusOK, res.render(e))
}

func deleteEntity[E domain.Entity, P domain.Patch[E], R any](w http.ResponseWriter, r *http.Request, a alerts, res *resource[E, P, R]) {
	id, err := pathID(r, "id", res.entity)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	logger.Ctx(r.Context()).Debug().Int64("id", id).Msgf("REST request to delete %s", res.entity)
	if err := res.service.Delete(r.Context(), id); err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	a.success(w, res.entity, "deleted", strconv.FormatInt(id, 10))
	w.WriteHeader(http.StatusNoContent)
}

// productLinker 是关联拥有方暴露的增删商品用例
type productLinker[E domain.Entity] interface {
	AddProduct(ctx context.Context, ownerID, productID int64) (E, error)
	RemoveProduct(ctx context.Context, ownerID, productID int64) (E, error)
}

// registerLinks 注册 /api/<r>/{id}/products/{productId} 的 PUT 和 DELETE
func registerLinks[E domain.Entity, P domain.Patch[E], R any](mux *http.ServeMux, h *CatalogHandler, res *resource[E, P, R], linker productLinker[E]) {
	pattern := "/api/" + res.path + "/{id}/products/{productId}"
	h.handle(mux, "PUT "+pattern, func(w http.ResponseWriter, r *http.Request) {
		linkProduct(w, r, h.alerts, res, linker.AddProduct)
	})
	h.handle(mux, "DELETE "+pattern, func(w http.ResponseWriter, r *http.Request) {
		linkProduct(w, r, h.alerts, res, linker.RemoveProduct)
	})
}

func linkProduct[E domain.Entity, P domain.Patch[E], R any](w http.ResponseWriter, r *http.Request, a alerts, res *resource[E, P, R],
	op func(ctx context.Context, ownerID, productID int64) (E, error)) {
	id, err := pathID(r, "id", res.entity)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	productID, err := pathID(r, "productId", domain.EntityProduct)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	logger.Ctx(r.Context()).Debug().Int64("id", id).Int64("product_id", productID).
		Msgf("REST request to %s products of %s", r.Method, res.entity)
	owner, err := op(r.Context(), id, productID)
	if err != nil {
		a.failure(w, r, res.entity, err)
		return
	}
	a.success(w, res.entity, "updated", strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusOK, res.render(owner))
}

func pathID(r *http.Request, name, entity string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.BadRequest(entity, domain.ReasonIDInvalid, "Invalid ID")
	}
	return id, nil
}

func eagerLoad(r *http.Request) bool {
	eager, _ := strconv.ParseBool(r.URL.Query().Get("eagerload"))
	return eager
}

// acceptsPatch PATCH 接受 application/json 和 application/merge-patch+json
func acceptsPatch(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && (mt == "application/json" || mt == "application/merge-patch+json")
}

func malformed(err error) error {
	derr := domain.BadRequest("", domain.ReasonValidation, "Malformed JSON payload")
	derr.Violations = []string{err.Error()}
	return derr
}

// decodeEntity 把请求体解析为 DTO 再转换为实体
func decodeEntity[D any, E any, PD interface {
	*D
	ToEntity() E
}](r *http.Request) (E, error) {
	var dto D
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		var zero E
		return zero, malformed(err)
	}
	return PD(&dto).ToEntity(), nil
}

func decodePatch[D any, P any, PD interface {
	*D
	ToPatch() P
}](r *http.Request) (P, error) {
	var dto D
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		var zero P
		return zero, malformed(err)
	}
	return PD(&dto).ToPatch(), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// alerts 生成前端使用的告警头：X-<app>-alert / X-<app>-error / X-<app>-params
type alerts struct {
	app string
}

func (a alerts) success(w http.ResponseWriter, entity, action, param string) {
	w.Header().Set("X-"+a.app+"-alert", a.app+"."+entity+"."+action)
	w.Header().Set("X-"+a.app+"-params", param)
}

// Problem 是错误响应体
type Problem struct {
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Status     int      `json:"status"`
	EntityName string   `json:"entityName,omitempty"`
	ErrorKey   string   `json:"errorKey,omitempty"`
	Message    string   `json:"message"`
	Params     string   `json:"params,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// failure 根据错误类型返回不同的 HTTP 状态码
func (a alerts) failure(w http.ResponseWriter, r *http.Request, entity string, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		status = http.StatusUnsupportedMediaType
	default:
		status = http.StatusInternalServerError
	}

	problem := Problem{Type: problemType, Title: http.StatusText(status), Status: status}
	var derr *domain.Error
	if errors.As(err, &derr) {
		if derr.Entity != "" {
			entity = derr.Entity
		}
		problem.EntityName = entity
		problem.ErrorKey = derr.Reason
		problem.Message = "error." + derr.Reason
		problem.Params = entity
		problem.Detail = derr.Message
		problem.Violations = derr.Violations
		w.Header().Set("X-"+a.app+"-error", "error."+derr.Reason)
		w.Header().Set("X-"+a.app+"-params", entity)
		logger.Ctx(r.Context()).Debug().Err(err).Int("status", status).Msg("request rejected")
	} else {
		problem.Message = "error.http." + strconv.Itoa(status)
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(problem)
}
