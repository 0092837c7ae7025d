package application

import (
	"context"
	"github.com/ecom2122/ecom/internal/pkg/logger"
	"github.com/ecom2122/ecom/internal/pkg/metrics"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"time"
)

// crudService 编排单个实体的增删改查：身份校验 -> 查询 -> 合并/替换 -> 校验 -> 持久化 -> 发布事件。
// 每个用例在一个事务内完成，事件在事务提交后发布。
type crudService[E domain.Entity, P domain.Patch[E]] struct {
	entity string // 实体名，用于错误和告警头，例如 promotionalCode
	label  string // 日志和 span 中使用的名字，例如 PromotionalCode

	repo      domain.Repository[E]
	tx        domain.Transactor
	validator domain.Validator
	events    domain.EventPublisher
	tracer    trace.Tracer

	// resolve 把请求体中的引用（分类、商品）替换为已持久化的实体
	resolve func(ctx context.Context, e E) error
	// persisted 在主记录保存后执行，用于同步关联表
	persisted func(ctx context.Context, e E) error
	// detach 删除前把实体从所有关联集合中摘除
	detach func(e E)
}

func (s *crudService[E, P]) start(ctx context.Context, op string, id int64) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "service."+s.label+"."+op)
	span.SetAttributes(attribute.String("catalog.entity", s.entity))
	if id != 0 {
		span.SetAttributes(attribute.Int64("catalog.id", id))
	}
	return ctx, span
}

// finish 记录错误和指标，并结束 span
func (s *crudService[E, P]) finish(span trace.Span, op string, err error) {
	defer span.End()
	metrics.Operations.WithLabelValues(s.entity, op, outcome(err)).Inc()
	if err == nil {
		return
	}
	span.RecordError(err)
	if !errors.Is(err, domain.ErrBadRequest) && !errors.Is(err, domain.ErrNotFound) {
		span.SetStatus(codes.Error, err.Error())
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// prepare 解析引用并校验
func (s *crudService[E, P]) prepare(ctx context.Context, e E) error {
	if s.resolve != nil {
		if err := s.resolve(ctx, e); err != nil {
			return err
		}
	}
	return s.validator.Validate(ctx, e)
}

// store 保存实体及其关联，并重新加载持久化后的完整状态
func (s *crudService[E, P]) store(ctx context.Context, e E) (E, error) {
	if _, err := s.repo.Save(ctx, e); err != nil {
		var zero E
		return zero, err
	}
	if s.persisted != nil {
		if err := s.persisted(ctx, e); err != nil {
			var zero E
			return zero, err
		}
	}
	return s.repo.FindByID(ctx, e.Identity())
}

func (s *crudService[E, P]) publish(ctx context.Context, typ domain.EventType, id int64, relation string, relatedID int64) {
	if s.events == nil {
		return
	}
	event := domain.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Entity:     s.entity,
		EntityID:   id,
		Relation:   relation,
		RelatedID:  relatedID,
		OccurredAt: time.Now().UTC(),
	}
	// 事务已提交，发布失败只记录日志
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", event.ID).Msg("catalog event not delivered")
	}
}

// Create 保存一个新实体，请求中带 id 时拒绝
func (s *crudService[E, P]) Create(ctx context.Context, e E) (result E, err error) {
	ctx, span := s.start(ctx, "Create", 0)
	defer func() { s.finish(span, "create", err) }()
	logger.Ctx(ctx).Debug().Msgf("Request to save %s", s.label)

	if e.Identity() != 0 {
		return result, domain.BadRequest(s.entity, domain.ReasonIDExists, "A new "+s.entity+" cannot already have an ID")
	}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.prepare(ctx, e); err != nil {
			return err
		}
		result, err = s.store(ctx, e)
		return err
	})
	if err != nil {
		return result, err
	}
	s.publish(ctx, domain.EventCreated, result.Identity(), "", 0)
	return result, nil
}

// checkIdentity 校验请求体 id 与路径 id
func (s *crudService[E, P]) checkIdentity(bodyID, pathID int64) error {
	if bodyID == 0 {
		return domain.InvalidIdentity(s.entity)
	}
	if bodyID != pathID {
		return domain.BadRequest(s.entity, domain.ReasonIDInvalid, "Invalid ID")
	}
	return nil
}

// Update 整体替换一个已存在的实体。实体不存在属于请求错误（idnotfound），与 PATCH 的 404 不同。
func (s *crudService[E, P]) Update(ctx context.Context, id int64, e E) (result E, err error) {
	ctx, span := s.start(ctx, "Update", id)
	defer func() { s.finish(span, "update", err) }()
	logger.Ctx(ctx).Debug().Int64("id", id).Msgf("Request to update %s", s.label)

	if err = s.checkIdentity(e.Identity(), id); err != nil {
		return result, err
	}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindByIDForUpdate(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.BadRequest(s.entity, domain.ReasonIDNotFound, "Entity not found")
			}
			return err
		}
		if err := s.prepare(ctx, e); err != nil {
			return err
		}
		result, err = s.store(ctx, e)
		return err
	})
	if err != nil {
		return result, err
	}
	s.publish(ctx, domain.EventUpdated, id, "", 0)
	return result, nil
}

// PartialUpdate 只覆盖 patch 中非空的字段，关联关系保持不变。
// 查询、合并、保存在同一事务中完成，且对该行加锁。
func (s *crudService[E, P]) PartialUpdate(ctx context.Context, id int64, patch P) (result E, err error) {
	ctx, span := s.start(ctx, "PartialUpdate", id)
	defer func() { s.finish(span, "partial_update", err) }()
	logger.Ctx(ctx).Debug().Int64("id", id).Msgf("Request to partially update %s", s.label)

	if err = s.checkIdentity(patch.TargetID(), id); err != nil {
		return result, err
	}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		merged := domain.Merge(existing, patch)
		if err := s.validator.Validate(ctx, merged); err != nil {
			return err
		}
		if _, err := s.repo.Save(ctx, merged); err != nil {
			return err
		}
		result, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return result, err
	}
	s.publish(ctx, domain.EventUpdated, id, "", 0)
	return result, nil
}

// FindAll 返回全部实体，eager 为 true 时预加载多对多关联
func (s *crudService[E, P]) FindAll(ctx context.Context, eager bool) (result []E, err error) {
	ctx, span := s.start(ctx, "FindAll", 0)
	defer func() { s.finish(span, "find_all", err) }()
	logger.Ctx(ctx).Debug().Bool("eager", eager).Msgf("Request to get all %ss", s.label)
	span.SetAttributes(attribute.Bool("catalog.eager", eager))

	return s.repo.FindAll(ctx, eager)
}

// FindOne 返回实体，不存在时返回 ErrNotFound
func (s *crudService[E, P]) FindOne(ctx context.Context, id int64) (result E, err error) {
	ctx, span := s.start(ctx, "FindOne", id)
	defer func() { s.finish(span, "find_one", err) }()
	logger.Ctx(ctx).Debug().Int64("id", id).Msgf("Request to get %s", s.label)

	return s.repo.FindByID(ctx, id)
}

// Delete 删除实体并清理它参与的所有关联。不存在的 id 返回 ErrNotFound。
func (s *crudService[E, P]) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "Delete", id)
	defer func() { s.finish(span, "delete", err) }()
	logger.Ctx(ctx).Debug().Int64("id", id).Msgf("Request to delete %s", s.label)

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if s.detach != nil {
			s.detach(existing)
		}
		return s.repo.DeleteByID(ctx, id)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, domain.EventDeleted, id, "", 0)
	return nil
}
