// cmd/catalog-service/main.go
package main

import (
	"context"
	"github.com/ecom2122/ecom/internal/pkg/bootstrap"
	"github.com/ecom2122/ecom/internal/pkg/mq"
	"github.com/ecom2122/ecom/internal/pkg/redis"
	"github.com/ecom2122/ecom/internal/service/catalog/application"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/ecom2122/ecom/internal/service/catalog/infrastructure"
	"github.com/ecom2122/ecom/internal/service/catalog/infrastructure/rule"
	"github.com/ecom2122/ecom/internal/service/catalog/interfaces"
	"github.com/ecom2122/ecom/internal/zookeeper"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

const serviceName = "catalog-service"

// main 函数是应用的"组装根" (Composition Root)
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	// 金额按 JSON 数字输出，与前端约定一致
	decimal.MarshalJSONWithoutQuotes = true

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             cfg.App.Port,
		RegisterHandlers: registerCatalog,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("catalog service stopped with error")
	}
}

func registerCatalog(app bootstrap.AppCtx) error {
	cfg := app.Config

	db, err := infrastructure.OpenDatabase(cfg.Infra.Database)
	if err != nil {
		return err
	}
	app.OnShutdown("database", func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if err := migrate(app, db); err != nil {
		return err
	}

	validator, err := rule.NewCELValidator()
	if err != nil {
		return err
	}

	var sinks []infrastructure.NamedPublisher
	if flags := cfg.App.FeatureFlags; flags.EnableEventStream && len(cfg.Infra.Kafka.Brokers) > 0 {
		writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.Topic)
		app.OnShutdown("kafka-writer", func(context.Context) error { return writer.Close() })
		sinks = append(sinks, infrastructure.NamedPublisher{Name: "kafka", Publisher: infrastructure.NewKafkaEventPublisher(writer)})
	}
	if cfg.App.FeatureFlags.EnableAlertFeed {
		hub := interfaces.NewAlertHub(cfg.App.Name)
		hub.RegisterRoutes(app.Mux)
		app.OnShutdown("alert-hub", func(context.Context) error {
			hub.Close()
			return nil
		})
		sinks = append(sinks, infrastructure.NamedPublisher{Name: "websocket", Publisher: hub})
	}
	var events domain.EventPublisher
	if len(sinks) > 0 {
		events = infrastructure.NewFanoutPublisher(sinks...)
	}

	services := application.NewServices(application.Dependencies{
		Transactor:       infrastructure.NewGormTransactor(db),
		Validator:        validator,
		Events:           events,
		Tracer:           otel.Tracer(serviceName),
		Categories:       infrastructure.NewGormCategoryRepository(db),
		Tags:             infrastructure.NewGormTagRepository(db),
		Products:         infrastructure.NewGormProductRepository(db),
		Promotions:       infrastructure.NewGormPromotionRepository(db),
		PromotionalCodes: infrastructure.NewGormPromotionalCodeRepository(db),
	})

	handler := interfaces.NewCatalogHandler(cfg.App.Name, services, func(ctx context.Context) error {
		return infrastructure.Ping(ctx, db)
	})
	if cfg.App.FeatureFlags.EnableResponseCache {
		client, err := redis.NewClient(app.Ctx, cfg.Infra.Redis)
		if err != nil {
			// 缓存只是加速，Redis 不可用时照常启动
			log.Warn().Err(err).Msg("response cache disabled")
		} else {
			app.OnShutdown("redis", func(context.Context) error { return client.Close() })
			handler.WithCache(interfaces.NewResponseCache(client, cfg.Infra.Redis.TTL))
		}
	}
	handler.RegisterRoutes(app.Mux)
	return nil
}

// migrate 多实例部署时通过 ZooKeeper 锁保证只有一个实例执行 DDL
func migrate(app bootstrap.AppCtx, db *gorm.DB) error {
	zkCfg := app.Config.Infra.Zookeeper
	if len(zkCfg.Servers) == 0 {
		return infrastructure.Migrate(app.Ctx, db, nil)
	}

	conn, err := zookeeper.Connect(zkCfg.Servers, zkCfg.SessionTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	lock, err := zookeeper.NewDistributedLock(conn, "catalog-schema-migration")
	if err != nil {
		return errors.Wrap(err, "create migration lock")
	}
	return infrastructure.Migrate(app.Ctx, db, lock)
}
