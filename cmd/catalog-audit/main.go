// cmd/catalog-audit/main.go
package main

import (
	"context"
	"github.com/ecom2122/ecom/internal/pkg/bootstrap"
	"github.com/ecom2122/ecom/internal/pkg/mq"
	"github.com/ecom2122/ecom/internal/service/catalog/interfaces"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const serviceName = "catalog-audit"

func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		// 与 catalog-service 部署在同一台机器时错开端口
		Port: cfg.App.Port + 1,
		RegisterHandlers: func(app bootstrap.AppCtx) error {
			kafkaCfg := app.Config.Infra.Kafka
			if len(kafkaCfg.Brokers) == 0 {
				return errors.New("KAFKA_BROKERS is required for the audit consumer")
			}
			reader := mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.Topic, kafkaCfg.GroupID)
			consumer := interfaces.NewAuditConsumer(reader, kafkaCfg.Topic)
			if err := consumer.Start(app.Ctx); err != nil {
				return err
			}
			app.OnShutdown("audit-consumer", func(ctx context.Context) error {
				consumer.Stop(ctx)
				return nil
			})
			return nil
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("catalog audit stopped with error")
	}
}
