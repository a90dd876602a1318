// cmd/notification-service/main.go
package main

import (
	"time"

	"freshdrop/internal/pkg/bootstrap"
	"freshdrop/internal/pkg/mq"
	"freshdrop/internal/service/notification/application"
	"freshdrop/internal/service/notification/infrastructure"

	"go.opentelemetry.io/otel"
)

const serviceName = "notification-service"

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		RegisterHandlers: func(appCtx *bootstrap.AppCtx) error {
			cfg := appCtx.Config
			loc, err := time.LoadLocation(cfg.App.Timezone)
			if err != nil {
				return err
			}

			svc := application.NewNotificationService(otel.Tracer(serviceName), infrastructure.LogSender{}, loc)
			reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.Topics.OrderEvents, cfg.Infra.Kafka.Groups.Notification)
			appCtx.AddWorker(mq.NewConsumer("order-notifications", reader, svc.HandleMessage))
			return nil
		},
	})
}
