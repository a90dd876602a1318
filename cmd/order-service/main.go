// cmd/order-service/main.go
package main

import (
	"context"
	"time"

	"freshdrop/internal/pkg/bootstrap"
	"freshdrop/internal/pkg/httpclient"
	"freshdrop/internal/pkg/metrics"
	"freshdrop/internal/pkg/mq"
	"freshdrop/internal/pkg/redis"
	"freshdrop/internal/service/order/application"
	"freshdrop/internal/service/order/domain"
	"freshdrop/internal/service/order/domain/port"
	"freshdrop/internal/service/order/infrastructure"
	"freshdrop/internal/service/order/infrastructure/adapter"
	"freshdrop/internal/service/order/interfaces"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	tracer := otel.Tracer(serviceName)

	// 1. 存储
	db, err := infrastructure.OpenDatabase(cfg.Infra.Database)
	if err != nil {
		return err
	}
	appCtx.AddCloser(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	orderRepo := infrastructure.NewGormOrderRepository(db)
	profileRepo := infrastructure.NewGormProfileRepository(db)

	// 2. 出站适配器
	gateway := adapter.NewStripePaymentAdapter(adapter.StripeConfig{
		SecretKey:     cfg.Payment.StripeSecretKey,
		WebhookSecret: cfg.Payment.StripeWebhookSecret,
		BaseURL:       cfg.App.BaseURL,
		HTTPClient:    httpclient.NewClient(tracer, "stripe"),
	})

	eventWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.Topics.OrderEvents)
	appCtx.AddCloser(func(context.Context) error { return eventWriter.Close() })
	publisher := adapter.NewOrderEventKafkaAdapter(eventWriter)

	// Redis 只是去重快路径，不可用时退回到存储的条件更新
	var dedup port.WebhookDeduplicator
	if len(cfg.Infra.Redis.Addrs) > 0 {
		connectCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ExternalCallTimeout)
		redisClient, err := redis.NewClient(connectCtx, cfg.Infra.Redis.Addrs, cfg.Infra.Redis.Password)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, webhook dedup disabled")
		} else {
			appCtx.AddCloser(func(context.Context) error { return redisClient.Close() })
			dedupAdapter, err := adapter.NewWebhookDedupRedisAdapter(redisClient, serviceName+"-"+uuid.NewString())
			if err != nil {
				return err
			}
			dedup = dedupAdapter
		}
	}

	// 3. 应用服务；价格每次下单时从当前配置读取，配置中心热更新只影响新订单
	appSvc := application.NewOrderApplicationService(
		orderRepo, profileRepo, tracer, metrics.New(appCtx.Registry),
		gateway, publisher, dedup,
		application.Options{
			Pricing:            currentPricing,
			CallTimeout:        cfg.App.ExternalCallTimeout,
			DedupProcessingTTL: cfg.Infra.Redis.ProcessingTTL,
			DedupTTL:           cfg.Infra.Redis.DedupTTL,
		},
	)

	// 4. 驱动适配器
	interfaces.NewOrderHandler(appSvc, cfg.Auth.JWTSecret).RegisterRoutes(appCtx.Mux)

	identityReader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.Topics.IdentityEvents, cfg.Infra.Kafka.Groups.IdentityLinker)
	appCtx.AddWorker(interfaces.NewIdentityConsumer(identityReader, appSvc))

	return nil
}

func currentPricing() domain.Pricing {
	cfg := bootstrap.GetCurrentConfig()
	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return domain.Pricing{
		PricePerKg: cfg.PricePerKg(),
		Currency:   cfg.App.Pricing.Currency,
		Location:   loc,
	}
}
