// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"freshdrop/internal/pkg/logger"
	"freshdrop/internal/pkg/nacos"
	"freshdrop/internal/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Worker 是随服务一起启动的后台任务，例如 Kafka 消费者
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type AppCtx struct {
	Mux      *http.ServeMux
	Config   *Config
	Nacos    *nacos.Client // 未启用时为 nil
	Registry *prometheus.Registry

	workers []Worker
	closers []func(ctx context.Context) error
}

// AddWorker 注册后台任务，Start 在 HTTP 服务启动后并发运行
func (a *AppCtx) AddWorker(w Worker) {
	a.workers = append(a.workers, w)
}

// AddCloser 注册关停时需要释放的资源，按注册顺序的逆序执行
func (a *AppCtx) AddCloser(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	// RegisterHandlers 允许每个服务注册自己的 HTTP 路由和后台任务
	RegisterHandlers func(appCtx *AppCtx) error
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	// 1. 配置
	cfg, err := LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.App.Name = info.ServiceName
	SetCurrentConfig(cfg)
	logger.Init(info.ServiceName, cfg.Log.Level, cfg.Log.Pretty)

	// 2. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 3. Nacos：配置中心 + 服务注册（可选）
	var nacosClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Enabled {
		nacosClient, err = nacos.NewClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		watchRemoteConfig(nacosClient, cfg.Infra.Nacos.DataID)

		ip, err = getOutboundIP()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := nacosClient.RegisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 4. HTTP 路由
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	appCtx := &AppCtx{Mux: mux, Config: GetCurrentConfig(), Nacos: nacosClient, Registry: registry}
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			log.Fatal().Err(err).Msg("failed to register handlers")
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. 运行：HTTP Server 与所有 worker 任何一个出错都会触发整体退出
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, w := range appCtx.workers {
		g.Go(func() error { return w.Start(gctx) })
	}

	// 6. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if nacosClient != nil {
			if err := nacosClient.DeregisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
				log.Error().Err(err).Msg("Error deregistering from Nacos")
			}
			nacosClient.Close()
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		}
		for _, w := range appCtx.workers {
			if err := w.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error stopping worker")
			}
		}
		for i := len(appCtx.closers) - 1; i >= 0; i-- {
			if err := appCtx.closers[i](shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error closing resource")
			}
		}

		// Tracer 最后关闭，确保关停过程中的 span 也能被导出
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msgf("Service %s stopped with error", info.ServiceName)
		os.Exit(1)
	}
	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

// watchRemoteConfig 以 Nacos 中的文档覆盖本地配置，并监听后续变更。
// 读取失败时继续使用本地配置。
func watchRemoteConfig(client *nacos.Client, dataID string) {
	apply := func(content string) {
		if content == "" {
			return
		}
		if _, err := ApplyRemoteConfig(content); err != nil {
			log.Error().Err(err).Str("data_id", dataID).Msg("ignore invalid remote config")
			return
		}
		log.Info().Str("data_id", dataID).Msg("remote config applied")
	}

	content, err := client.GetConfig(dataID)
	if err != nil {
		log.Warn().Err(err).Str("data_id", dataID).Msg("remote config unavailable, using local config")
	} else {
		apply(content)
	}
	if err := client.ListenConfig(dataID, apply); err != nil {
		log.Warn().Err(err).Str("data_id", dataID).Msg("failed to listen remote config")
	}
}

func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
