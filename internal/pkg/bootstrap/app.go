// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"nexus-fulfillment/internal/pkg/logger"
	"nexus-fulfillment/internal/pkg/nacos"
	"nexus-fulfillment/internal/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

// AppCtx 是注册处理器时可以使用的公共组件
type AppCtx struct {
	Ctx    context.Context
	Mux    *http.ServeMux
	Config *Config // 启动时的配置快照，运行期读取开关请使用 GetCurrentConfig

	closers *[]func(ctx context.Context) error
}

// OnShutdown 注册一个关停时执行的清理函数，按注册的逆序执行
func (a AppCtx) OnShutdown(fn func(ctx context.Context) error) {
	*a.closers = append(*a.closers, fn)
}

// AppInfo 包含了启动一个服务所需的特定信息
type AppInfo struct {
	ConfigPath       string
	RegisterHandlers func(appCtx AppCtx) error
	// Middleware 包裹在业务路由外层，/healthz 和 /metrics 不经过它
	Middleware func(http.Handler) http.Handler
}

// StartService 封装了通用的启动和优雅关停逻辑，返回时所有组件都已关闭。
func StartService(info AppInfo) error {
	cfg, err := LoadConfig(info.ConfigPath)
	if err != nil {
		return err
	}
	logger.Init(logger.Options{Service: cfg.App.Name, Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})

	var naming *nacos.Client
	if cfg.Infra.Nacos.Enabled {
		naming, err = nacos.NewClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return err
		}
		defer naming.Close()
		if cfg, err = loadRemoteConfig(naming, cfg); err != nil {
			return err
		}
	}
	setCurrentConfig(cfg)

	tp, err := tracing.InitTracerProvider(cfg.App.Name, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var closers []func(ctx context.Context) error
	api := http.NewServeMux()
	appCtx := AppCtx{Ctx: ctx, Mux: api, Config: cfg, closers: &closers}
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			runClosers(closers)
			return err
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           NewRootHandler(cfg.App.Name, api, info.Middleware),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var ip string
	if naming != nil {
		if ip, err = nacos.OutboundIP(); err == nil {
			err = naming.RegisterServiceInstance(cfg.App.Name, ip, cfg.App.Port)
		}
		if err != nil {
			runClosers(closers)
			return err
		}
	}

	g.Go(func() error {
		logger.L().Info().Msgf("%s listening on :%d", cfg.App.Name, cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "listen on %s", server.Addr)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.L().Info().Msgf("Shutting down service %s...", cfg.App.Name)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// 先摘除实例，再停止接收请求，最后关闭后台组件和 tracer
		if naming != nil {
			if err := naming.DeregisterServiceInstance(cfg.App.Name, ip, cfg.App.Port); err != nil {
				logger.L().Error().Err(err).Msg("Error deregistering from Nacos")
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L().Error().Err(err).Msg("Error shutting down http server")
		}
		runClosers(closers)
		tracing.Shutdown(shutdownCtx, tp)
		return nil
	})

	err = g.Wait()
	if err != nil {
		logger.L().Error().Err(err).Msgf("Service %s stopped with error", cfg.App.Name)
		return err
	}
	logger.L().Info().Msgf("Service %s gracefully shut down.", cfg.App.Name)
	return nil
}

// NewRootHandler 组装根路由：健康检查和指标不需要认证，其余请求经过 middleware 后交给 api。
// 整个 handler 由 otelhttp 包裹，从请求头中恢复上游链路。
func NewRootHandler(serviceName string, api http.Handler, middleware func(http.Handler) http.Handler) http.Handler {
	if middleware != nil {
		api = middleware(api)
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("/", api)

	return otelhttp.NewHandler(root, serviceName)
}

// loadRemoteConfig 合并配置中心的内容，并监听后续变更
func loadRemoteConfig(client *nacos.Client, cfg *Config) (*Config, error) {
	dataID := cfg.Infra.Nacos.DataID
	if dataID == "" {
		return cfg, nil
	}

	content, err := client.GetConfig(dataID)
	if err != nil {
		return nil, err
	}
	if content != "" {
		if cfg, err = ParseConfig(cfg, content); err != nil {
			return nil, err
		}
	}

	err = client.ListenConfig(dataID, func(content string) {
		if err := ApplyRemoteConfig(content); err != nil {
			logger.L().Error().Err(err).Str("data_id", dataID).Msg("ignore invalid remote config")
		}
	})
	return cfg, err
}

// ApplyRemoteConfig 把配置中心推送的内容合并到当前配置。
// 只有功能开关这类运行期读取的配置会立即生效，连接类配置需要重启。
func ApplyRemoteConfig(content string) error {
	cfg, err := ParseConfig(GetCurrentConfig(), content)
	if err != nil {
		return err
	}
	setCurrentConfig(cfg)
	logger.L().Info().
		Bool("enable_coupon_rules", cfg.App.FeatureFlags.EnableCouponRules).
		Bool("enable_payment_consumer", cfg.App.FeatureFlags.EnablePaymentConsumer).
		Msg("remote config applied")
	return nil
}

func runClosers(closers []func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			logger.L().Error().Err(err).Msg("Error during shutdown")
		}
	}
}
