// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"github.com/ecom2122/ecom/internal/pkg/logger"
	"github.com/ecom2122/ecom/internal/pkg/metrics"
	"github.com/ecom2122/ecom/internal/pkg/nacos"
	"github.com/ecom2122/ecom/internal/tracing"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"
)

const shutdownTimeout = 10 * time.Second

type AppCtx struct {
	// Ctx 在收到退出信号时被取消，后台 goroutine 应监听它
	Ctx    context.Context
	Mux    *http.ServeMux
	Config *Config
	Nacos  *nacos.Client // 未配置 Nacos 时为 nil

	hooks *shutdownHooks
}

// OnShutdown 注册清理函数，关停时按注册的逆序执行
func (a AppCtx) OnShutdown(name string, fn func(ctx context.Context) error) {
	a.hooks.add(name, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许每个服务注册自己独特的 HTTP 路由和后台任务，返回错误会中止启动
	RegisterHandlers func(appCtx AppCtx) error
}

type shutdownHook struct {
	name string
	fn   func(ctx context.Context) error
}

type shutdownHooks struct {
	mu    sync.Mutex
	hooks []shutdownHook
}

func (h *shutdownHooks) add(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, shutdownHook{name: name, fn: fn})
}

// run 后进先出地执行所有清理函数
func (h *shutdownHooks) run(ctx context.Context) {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i].fn(ctx); err != nil {
			log.Error().Err(err).Str("hook", hooks[i].name).Msg("shutdown hook failed")
			continue
		}
		log.Info().Str("hook", hooks[i].name).Msg("shutdown hook done")
	}
}

// Handler 组装所有服务共用的中间件：trace -> 请求日志 -> 指标 -> 路由
func Handler(serviceName string, mux *http.ServeMux) http.Handler {
	return tracing.Middleware(serviceName, logger.Middleware(metrics.Middleware(mux)))
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑，阻塞直到服务退出。
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()
	logger.Init(info.ServiceName, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hooks := &shutdownHooks{}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hooks.run(shutdownCtx)
	}()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return errors.Wrap(err, "failed to initialize tracer provider")
	}
	// 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	hooks.add("tracer", tp.Shutdown)

	var namingClient *nacos.Client
	if addrs := cfg.Infra.Nacos.ServerAddrs; addrs != "" {
		namingClient, err = nacos.NewNacosClient(addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return err
		}
		hooks.add("nacos-client", func(context.Context) error {
			namingClient.Close()
			return nil
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.Handler())

	appCtx := AppCtx{Ctx: ctx, Mux: mux, Config: cfg, Nacos: namingClient, hooks: hooks}
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			return errors.Wrapf(err, "failed to set up %s", info.ServiceName)
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           Handler(info.ServiceName, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "could not listen on %s", server.Addr)
		}
		return nil
	})

	if namingClient != nil {
		ip, err := outboundIP()
		if err == nil {
			err = namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port)
		}
		if err != nil {
			server.Close()
			return err
		}
		// 最后注册的钩子最先执行，注销先于其他资源释放
		hooks.add("nacos-deregister", func(context.Context) error {
			return namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// 先停止接收新请求，再执行其余清理
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return err
}

// outboundIP 获取本机对外通信使用的 IP，用于服务注册
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.Wrap(err, "failed to get outbound IP address")
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
