// Command lobserver runs the matching engine as a long-lived service: the
// command API over HTTP, a level/execution stream over websockets, an
// admin surface for health and readiness, and asynchronous market-event
// publishing, all wired together with uber-go/fx.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nexustrade/lobengine/internal/analytics"
	"github.com/nexustrade/lobengine/internal/config"
	"github.com/nexustrade/lobengine/internal/events"
	"github.com/nexustrade/lobengine/internal/ingress"
	"github.com/nexustrade/lobengine/internal/matching"
	"github.com/nexustrade/lobengine/internal/metrics"
	adminhttp "github.com/nexustrade/lobengine/internal/transport/admin"
	cmdhttp "github.com/nexustrade/lobengine/internal/transport/http"
	wsstream "github.com/nexustrade/lobengine/internal/transport/ws"
	"github.com/nexustrade/lobengine/internal/version"
)

var configPath = flag.String("config", "", "path to a YAML configuration file (defaults built in if empty)")

func main() {
	flag.Parse()

	app := fx.New(
		fx.Supply(*configPath),
		fx.Provide(
			newLogger,
			newConfigManager,
			newPrometheusRegistry,
			newMetricsRegistry,
			newPublisher,
			newEventPublisher,
			newAnalyticsTracker,
			newWebsocketHub,
			newMetricsHandler,
			newHandler,
			newManager,
			newIngressGateway,
			newHTTPServer,
			newAdminRouter,
		),
		fx.Invoke(
			registerManagerLifecycle,
			registerIngressLifecycle,
			registerHTTPServer,
			registerWSServer,
			registerAdminServer,
			registerMetricsServer,
		),
	)
	app.Run()
}

func newLogger(cfgMgr *config.Manager) (*zap.Logger, error) {
	cfg := cfgMgr.Get().Logging
	if cfg.Production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newConfigManager(path string) (*config.Manager, error) {
	bootstrap, _ := zap.NewProduction()
	return config.NewManager(path, bootstrap)
}

func newPrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func newMetricsRegistry(reg *prometheus.Registry) *metrics.Registry {
	return metrics.New(reg)
}

// newPublisher builds the watermill publisher backing event fan-out: an
// in-process gochannel bus by default, or a NATS-backed publisher when
// configured, matching config.EventsConfig.Driver.
func newPublisher(cfgMgr *config.Manager, logger *zap.Logger) (events.Publisher, error) {
	cfg := cfgMgr.Get().Events
	if cfg.Driver == "nats" && cfg.NATSUrl != "" {
		return events.NewNATSPublisher(cfg.NATSUrl, logger)
	}
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	return bus, nil
}

func newEventPublisher(cfgMgr *config.Manager, pub events.Publisher, logger *zap.Logger) *events.EventPublisher {
	topic := cfgMgr.Get().Events.TopicPrefix + ".market-events"
	return events.New(topic, pub, logger)
}

func newAnalyticsTracker() *analytics.Tracker {
	return analytics.NewTracker(500)
}

func newWebsocketHub(logger *zap.Logger) *wsstream.Hub {
	return wsstream.NewHub(logger)
}

func newMetricsHandler(reg *metrics.Registry) *metrics.Handler {
	return metrics.NewHandler(reg)
}

func newHandler(pub *events.EventPublisher, hub *wsstream.Hub, tracker *analytics.Tracker, metricsHandler *metrics.Handler) matching.Handler {
	return matching.NewFanoutHandler(pub, hub, tracker, metricsHandler)
}

func newManager(handler matching.Handler, reg *metrics.Registry, logger *zap.Logger) *matching.Manager {
	m := matching.NewManager(handler, logger)
	m.SetMetrics(reg)
	return m
}

func newIngressGateway(cfgMgr *config.Manager, logger *zap.Logger) (*ingress.Gateway, error) {
	cfg := cfgMgr.Get().Ingress
	return ingress.New(cfg.WorkerPoolSize, cfg.CommandsPerSecond, cfg.CommandBurst, logger)
}

func newHTTPServer(manager *matching.Manager, gateway *ingress.Gateway, reg *metrics.Registry, cfgMgr *config.Manager, logger *zap.Logger) *cmdhttp.Server {
	cfg := cfgMgr.Get().Transport
	return cmdhttp.New(manager, gateway, []byte(cfg.JWTSecret), []byte(cfg.AdminPasswordHash), int64(cfg.RateLimitRPS), reg, logger)
}

func newAdminRouter(manager *matching.Manager, cfgMgr *config.Manager) *adminhttp.Router {
	check := adminhttp.ManagerHealth{
		Name: "matching-manager",
		Fn:   func(ctx context.Context) error { return nil },
	}
	snapshot := func() interface{} { return cfgMgr.Get() }
	return adminhttp.New(version.Current, snapshot, check)
}

func registerManagerLifecycle(lc fx.Lifecycle, manager *matching.Manager, cfgMgr *config.Manager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfgMgr.Get().Engine.StartMatching {
				manager.EnableMatching()
			}
			logger.Info("matching manager ready")
			return nil
		},
	})
}

func registerIngressLifecycle(lc fx.Lifecycle, gateway *ingress.Gateway) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			gateway.Close()
			return nil
		},
	})
}

func registerHTTPServer(lc fx.Lifecycle, server *cmdhttp.Server, cfgMgr *config.Manager, logger *zap.Logger) {
	httpSrv := &http.Server{Addr: cfgMgr.Get().Transport.HTTPAddr, Handler: server.Handler()}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("command http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sctx, cancel := shutdownCtx(ctx, cfgMgr)
			defer cancel()
			return httpSrv.Shutdown(sctx)
		},
	})
}

func registerWSServer(lc fx.Lifecycle, hub *wsstream.Hub, cfgMgr *config.Manager, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream/", func(w http.ResponseWriter, r *http.Request) {
		symbolID, err := parseSymbolFromPath(r.URL.Path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := hub.ServeSymbol(symbolID, w, r); err != nil {
			logger.Warn("websocket session ended", zap.Error(err))
		}
	})
	wsSrv := &http.Server{Addr: cfgMgr.Get().Transport.WSAddr, Handler: mux}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("websocket server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sctx, cancel := shutdownCtx(ctx, cfgMgr)
			defer cancel()
			return wsSrv.Shutdown(sctx)
		},
	})
}

func registerAdminServer(lc fx.Lifecycle, router *adminhttp.Router, cfgMgr *config.Manager, logger *zap.Logger) {
	adminSrv := &http.Server{Addr: cfgMgr.Get().Transport.AdminAddr, Handler: router.Handler()}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("admin server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sctx, cancel := shutdownCtx(ctx, cfgMgr)
			defer cancel()
			return adminSrv.Shutdown(sctx)
		},
	})
}

func registerMetricsServer(lc fx.Lifecycle, reg *prometheus.Registry, cfgMgr *config.Manager, logger *zap.Logger) {
	cfg := cfgMgr.Get().Metrics
	if !cfg.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Addr, Handler: mux}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sctx, cancel := shutdownCtx(ctx, cfgMgr)
			defer cancel()
			return metricsSrv.Shutdown(sctx)
		},
	})
}

// parseSymbolFromPath extracts the trailing /stream/<symbol_id> segment.
func parseSymbolFromPath(path string) (uint32, error) {
	const prefix = "/stream/"
	if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) {
		return 0, fmt.Errorf("stream path must be /stream/<symbol_id>, got %q", path)
	}
	v, err := strconv.ParseUint(path[len(prefix):], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("stream path must be /stream/<symbol_id>: %w", err)
	}
	return uint32(v), nil
}

func shutdownCtx(parent context.Context, cfgMgr *config.Manager) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, cfgMgr.Get().Transport.ShutdownTimeout)
}
