package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/blockbase/internal/api"
	"github.com/annel0/blockbase/internal/auth"
	"github.com/annel0/blockbase/internal/cache"
	"github.com/annel0/blockbase/internal/config"
	"github.com/annel0/blockbase/internal/eventbus"
	"github.com/annel0/blockbase/internal/item"
	"github.com/annel0/blockbase/internal/logging"
	"github.com/annel0/blockbase/internal/observability"
	"github.com/annel0/blockbase/internal/storage"
	"github.com/annel0/blockbase/internal/world"
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/annel0/blockbase/internal/world/block/implementations"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию $BLOCKBASE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфига: %v", err)
	}

	// Выход только здесь: отложенные Close и sentry.Flush в run успевают отработать
	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger, err := logging.InitDefaultLogger(cfg.Logging)
	if err != nil {
		log.Printf("❌ Ошибка инициализации логирования: %v", err)
		return err
	}
	defer logging.CloseDefaultLogger()
	logs := logging.NewLoggerManager(logger)

	// fail логирует фатальную ошибку старта и отправляет её в Sentry
	fail := func(msg string, err error) error {
		logger.Error("❌ %s: %v", msg, err)
		sentry.CaptureException(err)
		return fmt.Errorf("%s: %w", msg, err)
	}

	logger.Info("🧱 Запуск blockbase (backend=%s, capacity=%d)", cfg.Storage.Backend, cfg.Registry.Capacity)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === OBSERVABILITY ===
	shutdownTelemetry := observability.ShutdownFunc(observability.Noop)
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err = observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, logs.Get("telemetry"))
		if err != nil {
			logger.Warn("OpenTelemetry не инициализирован: %v", err)
			shutdownTelemetry = observability.Noop
		}
	}

	if dsn := cfg.Sentry.GetDSN(); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			logger.Warn("Sentry не инициализирован: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === ЖУРНАЛ СОБЫТИЙ ===
	events, err := openEvents(cfg.Events)
	if err != nil {
		logger.Warn("Журнал событий недоступен: %v", err)
	}
	if events != nil {
		defer events.Close()
		exporter := eventbus.NewMetricsExporter(events, metrics)
		exporter.Start(ctx)
		if cfg.Events.LogEvents {
			if _, err := eventbus.StartLoggingListener(ctx, events, logs.Get("events")); err != nil {
				logger.Warn("Логирование событий не подключено: %v", err)
			}
		}
	}

	// === ХРАНИЛИЩЕ И МИР ===
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fail("Ошибка открытия хранилища", err)
	}

	names := item.NewNameTable()
	registry := block.NewRegistry(cfg.Registry.Capacity,
		block.WithItemNamer(names),
		block.WithRegistryLogger(logs.Get("registry")),
	)
	if err := implementations.RegisterAll(registry); err != nil {
		return fail("Ошибка регистрации поведений", err)
	}
	registry.Seal()
	for _, d := range registry.Descriptors() {
		logger.Debug("Вариант %s", d)
	}

	instances := cache.NewInstanceCache(block.NewResolver(registry), logs.Get("instances"))

	var invalidator cache.CacheInvalidator
	if cfg.Cache.Enabled {
		nats, err := cache.NewNATSInvalidator(&cfg.Cache.NATS, cfg.Cache.NodeID, logs.Get("invalidator"))
		if err != nil {
			logger.Warn("NATS недоступен, инвалидация только локальная: %v", err)
		} else {
			invalidator = nats
			defer nats.Close()
		}
	}

	nodeID := cfg.Cache.NodeID
	if n, ok := invalidator.(*cache.NATSInvalidator); ok {
		nodeID = n.NodeID()
	}
	w := world.New(world.Options{
		Store:       store,
		Instances:   instances,
		Invalidator: invalidator,
		Events:      events,
		Source:      nodeID,
		Logger:      logs.Get("world"),
	})
	defer func() {
		if err := w.Close(); err != nil {
			logger.Error("Ошибка закрытия хранилища: %v", err)
		}
	}()

	loaded, err := w.Load(ctx)
	if err != nil {
		return fail("Ошибка загрузки мира", err)
	}
	logger.Info("🌍 Загружено блоков: %d", loaded)

	if invalidator != nil {
		if err := invalidator.SubscribeInvalidations(ctx, w.HandleInvalidation); err != nil {
			logger.Warn("Подписка на инвалидации не удалась: %v", err)
		}
	}

	if cfg.Seed.Enabled && loaded == 0 {
		r := cfg.Seed.Radius
		gen := world.NewGenerator(cfg.Seed.Seed, implementations.SeedLayers())
		n, err := gen.Populate(ctx, w, cube.Pos{-r, cfg.Seed.Y, -r}, cube.Pos{r, cfg.Seed.Y, r})
		if err != nil {
			logger.Error("Ошибка генерации мира: %v", err)
		} else {
			logger.Info("🌱 Сгенерировано блоков: %d (seed=%d)", n, cfg.Seed.Seed)
		}
	}

	// === ДИСПЕТЧЕР ===
	dispatcher := block.NewDispatcher(block.DispatcherConfig{
		Registry:      registry,
		Source:        instances,
		Default:       block.NewDefaultBehavior(cfg.Registry.Default),
		Logger:        logs.Get("dispatcher"),
		Metrics:       block.NewMetrics(metrics),
		FailureWindow: cfg.FailureWindow,
	})

	// === ADMIN API ===
	tokens, err := auth.NewTokenManager(cfg.Admin.GetJWTSecret(), 0)
	if err != nil {
		return fail("Ошибка настройки JWT", err)
	}
	if cfg.Admin.GetJWTSecret() == "" {
		// Секрет случайный, выдаём токен оператору при старте
		token, err := tokens.Generate("bootstrap", true)
		if err == nil {
			logger.Info("🔐 Секрет JWT не задан, токен на эту сессию: %s", token)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	server, err := api.NewServer(api.Config{
		Port:       cfg.Admin.GetAdminPort(),
		Dispatcher: dispatcher,
		World:      w,
		Names:      names,
		Instances:  instances,
		Tokens:     tokens,
		Logger:     logs.Get("api"),
		Metrics:    metrics,
		Tracing:    cfg.Telemetry.Enabled,
	})
	if err != nil {
		return fail("Ошибка создания admin API", err)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	logger.Info("✅ blockbase запущен")
	logger.Info("   ❤️  Health check: http://localhost:%d/health", cfg.Admin.GetAdminPort())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("📡 Получен сигнал, завершение работы...")
	case err := <-serverErr:
		if err != nil {
			runErr = fail("Admin API остановился", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("❌ Ошибка остановки admin API: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn("Ошибка остановки OpenTelemetry: %v", err)
	}

	logger.Info("👋 blockbase остановлен")
	return runErr
}

// openEvents создаёт шину журнала по конфигу; nil - журнал выключен
func openEvents(cfg config.EventsConfig) (eventbus.EventBus, error) {
	switch cfg.Backend {
	case "memory":
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	case "jetstream":
		bus, err := eventbus.NewJetStreamBus(cfg.NATSURL, cfg.Stream, cfg.Retention)
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, nil
	}
}
