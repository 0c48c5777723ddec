package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"stockcast/internal/config"
	catalogapp "stockcast/internal/modules/catalog/application"
	catalogdomain "stockcast/internal/modules/catalog/domain"
	"stockcast/internal/modules/catalog/infrastructure/memory"
	catalogpg "stockcast/internal/modules/catalog/infrastructure/postgres"
	catalogtransport "stockcast/internal/modules/catalog/interface"
	"stockcast/internal/modules/catalog/ports"
	streaminfra "stockcast/internal/modules/stream/infrastructure"
	streamtransport "stockcast/internal/modules/stream/interface"
	"stockcast/internal/platform/bus"
	"stockcast/internal/platform/db"
	"stockcast/internal/shared/auth"
	"stockcast/internal/shared/logging"
)

func main() {
	// Load .env so local runs honour configuration tweaks.
	if err := godotenv.Overload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := buildRepository(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	eventBus, busCleanup := buildBus(cfg)
	defer busCleanup()

	notifier := catalogapp.NewNotifier(repo, eventBus)
	service := catalogapp.NewService(repo, notifier, catalogdomain.NewKeywordClassifier())
	service.LowStockThreshold = cfg.Catalog.LowStockThreshold

	registry := streaminfra.NewRegistry(cfg.Stream.PingInterval, cfg.Stream.IdleTimeout)
	dispatcher := streaminfra.NewDispatcher(registry)
	if err := dispatcher.Start(ctx, eventBus, bus.TopicCatalogEvents); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	var validator auth.TokenValidator
	if cfg.Security.JWTSecret != "" {
		validator = auth.NewJWTValidator(cfg.Security.JWTSecret)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/stream", streamtransport.NewStreamHandler(registry, validator))
	e.GET("/ws/notifications", streamtransport.NewNotificationsWSHandler(registry, validator))
	catalogtransport.NewProductHandler(service, validator).Register(e)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "subscribers": registry.Len()})
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server starting", slog.String("addr", cfg.Server.Addr))
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildRepository(cfg *config.Config) (ports.Repository, func(), error) {
	if cfg.Postgres.DSN == "" {
		slog.Warn("no postgres dsn configured, using in-memory store")
		return memory.NewStore(), func() {}, nil
	}

	pg, err := db.Connect(cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := catalogpg.Migrate(pg.DB); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("migrate catalog schema: %w", err)
	}
	slog.Info("postgres store ready")
	return catalogpg.NewRepository(pg.DB), func() { _ = pg.Close() }, nil
}

func buildBus(cfg *config.Config) (bus.Bus, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Info("notifications on in-process bus")
		return bus.NewInProc(), func() {}
	}

	kafkaBus := bus.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	slog.Info("notifications on kafka bus",
		slog.Any("brokers", cfg.Kafka.Brokers),
		slog.String("group", cfg.Kafka.GroupID))
	return kafkaBus, func() { _ = kafkaBus.Close() }
}
