package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shareit/internal/api"
	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/logging"
	"shareit/internal/metrics"
	"shareit/internal/repository"
	"shareit/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db, err := initStore(cfg, &logger)
	if err != nil {
		return err
	}
	defer store.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	quota := initQuota(cfg, redisClient, &logger)

	bus := events.NewEventBus()
	amqpConn := initEvents(ctx, cfg, bus, &logger)
	if amqpConn != nil {
		defer amqpConn.Close()
	}

	services := newServices(store, bus, &logger)

	if db != nil {
		go database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup")).Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, services.Bookings, cfg.Booking.DefaultPageSize, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	var httpServer *api.HTTPServer
	if cfg.API.HTTP.Enabled {
		httpServer = api.NewHTTPServer(cfg, services, quota, &logger)
	}

	if grpcServer == nil && httpServer == nil {
		return errors.New("both http and grpc transports are disabled")
	}

	return startServers(ctx, grpcServer, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initStore opens the configured storage. db is nil unless the store is SQLite.
func initStore(cfg *config.Config, logger *zerolog.Logger) (domain.Store, *database.DB, error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil, nil
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, nil, err
	}
	return db, db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initQuota(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.QuotaRepository {
	if !cfg.Booking.WriteQuota.Enabled {
		return nil
	}

	memory := repository.NewMemoryQuotaRepository()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverQuotaRepository(
		repository.NewRedisQuotaRepository(redisClient),
		memory,
		logging.Component(logger, "quota"),
	)
}

// initEvents forwards bus events to RabbitMQ when an AMQP URL is configured.
func initEvents(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *amqp.Connection {
	if cfg.Events.AMQPURL == "" {
		return nil
	}

	conn, ch, err := events.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp connection failed, booking events stay in-process")
		return nil
	}

	forwarder := events.NewForwarder(ch, cfg.Events, logging.Component(logger, "events"))
	forwarder.Attach(bus)
	go forwarder.Run(ctx)

	logger.Info().Str("exchange", cfg.Events.Exchange).Msg("booking events forwarded to amqp")
	return conn
}

func newServices(store domain.Store, bus *events.EventBus, logger *zerolog.Logger) api.Services {
	clock := domain.SystemClock{}
	bookings := service.NewBookingService(store, store, store, bus, clock, logging.Component(logger, "bookings"))

	return api.Services{
		Users:    service.NewUserService(store, logging.Component(logger, "users")),
		Items:    service.NewItemService(store, clock, logging.Component(logger, "items")),
		Comments: service.NewCommentService(store, store, store, bookings, clock, logging.Component(logger, "comments")),
		Requests: service.NewRequestService(store, store, store, clock, logging.Component(logger, "requests")),
		Bookings: bookings,
		Clock:    clock,
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	logger *zerolog.Logger,
) error {
	event := logger.Info()
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
		event = event.Str("grpc_addr", grpcServer.Addr())
	}

	if httpServer != nil {
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
		event = event.Str("http_addr", httpServer.Addr())
	}

	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
