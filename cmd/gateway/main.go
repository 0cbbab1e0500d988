package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"captions/internal/config"
	v1 "captions/internal/controller/http/v1"
	"captions/internal/domain/usecase"
	"captions/internal/observability"
	"captions/internal/repository/memory"
	psqlRepo "captions/internal/repository/psql"
	"captions/internal/repository/rabbitmq"
	redisRepo "captions/internal/repository/redis"
	s3Repo "captions/internal/repository/s3"
	"captions/internal/repository/worker"
	"captions/pkg/client/psql"
	redisGo "captions/pkg/client/redis"
	s3ClientGo "captions/pkg/client/s3"
	"captions/pkg/middleware"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.ValidateGateway(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gateway stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, "captions-gateway", cfg.OTelExporter, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = redisGo.NewRedisClient(ctx, redisGo.Config{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	store, err := newStore(ctx, cfg, redisClient)
	if err != nil {
		return err
	}

	dispatcher, closeDispatcher, err := newDispatcher(cfg)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	jobs := usecase.NewJobUseCase(store, logger)
	dispatch := usecase.NewDispatchUseCase(jobs, dispatcher, cfg.DispatchTimeout, logger)
	dispatch.RecordFailures = cfg.DispatchRecordFailures

	routerCfg := v1.RouterConfig{
		Jobs:     jobs,
		Dispatch: dispatch,
		Logger:   logger,
	}

	if cfg.S3.Enabled() {
		s3Client, err := s3ClientGo.NewS3Client(s3ClientGo.Config{
			Endpoint:  cfg.S3.Endpoint(),
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return err
		}
		routerCfg.Uploads = usecase.NewUploadUseCase(jobs, s3Repo.NewS3Repo(s3Client), cfg.UploadURLTTL)
	} else {
		logger.Warn("S3 not configured, upload presign disabled")
	}

	if redisClient != nil && cfg.RateLimit > 0 {
		routerCfg.Middleware = append(routerCfg.Middleware, middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RedisClient: redisClient,
			Limit:       cfg.RateLimit,
			Window:      time.Second,
			KeyPrefix:   "rl:",
			Logger:      logger,
		}))
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           v1.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("store", cfg.StoreBackend),
			slog.String("dispatch", cfg.DispatchTransport),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg config.Config, redisClient *redis.Client) (usecase.JobStore, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := psql.NewPostgresDB(psql.Config{
			Host:     cfg.PSQL.Host,
			Port:     cfg.PSQL.Port,
			User:     cfg.PSQL.User,
			Password: cfg.PSQL.Password,
			DBName:   cfg.PSQL.DBName,
			SslMode:  cfg.PSQL.SSLMode,
		})
		if err != nil {
			return nil, err
		}
		repo := psqlRepo.NewGormJobRepo(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendRedis:
		return redisRepo.NewRedisRepo(redisClient), nil
	default:
		return memory.NewMemoryRepo(), nil
	}
}

func newDispatcher(cfg config.Config) (usecase.Dispatcher, func(), error) {
	if cfg.DispatchTransport != config.TransportAMQP {
		return worker.NewHTTPDispatcher(cfg.WorkerURL, &http.Client{}), func() {}, nil
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := rabbitmq.NewRabbitPublisher(conn, rabbitmq.DispatchExchange, rabbitmq.DispatchRoutingKey)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return publisher, func() {
		publisher.Close()
		conn.Close()
	}, nil
}
