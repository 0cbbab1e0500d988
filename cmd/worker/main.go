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

	"captions/internal/config"
	workerhttp "captions/internal/controller/http/worker"
	"captions/internal/domain/usecase"
	"captions/internal/repository/rabbitmq"
	s3Repo "captions/internal/repository/s3"
	"captions/pkg/client/captions"
	s3ClientGo "captions/pkg/client/s3"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
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

	api := captions.NewClient(cfg.APIBaseURL, &http.Client{Timeout: 15 * time.Second})
	process := usecase.NewProcessUseCase(api, s3Repo.NewS3Repo(s3Client), nil, cfg.WorkerTmpDir, logger)

	// The broker is reached before anything is served, so a bad
	// RABBITMQ_URL fails startup without a listener left behind.
	var consumer *rabbitmq.JobConsumer
	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		consumer, err = rabbitmq.NewJobConsumer(conn, rabbitmq.DispatchExchange, rabbitmq.DispatchRoutingKey, rabbitmq.DispatchQueue, process, logger)
		if err != nil {
			return fmt.Errorf("set up consumer: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	handler := workerhttp.NewHandler(gctx, process, logger)
	srv := &http.Server{
		Addr:              cfg.WorkerAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("worker listening", slog.String("addr", cfg.WorkerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		handler.Wait()
		return err
	})

	if consumer != nil {
		g.Go(func() error {
			logger.Info("consuming dispatches", slog.String("queue", rabbitmq.DispatchQueue))
			return consumer.Start(gctx)
		})
	}

	return g.Wait()
}
