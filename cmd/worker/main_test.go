package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"captions/internal/config"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestRunUnreachableBroker(t *testing.T) {
	workerAddr := freeAddr(t)

	cfg := config.Default()
	cfg.WorkerAddr = workerAddr
	cfg.WorkerTmpDir = t.TempDir()
	cfg.RabbitMQURL = "amqp://guest:guest@" + freeAddr(t) + "/"
	cfg.S3 = config.S3Config{Host: "127.0.0.1", Port: "9000", Bucket: "media", AccessKey: "a", SecretKey: "s"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil || !strings.Contains(err.Error(), "rabbitmq") {
		t.Fatalf("run() = %v, want rabbitmq connection error", err)
	}

	l, err := net.Listen("tcp", workerAddr)
	if err != nil {
		t.Fatalf("worker address still in use after failed start: %v", err)
	}
	l.Close()
}
