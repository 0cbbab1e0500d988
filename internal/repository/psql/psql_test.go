package psql

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"captions/internal/domain/usecase"
	"captions/internal/repository/storetest"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ usecase.JobStore = (*GormJobRepo)(nil)

var dbSeq atomic.Int64

func newTestRepo(t *testing.T) usecase.JobStore {
	t.Helper()

	dsn := fmt.Sprintf("file:captions%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes
	// transactions the way row locks do on Postgres.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	repo := NewGormJobRepo(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func TestGormJobRepoContract(t *testing.T) {
	storetest.Run(t, newTestRepo)
}
