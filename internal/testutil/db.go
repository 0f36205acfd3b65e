package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/azhengyongqin/analysis-hub/internal/repository"
	"github.com/azhengyongqin/analysis-hub/internal/storage/sqlite"
)

// SetupTestDB 创建测试数据库（临时目录下的 SQLite 文件），测试结束自动关闭
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "analysis_hub_test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}

	// 自动迁移所有模型
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if err := sqlite.Close(db); err != nil {
			t.Logf("Warning: Failed to close test database: %v", err)
		}
	})
	return db
}
