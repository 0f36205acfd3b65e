// Package bootstrap 组装 server 与 worker 共用的依赖。
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/analysis-hub/internal/config"
	"github.com/azhengyongqin/analysis-hub/internal/gateway"
	"github.com/azhengyongqin/analysis-hub/internal/repository"
	"github.com/azhengyongqin/analysis-hub/internal/retry"
	"github.com/azhengyongqin/analysis-hub/internal/storage/postgres"
	"github.com/azhengyongqin/analysis-hub/internal/storage/sqlite"
)

// Store 任务仓储及其底层连接
type Store struct {
	Repo repository.TaskRepository
	// SQL 健康检查与连接池指标使用
	SQL   *sql.DB
	close func() error
}

func (s *Store) Close() error {
	return s.close()
}

// OpenStore 按 DB_DRIVER 打开存储并完成建表
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	if cfg.DB.Driver == config.DBDriverSQLite {
		db, err := sqlite.Open(ctx, cfg.SQLite.Path, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err == nil {
			err = repository.AutoMigrate(db)
		}
		if err != nil {
			_ = sqlite.Close(db)
			return nil, fmt.Errorf("prepare sqlite: %w", err)
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("SQLite 已就绪")
		return &Store{Repo: repository.NewTaskRepo(db), SQL: sqlDB, close: sqlDB.Close}, nil
	}

	if err := migratePostgres(ctx, cfg, log); err != nil {
		return nil, err
	}
	db, err := postgres.Open(ctx, cfg.Postgres.DSN, postgres.Pool{
		MaxOpenConns:    int(cfg.DBPool.MaxConns),
		MaxIdleConns:    int(cfg.DBPool.MinConns),
		ConnMaxLifetime: cfg.DBPool.MaxConnLifetime,
		ConnMaxIdleTime: cfg.DBPool.MaxConnIdleTime,
	}, log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("dsn", postgres.Redact(cfg.Postgres.DSN)).Msg("PostgreSQL 已连接")
	return &Store{Repo: repository.NewTaskRepo(db.DB), SQL: db.SQL(), close: db.Close}, nil
}

// migratePostgres 启动时执行 migrations 目录下的 SQL
func migratePostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	db, err := postgres.OpenStdlib(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := postgres.ApplyMigrationsFromDir(ctx, db, cfg.DB.MigrationsDir, log)
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	log.Info().Int("files", n).Msg("数据库迁移完成")
	return nil
}

// GatewayConfig 由配置生成分析服务客户端配置
func GatewayConfig(a config.AnalysisConfig) gateway.Config {
	// EVENT_INFO_RETRY_DELAYS=exponential 时改用指数退避
	policy := retry.Exponential(a.EventInfoMaxAttempts, 100*time.Millisecond, 2*time.Second, 2)
	if len(a.EventInfoRetryDelays) > 0 {
		policy = retry.Policy{MaxAttempts: a.EventInfoMaxAttempts, Delays: a.EventInfoRetryDelays}
	}
	return gateway.Config{
		BaseURL:          a.BaseURL,
		HealthTimeout:    a.HealthTimeout,
		StatusTimeout:    a.StatusTimeout,
		SubmitTimeout:    a.SubmitTimeout,
		EventInfoTimeout: a.EventInfoTimeout,
		EventInfoRetry:   policy,
	}
}
