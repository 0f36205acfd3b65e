package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/azhengyongqin/analysis-hub/internal/storage"
)

// DB GORM 连接及其底层 sql.DB
type DB struct {
	*gorm.DB
	sqlDB *sql.DB
}

// Pool 连接池参数；零值字段使用默认值
type Pool struct {
	MaxOpenConns    int           // 默认 20
	MaxIdleConns    int           // 默认 5
	ConnMaxLifetime time.Duration // 默认 30m
	ConnMaxIdleTime time.Duration // 默认 5m
}

func (p Pool) withDefaults() Pool {
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = 20
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = 5
	}
	// 空闲连接数不超过上限
	if p.MaxIdleConns > p.MaxOpenConns {
		p.MaxIdleConns = p.MaxOpenConns
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = 30 * time.Minute
	}
	if p.ConnMaxIdleTime <= 0 {
		p.ConnMaxIdleTime = 5 * time.Minute
	}
	return p
}

// Open 打开任务库连接并 PING
func Open(ctx context.Context, dsn string, pool Pool, log zerolog.Logger) (*DB, error) {
	if err := ValidateDSN(dsn); err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_DSN: %w", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), storage.GormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("open postgres %s: %w", Redact(dsn), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	pool = pool.withDefaults()
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", Redact(dsn), err)
	}
	return &DB{DB: db, sqlDB: sqlDB}, nil
}

// SQL 底层 sql.DB，给健康检查和连接池指标用
func (d *DB) SQL() *sql.DB {
	return d.sqlDB
}

func (d *DB) Close() error {
	return d.sqlDB.Close()
}
