// Package storage 放 postgres / sqlite 共用的 GORM 设置。
package storage

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SlowQueryThreshold 超过即按 warn 记录
const SlowQueryThreshold = 500 * time.Millisecond

type zerologWriter struct {
	log zerolog.Logger
}

func (w zerologWriter) Printf(format string, args ...any) {
	w.log.Warn().Msgf(format, args...)
}

// GormConfig 慢查询和 SQL 错误写入 zerolog；唯一约束冲突转成 gorm.ErrDuplicatedKey
func GormConfig(log zerolog.Logger) *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(zerologWriter{log: log.With().Str("component", "gorm").Logger()}, gormlogger.Config{
			SlowThreshold:             SlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		TranslateError: true,
	}
}
