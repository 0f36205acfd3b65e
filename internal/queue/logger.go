package asynqx

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Logger 把 asynq 内部日志转到 zerolog
type Logger struct {
	log zerolog.Logger
}

var _ asynq.Logger = Logger{}

// NewLogger asynq.Config.Logger 使用
func NewLogger(log zerolog.Logger) Logger {
	return Logger{log: log.With().Str("component", "asynq").Logger()}
}

func (l Logger) Debug(args ...any) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l Logger) Info(args ...any)  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l Logger) Warn(args ...any)  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l Logger) Error(args ...any) { l.log.Error().Msg(fmt.Sprint(args...)) }

// Fatal asynq 约定 Fatal 之后退出进程
func (l Logger) Fatal(args ...any) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
