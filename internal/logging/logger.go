// Package logging 构造带统一配置的 zap.Logger。
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var levels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

var encodings = map[string]string{
	"structured": "json",
	"console":    "console",
}

// NewLogger 按 level/format 构造 logger。
//
// 日志固定写 stderr：stdout 只用于控制台摘要或 JSON 报告。
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, ok := levels[level]
	if !ok {
		return nil, fmt.Errorf("不支持的日志级别：%s", level)
	}
	enc, ok := encodings[format]
	if !ok {
		return nil, fmt.Errorf("不支持的日志格式：%s", format)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = enc
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if enc == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
		cfg.DisableCaller = true
	}
	return cfg.Build()
}
