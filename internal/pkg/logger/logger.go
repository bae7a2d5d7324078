package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 创建一个新的 zap logger实例
// level: 日志级别 (DEBUG, INFO, WARNING, ERROR, CRITICAL), 大小写不敏感
// 返回配置好的 logger 和可能的错误
func New(level string) (*zap.Logger, error) {
	// 使用生产配置（JSON编码）
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(levelFromName(level))

	// 配置输出到 stdout
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	// 自定义时间格式
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	// 禁用 caller 信息（文件名和行号）
	config.DisableCaller = true

	// 创建 logger
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// levelFromName maps the gateway's documented log levels
// (DEBUG/INFO/WARNING/ERROR/CRITICAL), case-insensitively, onto zap's
// level scale. CRITICAL has no direct zap equivalent and is mapped to
// FatalLevel purely as a severity floor; it does not make logger.New's
// output call os.Exit.
func levelFromName(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zap.DebugLevel
	case "INFO":
		return zap.InfoLevel
	case "WARNING", "WARN":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	case "CRITICAL":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}