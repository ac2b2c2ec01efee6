package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "cutoutkit"

// Logger 全局日志，InitLogger 之前为 no-op
var Logger = zap.NewNop()

// newLoggerConfig 按 gin 的运行模式选择日志配置：
//
//	release → JSON，Info 级别，高频日志采样
//	test    → 只输出 Warn 以上，便于测试时阅读
//	其他    → 开发模式，彩色级别
func newLoggerConfig(mode string) zap.Config {
	switch mode {
	case "release":
		config := zap.NewProductionConfig()
		config.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
		config.EncoderConfig.TimeKey = "time"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return config
	case "test":
		config := zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		config.DisableStacktrace = true
		return config
	default:
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return config
	}
}

func InitLogger(mode string) error {
	logger, err := newLoggerConfig(mode).Build(zap.AddCaller())
	if err != nil {
		return err
	}

	Logger = logger.Named(serviceName).With(zap.String("mode", mode))
	return nil
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
