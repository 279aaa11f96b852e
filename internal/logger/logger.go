package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stormguard/internal/config"
)

// New builds a zap logger. Encoding "json" selects the production preset,
// anything else the development console preset.
func New(cfg config.LoggerConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Encoding == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Development = cfg.Development

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.DisableCaller = cfg.DisableCaller
	zapCfg.DisableStacktrace = cfg.DisableStacktrace
	// keep stdout free for command output
	zapCfg.OutputPaths = []string{"stderr"}

	return zapCfg.Build()
}
