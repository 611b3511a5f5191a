package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger: production encoding in production, development otherwise,
// at the given level ("debug", "info", "warn", "error").
func New(environment, level string) (*zap.Logger, error) {
	var zcfg zap.Config
	if environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return zcfg.Build()
}
