package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Raikerian/go-audio-captcha/internal/config"
)

func TestBuildLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		skipped zapcore.Level
	}{
		{level: "debug", enabled: zapcore.DebugLevel, skipped: zapcore.DebugLevel - 1},
		{level: "info", enabled: zapcore.InfoLevel, skipped: zapcore.DebugLevel},
		{level: "warn", enabled: zapcore.WarnLevel, skipped: zapcore.InfoLevel},
		{level: "error", enabled: zapcore.ErrorLevel, skipped: zapcore.WarnLevel},
		{level: "bogus", enabled: zapcore.InfoLevel, skipped: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := BuildLogger(config.LogConfig{Level: tt.level, Encoding: "json"})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.skipped))
		})
	}
}

func TestLoggerModule(t *testing.T) {
	cfg := config.Default()
	var logger *zap.Logger

	app := fxtest.New(t,
		fx.Supply(&cfg),
		LoggerModule,
		fx.Populate(&logger),
	)
	app.RequireStart()
	require.NotNil(t, logger)
	logger.Info("logger module started")
	app.RequireStop()
}
