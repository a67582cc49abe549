package cli

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"shgbook/internal/config"
	"shgbook/internal/log"
)

func TestSetupLoggerHonoursLevel(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"})
	assert.Equal(t, log.ComponentApp, logger.Component())
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	logger = SetupLogger(nil)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
