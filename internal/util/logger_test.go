package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerConfigCarriesServiceField(t *testing.T) {
	cfg := loggerConfig("renthub", "production")
	assert.Equal(t, "renthub", cfg.InitialFields["service"])
	assert.Equal(t, "json", cfg.Encoding)

	cfg = loggerConfig("renthub", "development")
	assert.Equal(t, "renthub", cfg.InitialFields["service"])
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
}

func TestInitLoggerBuilds(t *testing.T) {
	require.NoError(t, InitLogger("renthub", "production"))
	require.NotNil(t, GetLogger())
}
