package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Development: true, Level: "debug"})
	require.NoError(t, err)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	require.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewProductionLoggerDefaultsToInfo(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{})
	require.NoError(t, err)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	require.False(t, logger.Core().Enabled(zap.DebugLevel))
	require.True(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestNewEncodings(t *testing.T) {
	t.Parallel()

	for _, enc := range []string{EncodingJSON, EncodingConsole} {
		logger, err := New(Config{Development: true, Encoding: enc, Level: "warn"})
		require.NoError(t, err, enc)
		require.False(t, logger.Core().Enabled(zap.InfoLevel), enc)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	_, err = New(Config{Encoding: "xml"})
	require.Error(t, err)
}
