package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		development bool
		level       string
		wantDebug   bool
	}{
		{name: "development default", development: true, wantDebug: true},
		{name: "production default", development: false, wantDebug: false},
		{name: "development raised", development: true, level: "warn", wantDebug: false},
		{name: "production lowered", development: false, level: "debug", wantDebug: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := New(tt.development, tt.level)
			require.NoError(t, err)
			require.NotNil(t, logger)
			defer logger.Sync() //nolint:errcheck // best-effort flush

			require.Equal(t, tt.wantDebug, logger.Core().Enabled(zapcore.DebugLevel))
			logger.Info("logger ready")
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(false, "chatty")
	require.ErrorContains(t, err, `parse log level "chatty"`)
}
