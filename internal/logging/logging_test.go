package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel logrus.Level
	}{
		{name: "debug level", level: "debug", wantLevel: logrus.DebugLevel},
		{name: "info level", level: "info", wantLevel: logrus.InfoLevel},
		{name: "warn level", level: "warn", wantLevel: logrus.WarnLevel},
		{name: "error level", level: "error", wantLevel: logrus.ErrorLevel},
		{name: "mixed case", level: "DeBuG", wantLevel: logrus.DebugLevel},
		{name: "invalid defaults to info", level: "bogus", wantLevel: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := Initialize(tt.level)
			require.NotNil(t, logger)
			assert.Equal(t, tt.wantLevel, logger.GetLevel())
		})
	}
}

func TestSetupFileLogging(t *testing.T) {
	logger := Initialize("info")

	logFile := filepath.Join(t.TempDir(), "logs", "console.log")
	err := SetupFileLogging(logger, logFile)
	require.NoError(t, err)

	logger.Info("test message")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test message")
}

func TestSetupFileLogging_EmptyPath(t *testing.T) {
	logger := Initialize("info")
	assert.NoError(t, SetupFileLogging(logger, ""))
}

func TestNewComponentLogger(t *testing.T) {
	logger := Initialize("info")
	entry := NewComponentLogger(logger, "client")
	require.NotNil(t, entry)
	assert.Equal(t, "client", entry.Data["component"])
}
