package logger_test

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	prevFlags := log.Flags()
	log.SetFlags(0)
	prevLevel := logger.GetLogLevel()
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
		log.SetFlags(prevFlags)
		logger.SetLogLevel(prevLevel.String())
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug": logger.LevelDebug,
		"TRACE": logger.LevelDebug,
		"Info":  logger.LevelInfo,
		"":      logger.LevelInfo,
		"warn":  logger.LevelWarn,
		"ERROR": logger.LevelError,
	}
	for in, want := range cases {
		got, err := logger.ParseLevel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := logger.ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t)

	logger.SetLogLevel("WARN")
	logger.Debugf("hidden %d", 1)
	logger.Infof("hidden %d", 2)
	logger.Warnf("shown %d", 3)
	logger.Errorf("shown %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 3")
	assert.Contains(t, out, "[ERROR] shown 4")
}

func TestSetLogLevel_UnknownFallsBackToInfo(t *testing.T) {
	captureLogs(t)

	logger.SetLogLevel("verbose")
	assert.Equal(t, logger.LevelInfo, logger.GetLogLevel())
	assert.True(t, logger.Enabled(logger.LevelInfo))
	assert.False(t, logger.Enabled(logger.LevelDebug))
}
