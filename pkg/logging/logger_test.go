package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "control.log")
	l := New(Config{Level: LevelInfo, LogFile: logFile, Service: "simcore"})
	l.Info("starting up", "port", 8080)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "starting up")
	assert.Contains(t, string(data), "simcore")
}

func TestDefault_DoesNotPanic(t *testing.T) {
	l := Default()
	l.Info("hello")
	require.NoError(t, l.Close())
}
