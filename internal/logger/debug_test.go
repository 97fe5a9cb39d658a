package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugfToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	SetLogPath(path)
	t.Cleanup(func() {
		SetLogPath("")
		SetDebugEnabled(false)
	})

	t.Run("disabled writes nothing", func(t *testing.T) {
		SetDebugEnabled(false)
		DebugfToFile("Test", "hidden %d", 1)
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("enabled appends lines", func(t *testing.T) {
		SetDebugEnabled(true)
		DebugfToFile("Test", "visible %d", 2)
		DebugToFile("Other", "second")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Context: Test | visible 2")
		assert.Contains(t, string(data), "Context: Other | second")
	})
}

func TestLogPathFromEnv(t *testing.T) {
	SetLogPath("")
	t.Setenv("CQLMAPPER_DEBUG_LOG_PATH", "/tmp/custom.log")
	assert.Equal(t, "/tmp/custom.log", LogPath())
}
