package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "mint.log")

	l, err := New(&Config{Level: zapcore.InfoLevel, LogFile: path, MaxSize: 1, Console: &console})
	require.NoError(t, err)

	id := uuid.New()
	l.WithBatch(id).Info("Batch started")
	l.WithSignature(solana.Signature{1}.String()).Debug("hidden at info level")
	require.NoError(t, l.Close())

	assert.Contains(t, console.String(), "Batch started")
	assert.NotContains(t, console.String(), "hidden at info level")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "Batch started", entry["msg"])
	assert.Equal(t, id.String(), entry["batch_id"])
	assert.Equal(t, "INFO", entry["level"])
	assert.False(t, scanner.Scan())
}

func TestLoggerDevelopmentLevel(t *testing.T) {
	var console bytes.Buffer
	l, err := New(&Config{Development: true, Console: &console})
	require.NoError(t, err)

	end := l.TrackPerformance("state")
	end()
	require.NoError(t, l.Close())

	out := console.String()
	assert.Contains(t, out, "Starting operation")
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "correlation_id")
}

func TestLoggerLevelFiltersWarn(t *testing.T) {
	var console bytes.Buffer
	l, err := New(&Config{Level: zapcore.WarnLevel, Console: &console})
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("kept")
	require.NoError(t, l.Close())

	assert.NotContains(t, console.String(), "dropped")
	assert.Contains(t, console.String(), "kept")
}
