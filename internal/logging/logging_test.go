package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	out := log.StandardLogger().Out
	level := log.GetLevel()
	formatter := log.StandardLogger().Formatter
	t.Cleanup(func() {
		log.SetOutput(out)
		log.SetLevel(level)
		log.SetFormatter(formatter)
	})
}

func TestInitSetsLevel(t *testing.T) {
	restoreLogger(t)

	require.NoError(t, Init("warn", "", "text"))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
}

func TestInitDefaultsToInfo(t *testing.T) {
	restoreLogger(t)

	require.NoError(t, Init("", "console", ""))
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestInitRejectsBadLevel(t *testing.T) {
	restoreLogger(t)

	err := Init("loud", "", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestInitRejectsBadFormat(t *testing.T) {
	restoreLogger(t)

	require.Error(t, Init("info", "", "xml"))
}

func TestOutputSelectsWriter(t *testing.T) {
	assert.Equal(t, os.Stderr, Output(""))
	assert.Equal(t, os.Stderr, Output("console"))

	path := filepath.Join(t.TempDir(), "hoist.log")
	w, ok := Output(path).(*lumberjack.Logger)
	require.True(t, ok, "file path should produce a rotating writer")
	assert.Equal(t, filepath.ToSlash(path), w.Filename)
	assert.True(t, w.Compress)
}

func TestComponentLoggerTagsEntries(t *testing.T) {
	restoreLogger(t)

	var buf bytes.Buffer
	require.NoError(t, Init("debug", "", "json"))
	log.SetOutput(&buf)

	L("fetcher").WithField(KeyVersion, "2.0.0").Info("downloading")

	out := buf.String()
	assert.Contains(t, out, `"component":"fetcher"`)
	assert.Contains(t, out, `"version":"2.0.0"`)
	assert.Contains(t, out, `"msg":"downloading"`)
}
