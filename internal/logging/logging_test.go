package logging

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFormatter_Format(t *testing.T) {
	entry := &log.Entry{
		Time:    time.Date(2024, 3, 7, 10, 15, 0, 0, time.Local),
		Level:   log.WarnLevel,
		Message: "[Resolver] store unavailable\n",
		Data:    log.Fields{"keyword": "hi", "chat": "oc_1"},
	}

	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2024-03-07 10:15:00] [warn ] [Resolver] store unavailable | chat=oc_1, keyword=hi\n", string(out))
}

func TestLogFormatter_Caller(t *testing.T) {
	entry := &log.Entry{
		Time:    time.Date(2024, 3, 7, 10, 15, 0, 0, time.Local),
		Level:   log.InfoLevel,
		Message: "hello",
		Caller:  &runtime.Frame{File: "/src/internal/service/message.go", Line: 42},
	}

	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2024-03-07 10:15:00] [info ] [message.go:42] hello\n", string(out))
}

func TestSetup_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	require.NoError(t, Setup(Options{Level: "info", File: path}))
	defer Close()

	log.Debug("hidden")
	log.Info("[Test] visible")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[Test] visible"))
	assert.False(t, strings.Contains(string(data), "hidden"))
}

func TestSetup_InvalidLevel(t *testing.T) {
	err := Setup(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestSetup_DebugOverridesLevel(t *testing.T) {
	require.NoError(t, Setup(Options{Level: "error", Debug: true}))
	defer Close()
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	require.NoError(t, Setup(Options{}))
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
