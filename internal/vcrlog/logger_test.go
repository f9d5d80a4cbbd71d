package vcrlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInfoLevelDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Debug("should not appear")
	logger.Info("episode matched", "method", "/pkg.Svc/Get")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	require.Contains(t, out, "episode matched")

	var rec map[string]any
	line := strings.TrimSpace(strings.Split(out, "\n")[0])
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "episode matched", rec["msg"])
	assert.Equal(t, "/pkg.Svc/Get", rec["method"])
	assert.NotContains(t, rec, "source")
}

func TestNewDebugLevelIncludesSource(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	logger.Debug("matcher evaluated", "matcher", "method")

	var rec map[string]any
	line := strings.TrimSpace(buf.String())
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "matcher evaluated", rec["msg"])
	assert.Contains(t, rec, "source")
}

func TestNopDiscardsEverythingAndNeverPanics(t *testing.T) {
	logger := Nop()

	assert.NotPanics(t, func() {
		logger.Debug("debug")
		logger.Info("info")
		logger.Warn("warn")
		logger.Error("error")
	})
}
