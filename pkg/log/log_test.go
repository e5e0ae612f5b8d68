package log

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return &buf
}

func TestInfoEmitsFields(t *testing.T) {
	buf := captureOutput(t)

	GetLogger().Info("batch done", "offset", 4, "entities", 100)

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "batch done", event["message"])
	assert.Equal(t, float64(4), event["offset"])
	assert.Equal(t, float64(100), event["entities"])
}

func TestGetLoggerWithNameTagsComponent(t *testing.T) {
	buf := captureOutput(t)

	GetLoggerWithName("riskpipe.aggregate").Info("fit started")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "riskpipe.aggregate", event["component"])
}

func TestWithAddsPersistentFields(t *testing.T) {
	buf := captureOutput(t)

	logger := GetLogger().With("fold", 2)
	logger.Info("training")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, float64(2), event["fold"])
}

func TestDanglingKey(t *testing.T) {
	buf := captureOutput(t)

	GetLogger().Info("oops", "key")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "(MISSING)", event["key"])
}

func TestSetLevelSuppressesDebug(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("info")
	t.Cleanup(func() { SetLevel("info") })

	GetLogger().Debug("hidden")
	assert.Empty(t, buf.Bytes())

	SetLevel("debug")
	GetLogger().Debug("visible")
	assert.NotEmpty(t, buf.Bytes())
}
