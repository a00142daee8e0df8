package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New("cart", Config{Level: "debug", Format: "json", Output: &buf})

	log.WithField("item_id", "ci_1").Info("added")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cart", line["component"])
	assert.Equal(t, "ci_1", line["item_id"])
	assert.Equal(t, "added", line["msg"])
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New("x", Config{Level: "loud", Output: &buf})

	log.Debug("hidden")
	assert.Zero(t, buf.Len())

	log.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New("http", Config{Format: "json", Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-42")
	log.WithContext(ctx).WithError(errors.New("boom")).Warn("failed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "boom", line["error"])
}

func TestNamed(t *testing.T) {
	var buf bytes.Buffer
	base := New("app", Config{Format: "json", Output: &buf})
	child := base.Named("store")

	assert.Equal(t, "store", child.Component())
	child.Info("hello")
	assert.Contains(t, buf.String(), `"component":"store"`)
}
