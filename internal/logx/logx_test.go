package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOutput(&buf, "debug", "json")

	log.WithField("symbol", "TCS").Debug("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "hello", entry["msg"])
	require.Equal(t, "TCS", entry["symbol"])
	require.Equal(t, "debug", entry["level"])
}

func TestNewWithOutput_BadLevelIsInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOutput(&buf, "loud", "text")

	require.Equal(t, logrus.InfoLevel, log.GetLevel())
	log.Debug("dropped")
	require.Zero(t, buf.Len())
	log.Info("kept")
	require.Contains(t, buf.String(), "msg=kept")
}
