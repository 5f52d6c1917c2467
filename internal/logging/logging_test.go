package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	require.Equal(t, logrus.DebugLevel, Level("debug"))
	require.Equal(t, logrus.WarnLevel, Level("warning"))
	require.Equal(t, logrus.PanicLevel, Level("silent"))
	require.Equal(t, logrus.InfoLevel, Level(""))
	require.Equal(t, logrus.InfoLevel, Level("chatty"))
}

func TestNewWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", &buf)
	l.WithFields(logrus.Fields{"item_id": "6b", "intent": "update_status"}).Info("transition")
	l.Debug("hidden")

	out := buf.String()
	require.Contains(t, out, "item_id=6b")
	require.Contains(t, out, "intent=update_status")
	require.False(t, strings.Contains(out, "hidden"))
}
