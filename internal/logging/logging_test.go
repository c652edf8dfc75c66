package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		mu.Lock()
		base = newBase()
		mu.Unlock()
	})
}

func records(t *testing.T, file string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestConfigureWritesJSONFile(t *testing.T) {
	reset(t)
	file := filepath.Join(t.TempDir(), "logs", "ev.log")
	closer, err := Configure("info", file)
	require.NoError(t, err)
	defer closer.Close()

	NewLogger("grove-voice.test").WithField("name", "demo").Info("Namespace created")
	NewLogger("grove-voice.test").Debug("below level")

	recs := records(t, file)
	require.Len(t, recs, 1)
	assert.Equal(t, "Namespace created", recs[0]["msg"])
	assert.Equal(t, "grove-voice.test", recs[0]["component"])
	assert.Equal(t, "demo", recs[0]["name"])
}

func TestSilenceKeepsLogFile(t *testing.T) {
	reset(t)
	Silence()
	assert.Equal(t, io.Discard, Base().Out)

	file := filepath.Join(t.TempDir(), "ev.log")
	closer, err := Configure("debug", file)
	require.NoError(t, err)
	defer closer.Close()
	Silence()
	assert.NotEqual(t, io.Discard, Base().Out)
	assert.Equal(t, logrus.DebugLevel, Base().GetLevel())
}

func TestConfigureRejectsBadLevel(t *testing.T) {
	_, err := Configure("chatty", "")
	assert.ErrorContains(t, err, "parse log level")
}
