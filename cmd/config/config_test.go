package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-voice/pkg/api"
)

func withConfigFile(t *testing.T, content string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	cfgFile = p
	t.Cleanup(func() {
		cfgFile = ""
		APIOverride = ""
		viper.Reset()
	})
}

func TestLoadDefaults(t *testing.T) {
	withConfigFile(t, "")
	InitConfig()

	s, err := Load()
	require.NoError(t, err)
	def := api.DefaultConfig()
	assert.Equal(t, def.BaseURL, s.API.BaseURL)
	assert.Equal(t, def.RetryMax, s.API.RetryMax)
	assert.Equal(t, 5*time.Second, s.PollInterval)
	assert.Equal(t, "warn", s.Log.Level)
	assert.NotEmpty(t, s.Audio.RecordCommand)
	assert.NotEmpty(t, s.ConfigFile)
}

func TestLoadFileEnvAndFlagPrecedence(t *testing.T) {
	withConfigFile(t, `
api:
  base_url: http://gpu-box:8000/apis/v1
  retry_max: 5
poll_interval: 2s
log:
  level: info
`)
	t.Setenv("EV_LOG_LEVEL", "debug")
	InitConfig()

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:8000/apis/v1", s.API.BaseURL)
	assert.Equal(t, 5, s.API.RetryMax)
	assert.Equal(t, 2*time.Second, s.PollInterval)
	assert.Equal(t, "debug", s.Log.Level)

	APIOverride = "http://localhost:9000/apis/v1"
	s, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/apis/v1", s.API.BaseURL)

	sc := s.ServiceConfig()
	assert.Equal(t, "http://localhost:9000/apis/v1", sc.API.BaseURL)
	assert.Equal(t, 2*time.Second, sc.PollInterval)
	assert.Equal(t, s.DataDir, sc.DataDir)
}
