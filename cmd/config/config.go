package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-voice/internal/logging"
	"github.com/mattsolo1/grove-voice/pkg/api"
	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

var (
	cfgFile     string
	APIOverride string
)

// Settings is the effective configuration, as printed by `ev config show`.
type Settings struct {
	API struct {
		BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
		ServiceHeader string        `yaml:"service_header" mapstructure:"service_header"`
		ServiceName   string        `yaml:"service_name" mapstructure:"service_name"`
		Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
		RetryMax      int           `yaml:"retry_max" mapstructure:"retry_max"`
		RetryWaitMin  time.Duration `yaml:"retry_wait_min" mapstructure:"retry_wait_min"`
		RetryWaitMax  time.Duration `yaml:"retry_wait_max" mapstructure:"retry_wait_max"`
	} `yaml:"api" mapstructure:"api"`
	DataDir      string        `yaml:"data_dir" mapstructure:"data_dir"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	Audio        struct {
		RecordCommand []string `yaml:"record_command" mapstructure:"record_command"`
		PlayCommand   []string `yaml:"play_command" mapstructure:"play_command"`
	} `yaml:"audio" mapstructure:"audio"`
	Log struct {
		Level string `yaml:"level" mapstructure:"level"`
		File  string `yaml:"file" mapstructure:"file"`
	} `yaml:"log" mapstructure:"log"`
	ConfigFile string `yaml:"config_file,omitempty" mapstructure:"-"`
}

func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "ev")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("EV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	defaults := api.DefaultConfig()
	home, _ := os.UserHomeDir()
	viper.SetDefault("api.base_url", defaults.BaseURL)
	viper.SetDefault("api.service_header", defaults.ServiceHeader)
	viper.SetDefault("api.service_name", defaults.ServiceName)
	viper.SetDefault("api.timeout", defaults.Timeout)
	viper.SetDefault("api.retry_max", defaults.RetryMax)
	viper.SetDefault("api.retry_wait_min", defaults.RetryWaitMin)
	viper.SetDefault("api.retry_wait_max", defaults.RetryWaitMax)
	viper.SetDefault("data_dir", filepath.Join(home, ".local", "share", "ev"))
	viper.SetDefault("poll_interval", 5*time.Second)
	viper.SetDefault("audio.record_command", audio.DefaultRecordCommand())
	viper.SetDefault("audio.play_command", audio.DefaultPlayCommand())
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.file", "")

	// A missing config file is fine; defaults and env apply.
	_ = viper.ReadInConfig()
}

// Load returns the effective settings.
func Load() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if APIOverride != "" {
		s.API.BaseURL = APIOverride
	}
	s.ConfigFile = viper.ConfigFileUsed()
	return &s, nil
}

// ServiceConfig converts settings into the service configuration.
func (s *Settings) ServiceConfig() *service.Config {
	return &service.Config{
		API: api.Config{
			BaseURL:       s.API.BaseURL,
			ServiceHeader: s.API.ServiceHeader,
			ServiceName:   s.API.ServiceName,
			Timeout:       s.API.Timeout,
			RetryMax:      s.API.RetryMax,
			RetryWaitMin:  s.API.RetryWaitMin,
			RetryWaitMax:  s.API.RetryWaitMax,
		},
		DataDir:       s.DataDir,
		PollInterval:  s.PollInterval,
		RecordCommand: s.Audio.RecordCommand,
		PlayCommand:   s.Audio.PlayCommand,
	}
}

// InitLogging applies the log settings. The closer releases the log file.
func InitLogging(s *Settings) (io.Closer, error) {
	return logging.Configure(s.Log.Level, s.Log.File)
}

func InitService() (*service.Service, error) {
	s, err := Load()
	if err != nil {
		return nil, err
	}
	return service.New(s.ServiceConfig(), logging.NewLogger("grove-voice.service"))
}

func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/ev/config.yaml)")
	cmd.PersistentFlags().StringVar(&APIOverride, "api", "", "Override the backend base URL for this invocation")
}
