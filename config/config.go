package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/notargets/DGCut/cut"
)

// Config is the dgcut configuration file
type Config struct {
	Cut cut.Options `mapstructure:"cut" yaml:"cut"`
	Log LogConfig   `mapstructure:"log" yaml:"log"`
}

type LogConfig struct {
	Level    string `mapstructure:"level" yaml:"level"`       // debug, info, warn, error
	Encoding string `mapstructure:"encoding" yaml:"encoding"` // json or console
}

// ConfigError reports an invalid configuration field
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}

func DefaultConfig() *Config {
	return &Config{
		Cut: cut.DefaultOptions(),
		Log: LogConfig{Level: "info", Encoding: "console"},
	}
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("cut.point_tolerance", def.Cut.PointTolerance)
	v.SetDefault("cut.volume_tolerance", def.Cut.VolumeTolerance)
	v.SetDefault("cut.gen_quad4", def.Cut.GenQuad4)
	v.SetDefault("cut.split_cut_sides", def.Cut.SplitCutSides)
	v.SetDefault("cut.delete_inline_points", def.Cut.DeleteInlinePoints)
	v.SetDefault("cut.find_positions", def.Cut.FindPositions)
	v.SetDefault("cut.check_volume", def.Cut.CheckVolume)
	v.SetDefault("cut.fail_fast", def.Cut.FailFast)
	v.SetDefault("cut.workers", def.Cut.Workers)
	v.SetDefault("cut.strategy", def.Cut.Strategy)
	v.SetDefault("cut.gauss_degree", def.Cut.GaussDegree)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.encoding", def.Log.Encoding)
}

// LoadConfig reads the configuration. An empty path searches dgcut.yaml (or
// .toml, .json) in the working directory and in $HOME/.config/dgcut, and
// falls back to the defaults when there is none. DGCUT_ environment
// variables override the file, e.g. DGCUT_CUT_WORKERS=8.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DGCUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dgcut")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "dgcut"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Cut.Validate(); err != nil {
		return &ConfigError{Field: "cut", Message: err.Error()}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return &ConfigError{Field: "log.level", Message: err.Error()}
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return &ConfigError{Field: "log.encoding", Message: fmt.Sprintf("unknown encoding %q", c.Log.Encoding)}
	}
	return nil
}

// Logger builds a production zap logger writing to stderr. verbose forces
// the debug level.
func (c *Config) Logger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = c.Log.Encoding
	if c.Log.Encoding == "console" {
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
