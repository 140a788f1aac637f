// Package config loads the global tabautoml configuration with viper.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
	"github.com/YuminosukeSato/tabautoml/viz"
)

// EnvPrefix is the prefix of environment overrides, e.g. TABAUTOML_FOLDS.
const EnvPrefix = "TABAUTOML"

// Global configuration structure.
type Global struct {
	RunsDir    string `mapstructure:"runs_dir" yaml:"runs_dir"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat  string `mapstructure:"log_format" yaml:"log_format"`
	PlotFormat string `mapstructure:"plot_format" yaml:"plot_format"`

	// Experiment defaults, used when the experiment file leaves them unset.
	SessionID int     `mapstructure:"session_id" yaml:"session_id"`
	Folds     int     `mapstructure:"folds" yaml:"folds"`
	TrainSize float64 `mapstructure:"train_size" yaml:"train_size"`
}

// Keys lists the settable keys in display order.
var Keys = []string{"runs_dir", "log_level", "log_format", "plot_format", "session_id", "folds", "train_size"}

// Dir returns ~/.tabautoml.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home dir")
	}
	return filepath.Join(home, ".tabautoml"), nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
// A missing config file is not an error; an unreadable one is.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("plot_format", engine.DefaultPlotFormat)
	v.SetDefault("session_id", engine.DefaultSessionID)
	v.SetDefault("folds", engine.DefaultFolds)
	v.SetDefault("train_size", engine.DefaultTrainSize)
	v.SetDefault("runs_dir", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if c.RunsDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.RunsDir = filepath.Join(dir, "runs")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the enumerated and numeric settings.
func (c *Global) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return errors.NewValidationError("log_format", "must be console or json", c.LogFormat)
	}
	if err := viz.CheckFormat(c.PlotFormat); err != nil {
		return err
	}
	if c.Folds < 2 {
		return errors.NewValidationError("folds", "must be >= 2", c.Folds)
	}
	if c.TrainSize <= 0 || c.TrainSize >= 1 {
		return errors.NewValidationError("train_size", "must be in (0, 1)", c.TrainSize)
	}
	return nil
}

// Set parses value into key. c is left unchanged when the result is invalid.
func (c *Global) Set(key, value string) error {
	next := *c
	switch key {
	case "runs_dir":
		next.RunsDir = value
	case "log_level":
		next.LogLevel = strings.ToLower(value)
	case "log_format":
		next.LogFormat = strings.ToLower(value)
	case "plot_format":
		next.PlotFormat = strings.TrimPrefix(strings.ToLower(value), ".")
	case "session_id":
		i, err := strconv.Atoi(value)
		if err != nil {
			return errors.NewValidationError(key, "must be an integer", value)
		}
		next.SessionID = i
	case "folds":
		i, err := strconv.Atoi(value)
		if err != nil {
			return errors.NewValidationError(key, "must be an integer", value)
		}
		next.Folds = i
	case "train_size":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.NewValidationError(key, "must be a number", value)
		}
		next.TrainSize = f
	default:
		return errors.NewValidationError("key", "unknown key (known: "+strings.Join(Keys, ", ")+")", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Get returns the value of key formatted for display.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "runs_dir":
		return c.RunsDir, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "plot_format":
		return c.PlotFormat, nil
	case "session_id":
		return strconv.Itoa(c.SessionID), nil
	case "folds":
		return strconv.Itoa(c.Folds), nil
	case "train_size":
		return strconv.FormatFloat(c.TrainSize, 'f', -1, 64), nil
	}
	return "", errors.NewValidationError("key", "unknown key", key)
}

// Save writes c to cfgFile, or to ~/.tabautoml/config.yaml when empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir config dir")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}
