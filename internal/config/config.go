package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/michaelbrown/pyrunner/internal/executor"
	"github.com/michaelbrown/pyrunner/internal/interp"
	"github.com/michaelbrown/pyrunner/internal/sandbox"
)

type PythonConfig struct {
	Interpreter string `mapstructure:"interpreter"`
}

type IsolatedConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Workdir string        `mapstructure:"workdir"`
	Env     []string      `mapstructure:"env"` // KEY=VALUE
}

type PersistentConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	ValueLimit int           `mapstructure:"value_limit"`
	Workdir    string        `mapstructure:"workdir"`
	Env        []string      `mapstructure:"env"` // KEY=VALUE
}

type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	Port      int    `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Python     PythonConfig     `mapstructure:"python"`
	Isolated   IsolatedConfig   `mapstructure:"isolated"`
	Persistent PersistentConfig `mapstructure:"persistent"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
}

// Load reads pyrunner.yaml from the current directory or $HOME/.pyrunner,
// or the explicit path when one is given. A missing default file is not an
// error. Any key can be overridden with PYRUNNER_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pyrunner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pyrunner")
	}

	v.SetEnvPrefix("pyrunner")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("python.interpreter", executor.DefaultInterpreter())
	v.SetDefault("isolated.timeout", executor.DefaultTimeout)
	v.SetDefault("isolated.workdir", "")
	v.SetDefault("persistent.timeout", time.Duration(0))
	v.SetDefault("persistent.value_limit", interp.DefaultValueLimit)
	v.SetDefault("persistent.workdir", "")
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.db_path", "")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid server.transport %q (want stdio or http)", c.Server.Transport)
	}
	if c.Isolated.Timeout <= 0 {
		return fmt.Errorf("isolated.timeout must be positive, got %s", c.Isolated.Timeout)
	}
	if c.Persistent.Timeout < 0 {
		return fmt.Errorf("persistent.timeout must not be negative, got %s", c.Persistent.Timeout)
	}
	if c.Python.Interpreter == "" {
		return fmt.Errorf("python.interpreter must be set")
	}
	for _, list := range [][]string{c.Isolated.Env, c.Persistent.Env} {
		for _, kv := range list {
			if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
				return fmt.Errorf("invalid env entry %q (want KEY=VALUE)", kv)
			}
		}
	}
	return nil
}

// SandboxPolicy returns the policy for the isolated executor.
func (c *Config) SandboxPolicy() sandbox.Policy {
	policy := sandbox.DefaultPolicy()
	policy.Interpreter = c.Python.Interpreter
	policy.Timeout = c.Isolated.Timeout
	policy.Workdir = c.Isolated.Workdir
	policy.Env = parseEnv(c.Isolated.Env)
	return policy
}

// SessionConfig returns the settings for the persistent executor.
func (c *Config) SessionConfig() interp.Config {
	return interp.Config{
		Interpreter: c.Python.Interpreter,
		Workdir:     c.Persistent.Workdir,
		Env:         parseEnv(c.Persistent.Env),
		Timeout:     c.Persistent.Timeout,
		ValueLimit:  c.Persistent.ValueLimit,
	}
}

// LogLevel parses log.level, falling back to info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// parseEnv turns KEY=VALUE entries into a map, resolving values of the
// form ${VAR} from the environment.
func parseEnv(list []string) map[string]string {
	if len(list) == 0 {
		return nil
	}
	env := make(map[string]string, len(list))
	for _, kv := range list {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
			v = os.Getenv(v[2 : len(v)-1])
		}
		env[k] = v
	}
	return env
}
