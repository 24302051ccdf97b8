package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	stateDirName   = ".studypomo"
	configFileName = "config.yaml"
)

type Config struct {
	VaultPath   string
	StateDir    string
	DBPath      string
	LogPath     string
	Logging     LoggingConfig     `mapstructure:"logging"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Timer       TimerConfig       `mapstructure:"timer"`
	Pomodoro    PomodoroConfig    `mapstructure:"pomodoro"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Events      EventsConfig      `mapstructure:"events"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PersistenceConfig struct {
	Backend   string      `mapstructure:"backend"`
	KeyPrefix string      `mapstructure:"key_prefix"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BackendConfig selects the SessionAPI. An empty URL keeps sessions in the local SQLite store.
type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TimerConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	AutoStartDelay     time.Duration `mapstructure:"auto_start_delay"`
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval"`
}

// PomodoroConfig holds the default session settings. The tri-state auto start
// flags stay nil when unset so they inherit from AutoStart.
type PomodoroConfig struct {
	FocusDuration      int   `mapstructure:"focus_duration"`
	ShortBreakDuration int   `mapstructure:"short_break_duration"`
	LongBreakDuration  int   `mapstructure:"long_break_duration"`
	AutoStart          bool  `mapstructure:"auto_start"`
	AutoStartFocus     *bool `mapstructure:"auto_start_focus"`
	AutoStartBreak     *bool `mapstructure:"auto_start_break"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// New derives the vault paths and applies defaults without reading any file.
func New(vaultPath string) (Config, error) {
	if vaultPath == "" {
		return Config{}, fmt.Errorf("vault path is required")
	}
	v := viper.New()
	setDefaults(v)
	return decode(v, vaultPath)
}

// Load reads <vault>/.env, the config file (explicit path or <vault>/.studypomo/config.yaml)
// and STUDYPOMO_* environment variables, in increasing precedence.
func Load(vaultPath, configPath string) (Config, error) {
	if vaultPath == "" {
		return Config{}, fmt.Errorf("vault path is required")
	}
	if err := godotenv.Load(filepath.Join(vaultPath, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("STUDYPOMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(vaultPath, stateDirName, configFileName)
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if explicit || !missing {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return decode(v, vaultPath)
}

func decode(v *viper.Viper, vaultPath string) (Config, error) {
	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	resolveAutoStartFlags(&cfg, v)
	cfg.VaultPath = vaultPath
	cfg.StateDir = filepath.Join(vaultPath, stateDirName)
	cfg.DBPath = filepath.Join(cfg.StateDir, "studypomo.db")
	cfg.LogPath = filepath.Join(cfg.StateDir, "studypomo.log")
	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// resolveAutoStartFlags keeps the per-direction flags nil unless a file or the
// environment sets them.
func resolveAutoStartFlags(cfg *Config, v *viper.Viper) {
	cfg.Pomodoro.AutoStartFocus = optionalBool(v, "pomodoro.auto_start_focus")
	cfg.Pomodoro.AutoStartBreak = optionalBool(v, "pomodoro.auto_start_break")
}

func optionalBool(v *viper.Viper, key string) *bool {
	if !v.IsSet(key) {
		return nil
	}
	b := v.GetBool(key)
	return &b
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("persistence.backend", "file")
	v.SetDefault("persistence.key_prefix", "studypomo:")
	v.SetDefault("persistence.redis.addr", "127.0.0.1:6379")
	v.SetDefault("persistence.redis.password", "")
	v.SetDefault("persistence.redis.db", 0)

	v.SetDefault("backend.url", "")
	v.SetDefault("backend.timeout", "10s")

	v.SetDefault("timer.tick_interval", "1s")
	v.SetDefault("timer.auto_start_delay", "3s")
	v.SetDefault("timer.checkpoint_interval", "15s")

	v.SetDefault("pomodoro.focus_duration", 25)
	v.SetDefault("pomodoro.short_break_duration", 5)
	v.SetDefault("pomodoro.long_break_duration", 20)
	v.SetDefault("pomodoro.auto_start", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject", "studypomo.sessions")
}

func validate(cfg Config) error {
	switch cfg.Persistence.Backend {
	case "file", "memory", "redis":
	default:
		return fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
	}
	if cfg.Timer.TickInterval <= 0 {
		return fmt.Errorf("timer.tick_interval must be positive")
	}
	if cfg.Timer.AutoStartDelay < 0 {
		return fmt.Errorf("timer.auto_start_delay must not be negative")
	}
	if cfg.Timer.CheckpointInterval < 0 {
		return fmt.Errorf("timer.checkpoint_interval must not be negative")
	}
	if cfg.Pomodoro.FocusDuration <= 0 || cfg.Pomodoro.ShortBreakDuration <= 0 || cfg.Pomodoro.LongBreakDuration <= 0 {
		return fmt.Errorf("pomodoro durations must be positive")
	}
	if cfg.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	return nil
}
