package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for both lectura services.
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Responder   ResponderConfig   `mapstructure:"responder"`
	Fetcher     FetcherConfig     `mapstructure:"fetcher"`
	Transcriber TranscriberConfig `mapstructure:"transcriber"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug             bool   `mapstructure:"debug"`
	LogLevel          string `mapstructure:"log_level"`
	ChatListen        string `mapstructure:"chat_listen"`
	TranscriberListen string `mapstructure:"transcriber_listen"`
}

// StorageConfig contains storage and persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres:// connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings. Redis is optional: when
// host is empty the transcript cache and sweep locks are disabled.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr returns host:port for the go-redis client.
func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// ResponderConfig configures the external conversational responder.
type ResponderConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (r ResponderConfig) Validate() error {
	if strings.TrimSpace(r.APIKey) == "" {
		return fmt.Errorf("responder.api_key required (or LECTURA_RESPONDER_API_KEY)")
	}
	return nil
}

// FetcherConfig configures scratch downloads of remote media.
type FetcherConfig struct {
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TranscriberConfig configures the speech-to-text engine and its janitor.
type TranscriberConfig struct {
	ModelsDir   string        `mapstructure:"models_dir"`
	Model       string        `mapstructure:"model"`
	Languages   []string      `mapstructure:"languages"`
	PoolSize    int           `mapstructure:"pool_size"`
	Threads     uint          `mapstructure:"threads"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	SweepCron   string        `mapstructure:"sweep_cron"`
	SweepMaxAge time.Duration `mapstructure:"sweep_max_age"`
}

func (t TranscriberConfig) Validate() error {
	if strings.TrimSpace(t.ModelsDir) == "" {
		return fmt.Errorf("transcriber.models_dir required")
	}
	if strings.TrimSpace(t.Model) == "" {
		return fmt.Errorf("transcriber.model required")
	}
	if t.PoolSize <= 0 {
		return fmt.Errorf("transcriber.pool_size must be > 0")
	}
	return nil
}

// LoadConfig loads config from file with LECTURA_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.chat_listen", ":8090")
	viper.SetDefault("general.transcriber_listen", ":8091")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.postgres.timeout", 5*time.Second)
	viper.SetDefault("storage.redis.timeout", 5*time.Second)
	viper.SetDefault("responder.model", "gpt-4o-mini")
	viper.SetDefault("responder.temperature", 0.2)
	viper.SetDefault("responder.max_tokens", 1024)
	viper.SetDefault("responder.timeout", 30*time.Second)
	viper.SetDefault("fetcher.dir", "downloads")
	viper.SetDefault("fetcher.timeout", 120*time.Second)
	viper.SetDefault("transcriber.languages", []string{"en"})
	viper.SetDefault("transcriber.pool_size", 1)
	viper.SetDefault("transcriber.cache_ttl", 24*time.Hour)
	viper.SetDefault("transcriber.sweep_cron", "@hourly")
	viper.SetDefault("transcriber.sweep_max_age", 6*time.Hour)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("LECTURA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
