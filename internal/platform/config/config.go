package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Fireflies FirefliesConfig `mapstructure:"fireflies"`
	Invites   InvitesConfig   `mapstructure:"invites"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	// DSN selects the driver: postgres:// for lib/pq, anything else is
	// treated as a sqlite file path (or :memory:).
	DSN            string `mapstructure:"dsn"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type SecretsConfig struct {
	// EncryptionKey is a 64-char hex string (32 bytes) for AES-256-GCM.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type FirefliesConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	DefaultLookback time.Duration `mapstructure:"default_lookback"`
}

type InvitesConfig struct {
	AcceptBaseURL string        `mapstructure:"accept_base_url"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type WorkerConfig struct {
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("fireflies.base_url", "https://api.fireflies.ai/graphql")
	viper.SetDefault("fireflies.request_timeout", 30*time.Second)
	viper.SetDefault("fireflies.default_lookback", 90*24*time.Hour)
	viper.SetDefault("invites.ttl", 7*24*time.Hour)
	viper.SetDefault("worker.sync_interval", time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
