package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	DatabaseDSN    string        `mapstructure:"database_dsn"`
	MigrationsPath string        `mapstructure:"migrations_path"`
	MsgRateLimit   int           `mapstructure:"msg_rate_limit"`
	MsgRateWindow  time.Duration `mapstructure:"msg_rate_window"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("database_dsn", "")
	v.SetDefault("migrations_path", "internal/adapters/store/postgres/migrations")
	v.SetDefault("msg_rate_limit", 20)
	v.SetDefault("msg_rate_window", "10s")

	// DATABASE_DSN etc. override the file.
	v.SetEnvPrefix("relay")
	v.AutomaticEnv()
	_ = v.BindEnv("database_dsn", "DATABASE_DSN")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
