// Package config loads configuration from configs/config.yaml with
// environment-variable overrides (CLINIC_SERVER_PORT overrides server.port,
// and so on).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host    string        `mapstructure:"host"`
		Port    int           `mapstructure:"port"`
		Mode    string        `mapstructure:"mode"`
		Timeout time.Duration `mapstructure:"timeout"`
		TLS     struct {
			Enabled  bool   `mapstructure:"enabled"`
			CertFile string `mapstructure:"cert_file"`
			KeyFile  string `mapstructure:"key_file"`
		} `mapstructure:"tls"`
	} `mapstructure:"server"`

	Mongo struct {
		URI              string        `mapstructure:"uri"`
		Database         string        `mapstructure:"database"`
		MaxPoolSize      uint64        `mapstructure:"max_pool_size"`
		MinPoolSize      uint64        `mapstructure:"min_pool_size"`
		ConnTimeout      time.Duration `mapstructure:"conn_timeout"`
		SelectionTimeout time.Duration `mapstructure:"selection_timeout"`
		TLS              struct {
			Enabled  bool   `mapstructure:"enabled"`
			CAFile   string `mapstructure:"ca_file"`
			CertFile string `mapstructure:"cert_file"`
			KeyFile  string `mapstructure:"key_file"`
		} `mapstructure:"tls"`
	} `mapstructure:"mongo"`

	JWT struct {
		Secret      string        `mapstructure:"secret"`
		TokenExpiry time.Duration `mapstructure:"token_expiry"`
	} `mapstructure:"jwt"`

	Elasticsearch struct {
		URL      string `mapstructure:"url"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"elasticsearch"`

	CORS struct {
		AllowOrigins []string `mapstructure:"allow_origins"`
	} `mapstructure:"cors"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("/etc/clinic-api")

	v.SetEnvPrefix("CLINIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "clinic")
	v.SetDefault("mongo.max_pool_size", 10)
	v.SetDefault("mongo.min_pool_size", 1)
	v.SetDefault("mongo.conn_timeout", 5*time.Second)
	v.SetDefault("mongo.selection_timeout", 5*time.Second)
	v.SetDefault("jwt.token_expiry", 24*time.Hour)
	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000"})

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: defaults plus env cover local runs.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
