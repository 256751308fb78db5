package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yml:"env" default:"local"`
	Postgres Postgres `yml:"postgres"`
	Server   Server   `yml:"server" env-required:"true"`
	GitHub   GitHub   `yml:"github"`
	LLM      LLM      `yml:"llm"`
	Mail     Mail     `yml:"mail"`
}

type Postgres struct {
	Username        string        `env:"POSTGRES_USER" env-required:"true"`
	Password        string        `env:"POSTGRES_PASSWORD" env-required:"true"`
	Host            string        `yml:"host" env-required:"true"`
	Port            string        `env:"POSTGRES_PORT" env-required:"true"`
	Database        string        `env:"POSTGRES_DB" env-required:"true"`
	MaxOpenConns    int           `yml:"max_open_conns" default:"50"`
	MaxIdleConns    int           `yml:"max_idle_conns" default:"10"`
	ConnMaxLifetime time.Duration `yml:"conn_max_lifetime" default:"5m"`
	ConnMaxIdleTime time.Duration `yml:"conn_max_idle_time" default:"1m"`
}

type Server struct {
	Host    string        `yml:"host" default:"localhost"`
	Port    string        `yml:"port" default:"8080"`
	Timeout time.Duration `yml:"timeout" default:"5s"`
}

type GitHub struct {
	AppID         string `env:"GITHUB_APP_ID" env-required:"true"`
	WebhookSecret string `env:"GITHUB_WEBHOOK_SECRET" env-required:"true"`

	// The private key is resolved in order: raw PEM, base64-encoded PEM,
	// path to a PEM file on disk.
	PrivateKey       string `env:"GITHUB_PRIVATE_KEY"`
	PrivateKeyBase64 string `env:"GITHUB_PRIVATE_KEY_BASE64"`
	PrivateKeyPath   string `yml:"private_key_path" env:"GITHUB_PRIVATE_KEY_PATH"`

	// RefreshEnrichment forces re-delivered commits to have their summaries
	// and tasks recomputed instead of reusing the stored values.
	RefreshEnrichment bool `yml:"refresh_enrichment" default:"false"`
}

type LLM struct {
	APIKey  string `env:"LLM_API_KEY" env-required:"true"`
	BaseURL string `yml:"base_url"`
	Model   string `yml:"model" default:"llama-3.3-70b-versatile"`
}

type Mail struct {
	Host     string `yml:"host" env:"MAIL_HOST"`
	Port     int    `yml:"port" env:"MAIL_PORT" default:"465"`
	Username string `env:"MAIL_USER"`
	Password string `env:"MAIL_PASS"`
	From     string `yml:"from" env:"MAIL_FROM"`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return nil, errors.New("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file does not exist: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	return &cfg, nil
}
