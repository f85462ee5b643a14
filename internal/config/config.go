package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Redis    *redisConfig
	Service  *svcConfig
	OpenAI   *openAIConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"reviewhub"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type redisConfig struct {
	Address  string `envconfig:"REDIS_ADDRESS" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	Database int    `envconfig:"REDIS_DATABASE" default:"0"`
	Channel  string `envconfig:"REVIEWHUB_NOTIFICATIONS_CHANNEL" default:"reviewhub.notifications"`
}

type svcConfig struct {
	Address         string `envconfig:"REVIEWHUB_ADDRESS" default:":8080"`
	BaseUrl         string `envconfig:"REVIEWHUB_BASE_URL" default:"http://localhost:8080"`
	LogLevel        string `envconfig:"REVIEWHUB_LOG_LEVEL" default:"info"`
	MigrationFolder string `envconfig:"REVIEWHUB_MIGRATIONS_FOLDER" default:""`
}

type openAIConfig struct {
	APIKey      string        `envconfig:"OPENAI_API_KEY" default:""`
	Model       string        `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
	Temperature float32       `envconfig:"OPENAI_TEMPERATURE" default:"0.2"`
	Timeout     time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config backed by an in-memory sqlite database.
// Used by tests. The shared cache keeps every pooled connection on the
// same database.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: "file::memory:?cache=shared"},
		Redis:    &redisConfig{Address: "localhost:6379", Channel: "reviewhub.notifications"},
		Service:  &svcConfig{Address: "localhost:0", LogLevel: "debug"},
		OpenAI:   &openAIConfig{Model: "gpt-3.5-turbo", Temperature: 0.2, Timeout: 30 * time.Second},
	}
}
