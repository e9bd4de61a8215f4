package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppName    string `mapstructure:"APP_NAME"`
	ServerAddr string `mapstructure:"SERVER_ADDR"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	// PostgreSQL configuration
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         int    `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSL_MODE"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`

	// access tokens are issued elsewhere; we only verify them.
	AccessTokenSecret       string `mapstructure:"ACCESS_TOKEN_SECRET"`
	AccessTokenExpiryInSecs int    `mapstructure:"ACCESS_TOKEN_EXPIRY_IN_SECS"`

	EventEngineBuffer int `mapstructure:"EVENT_ENGINE_BUFFER"`
	ListenerBuffer    int `mapstructure:"LISTENER_BUFFER"`

	// RabbitMQ bridge, disabled when RABBITMQ_URL is empty
	RabbitMQURL        string `mapstructure:"RABBITMQ_URL"`
	EventsExchangeName string `mapstructure:"EVENTS_EXCHANGE_NAME"`

	// OpenTelemetry tracing, disabled when OTEL_ENDPOINT is empty
	OtelEndpoint string `mapstructure:"OTEL_ENDPOINT"`
	OtelInsecure bool   `mapstructure:"OTEL_INSECURE"`
}

func (c Config) PostgresConnStr() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "stockflow-api")
	v.SetDefault("SERVER_ADDR", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "stockflow")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)

	v.SetDefault("ACCESS_TOKEN_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_EXPIRY_IN_SECS", 900)

	v.SetDefault("EVENT_ENGINE_BUFFER", 256)
	v.SetDefault("LISTENER_BUFFER", 32)

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("EVENTS_EXCHANGE_NAME", "stockflow.events")

	v.SetDefault("OTEL_ENDPOINT", "")
	v.SetDefault("OTEL_INSECURE", false)
}

// LoadConfig reads app.env from path (if present), then the environment.
func LoadConfig(path string) (Config, error) {
	var config Config

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err == nil {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("using config file")
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Info().Msg("no config file found, using environment variables and defaults")
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if config.AccessTokenSecret == "" {
		return config, errors.New("ACCESS_TOKEN_SECRET is required")
	}

	return config, nil
}
