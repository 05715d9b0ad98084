package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	Testing TestingConfig
	Log     LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// TestingConfig holds the knobs of the testing flows themselves.
type TestingConfig struct {
	// Workers is the number of concurrent worker tasks per flow.
	Workers int `envconfig:"TESTING_WORKERS" default:"100"`

	// SlowStart ramps each flow's request rate up to the target instead of
	// opening at full rate.
	SlowStart bool `envconfig:"TESTING_SLOW_START" default:"true"`

	// Services pre-seeds the target service registry at startup, format
	// "name=base_url|token,name=base_url". Services can also be registered
	// at runtime via the API.
	Services string `envconfig:"TESTING_SERVICES" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
