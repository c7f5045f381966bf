package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/blitz/go/internal/events"
	"github.com/mcdev12/blitz/go/internal/game"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

// Config holds every runtime setting of the server
type Config struct {
	Server ServerConfig `yaml:"server"`
	Clock  ClockConfig  `yaml:"clock"`
	NATS   NATSConfig   `yaml:"nats"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Bind              string        `yaml:"bind"`
	Port              int           `yaml:"port"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	SendBuffer        int           `yaml:"send_buffer"` // frames queued per connection
}

type ClockConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// NATSConfig controls the optional JetStream event bus. When disabled,
// events are only logged.
type NATSConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	StreamName    string        `yaml:"stream_name"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	QueueSize     int           `yaml:"queue_size"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func Default() Config {
	js := events.DefaultJetStreamConfig()
	dc := events.DefaultDispatcherConfig()

	return Config{
		Server: ServerConfig{
			Bind:              "0.0.0.0",
			Port:              8080,
			AllowedOrigins:    []string{"*"},
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			SendBuffer:        64,
		},
		Clock: ClockConfig{
			TickInterval: game.DefaultTickInterval,
		},
		NATS: NATSConfig{
			URL:           js.URL,
			StreamName:    js.StreamName,
			SubjectPrefix: js.SubjectPrefix,
			QueueSize:     dc.QueueSize,
			MaxRetries:    dc.MaxRetries,
			RetryDelay:    dc.RetryDelay,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFile reads a YAML file over the defaults. Keys missing from the file
// keep their default value.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1-65535 inclusive, got %d", ErrInvalid, c.Server.Port)
	}
	if c.Server.SendBuffer <= 0 {
		return fmt.Errorf("%w: send buffer must be positive, got %d", ErrInvalid, c.Server.SendBuffer)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive, got %s", ErrInvalid, c.Server.ShutdownTimeout)
	}
	if c.Clock.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive, got %s", ErrInvalid, c.Clock.TickInterval)
	}
	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return fmt.Errorf("%w: nats url is required when nats is enabled", ErrInvalid)
		}
		if c.NATS.StreamName == "" || c.NATS.SubjectPrefix == "" {
			return fmt.Errorf("%w: nats stream name and subject prefix are required", ErrInvalid)
		}
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

func (c NATSConfig) JetStream() events.JetStreamConfig {
	js := events.DefaultJetStreamConfig()
	js.URL = c.URL
	js.StreamName = c.StreamName
	js.SubjectPrefix = c.SubjectPrefix
	return js
}

func (c NATSConfig) Dispatcher() events.DispatcherConfig {
	return events.DispatcherConfig{
		QueueSize:  c.QueueSize,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
	}
}
