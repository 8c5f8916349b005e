// Package config loads service configuration from the environment, an
// optional YAML file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"wms-core/internal/apperr"
	"wms-core/internal/broker"
	"wms-core/internal/platform/retry"
)

// ConfigPathEnv names the variable holding the YAML file path.
const ConfigPathEnv = "WMS_CONFIG"

// ErrInvalid is returned when the loaded configuration cannot run the service.
var ErrInvalid = apperr.New(apperr.KindConfiguration, apperr.CodeConfigInvalid, "config: invalid")

// Config is the service configuration.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL" yaml:"database_url"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080" yaml:"http_addr"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"wms-core" yaml:"service_name"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json" yaml:"log_format"`
	JWTSecret   string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`

	Redis  RedisConfig  `envPrefix:"REDIS_" yaml:"redis"`
	MQTT   MQTTConfig   `envPrefix:"MQTT_" yaml:"mqtt"`
	Outbox OutboxConfig `envPrefix:"OUTBOX_" yaml:"outbox"`

	StreamPrefix  string `env:"STREAM_PREFIX" envDefault:"wms" yaml:"stream_prefix"`
	ConsumerGroup string `env:"CONSUMER_GROUP" envDefault:"wms-core" yaml:"consumer_group"`
	ConsumerName  string `env:"CONSUMER_NAME" yaml:"consumer_name"`

	// DeletionMode is parsed when the first deletion runs.
	DeletionMode           string        `env:"TU_DELETION_MODE" envDefault:"IMMEDIATE" yaml:"deletion_mode"`
	ReplicaCallbackTimeout time.Duration `env:"REPLICA_CALLBACK_TIMEOUT" envDefault:"5s" yaml:"replica_callback_timeout"`

	Broker        broker.Topology `yaml:"broker"`
	PublishRetry  retry.Policy    `yaml:"publish_retry"`
	CallbackRetry retry.Policy    `yaml:"callback_retry"`

	// Path is the YAML file the configuration was overlaid from, if any.
	Path string `yaml:"-"`
}

// RedisConfig holds the Redis Streams connection.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379" yaml:"addr"`
	Password string `env:"PASSWORD" yaml:"password"`
	DB       int    `env:"DB" envDefault:"0" yaml:"db"`
}

// MQTTConfig holds the PLC gateway broker connection. An empty broker
// disables MQTT ingestion.
type MQTTConfig struct {
	Broker      string `env:"BROKER" yaml:"broker"`
	ClientID    string `env:"CLIENT_ID" envDefault:"wms-core" yaml:"client_id"`
	Username    string `env:"USERNAME" yaml:"username"`
	Password    string `env:"PASSWORD" yaml:"password"`
	TopicPrefix string `env:"TOPIC_PREFIX" envDefault:"wms" yaml:"topic_prefix"`
	QoS         int    `env:"QOS" envDefault:"1" yaml:"qos"`
}

// OutboxConfig controls outbox dispatch.
type OutboxConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"2s" yaml:"interval"`
	Batch    int           `env:"BATCH" envDefault:"100" yaml:"batch"`
}

// Load parses flags from args, then the environment, then overlays the YAML
// file named by --config or WMS_CONFIG. Keys set in the file win.
func Load(args []string) (Config, error) {
	flags := pflag.NewFlagSet("wms-core", pflag.ContinueOnError)
	path := flags.String("config", "", "path to a YAML configuration file (overrides "+ConfigPathEnv+")")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Path = strings.TrimSpace(*path)
	if cfg.Path == "" {
		cfg.Path = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	if cfg.Path != "" {
		data, err := os.ReadFile(cfg.Path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", cfg.Path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Broker.Commands == "" && c.Broker.Events == "" && c.Broker.DeadLetter == "" {
		topology := DefaultTopology(c.StreamPrefix, c.ConsumerGroup)
		if c.Broker.MaxLen > 0 {
			topology.MaxLen = c.Broker.MaxLen
		}
		c.Broker = topology
	}
	if c.ConsumerName == "" {
		if hostname, err := os.Hostname(); err == nil && hostname != "" {
			c.ConsumerName = hostname
		} else {
			c.ConsumerName = c.ServiceName
		}
	}
	c.PublishRetry = c.PublishRetry.Normalize()
	c.CallbackRetry = c.CallbackRetry.Normalize()
}

// DefaultTopology is the stream layout derived from prefix and group.
func DefaultTopology(prefix, group string) broker.Topology {
	return broker.DefaultTopology(prefix, group)
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.DatabaseURL) == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.Redis.Addr == "" {
		problems = append(problems, "REDIS_ADDR is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		problems = append(problems, "MQTT_QOS must be 0, 1 or 2")
	}
	if c.Outbox.Interval <= 0 || c.Outbox.Batch <= 0 {
		problems = append(problems, "outbox interval and batch must be positive")
	}
	if err := c.Broker.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) == 0 {
		return nil
	}
	return ErrInvalid.Because(errors.New(strings.Join(problems, "; ")))
}
