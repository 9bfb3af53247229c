package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/senseyeio/duration"
)

const (
	PersistenceMemory = "memory"
	PersistenceSqlite = "sqlite"

	QueueMemory = "memory"
	QueueSqlite = "sqlite"
	QueueRedis  = "redis"

	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Name        string      `yaml:"name" json:"name" env:"NAME" env-default:"zenexec"` // used for OTEL as an application identifier
	NodeId      string      `yaml:"nodeId" json:"nodeId" env:"NODE_ID"`
	Engine      Engine      `yaml:"engine" json:"engine"`
	Persistence Persistence `yaml:"persistence" json:"persistence"`
	Queue       Queue       `yaml:"queue" json:"queue"`
	Lock        Lock        `yaml:"lock" json:"lock"`
	Redis       Redis       `yaml:"redis" json:"redis"`
	HttpServer  HttpServer  `yaml:"httpServer" json:"httpServer"`
	Tracing     Tracing     `yaml:"tracing" json:"tracing"`
}

type Engine struct {
	// Workers is the number of goroutines advancing work items
	Workers int `yaml:"workers" json:"workers" env:"ENGINE_WORKERS" env-default:"4" validate:"min=1"`
	// MaxAttempts bounds automatic re-execution of failing connectors and conflicting work items
	MaxAttempts int `yaml:"maxAttempts" json:"maxAttempts" env:"ENGINE_MAX_ATTEMPTS" env-default:"3" validate:"min=1"`
	// RetryDelay is an ISO-8601 duration, e.g. PT5S
	RetryDelay string `yaml:"retryDelay" json:"retryDelay" env:"ENGINE_RETRY_DELAY" env-default:"PT1S"`
	// DefinitionCacheSize is the number of process definitions kept in memory
	DefinitionCacheSize int `yaml:"definitionCacheSize" json:"definitionCacheSize" env:"ENGINE_DEFINITION_CACHE_SIZE" env-default:"128" validate:"min=1"`
	// Definitions is a directory scanned for *.yaml process definitions at start
	Definitions string `yaml:"definitions" json:"definitions" env:"ENGINE_DEFINITIONS"`
}

type Persistence struct {
	Type string `yaml:"type" json:"type" env:"PERSISTENCE_TYPE" env-default:"memory" validate:"oneof=memory sqlite"`
	DSN  string `yaml:"dsn" json:"dsn" env:"PERSISTENCE_DSN" env-default:"file:zenexec.db?_pragma=busy_timeout(5000)"`
}

type Queue struct {
	Type string `yaml:"type" json:"type" env:"QUEUE_TYPE" env-default:"memory" validate:"oneof=memory sqlite redis"`
	DSN  string `yaml:"dsn" json:"dsn" env:"QUEUE_DSN" env-default:"file:zenexec-queue.db?_pragma=busy_timeout(5000)"`
	// Prefix namespaces redis keys
	Prefix string `yaml:"prefix" json:"prefix" env:"QUEUE_PREFIX" env-default:"zenexec:"`
}

type Lock struct {
	Type string `yaml:"type" json:"type" env:"LOCK_TYPE" env-default:"local" validate:"oneof=local redis"`
	// TTL of a redis lease, ISO-8601
	TTL string `yaml:"ttl" json:"ttl" env:"LOCK_TTL" env-default:"PT30S"`
}

type Redis struct {
	Addr     string `yaml:"addr" json:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" json:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" json:"db" env:"REDIS_DB" env-default:"0"`
}

type Tracing struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" env:"OTEL_ENABLED" env-default:"false"`
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4318"`
	Name     string `yaml:"name" json:"name" env:"OTEL_SERVICE_NAME" env-default:"zenexec"`
	// TransferHeaders are copied from incoming requests to span attributes and the request context
	TransferHeaders []string `yaml:"transferHeaders" json:"transferHeaders" env:"OTEL_TRANSFER_HEADERS" env-separator:","`
}

type HttpServer struct {
	// Addr of the operator API, /system/metrics serves the prometheus registry. Empty disables the server.
	Addr           string   `yaml:"addr" json:"addr" env:"HTTP_SERVER_ADDR" env-default:":8080"`
	AllowedOrigins []string `yaml:"allowedOrigins" json:"allowedOrigins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
}

func (c Config) defaults() Config {
	if c.NodeId == "" {
		c.NodeId = uuid.NewString()[:8]
	}
	if c.Tracing.Name == "" {
		c.Tracing.Name = c.Name
	}
	return c
}

// Validate checks value ranges and that the ISO-8601 durations parse.
func (c Config) Validate() error {
	var errJoin error
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		errJoin = errors.Join(errJoin, err)
	}
	if _, err := ParseDuration(c.Engine.RetryDelay); err != nil {
		errJoin = errors.Join(errJoin, fmt.Errorf("engine.retryDelay: %w", err))
	}
	if _, err := ParseDuration(c.Lock.TTL); err != nil {
		errJoin = errors.Join(errJoin, fmt.Errorf("lock.ttl: %w", err))
	}
	return errJoin
}

// RetryDelayDuration returns the parsed engine retry delay.
func (e Engine) RetryDelayDuration() time.Duration {
	d, _ := ParseDuration(e.RetryDelay)
	return d
}

func (l Lock) TTLDuration() time.Duration {
	d, _ := ParseDuration(l.TTL)
	return d
}

// ParseDuration converts an ISO-8601 duration into a time.Duration relative to now.
func ParseDuration(iso string) (time.Duration, error) {
	if iso == "" {
		return 0, nil
	}
	d, err := duration.ParseISO8601(iso)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", iso, err)
	}
	now := time.Now()
	return d.Shift(now).Sub(now), nil
}

// Load reads the configuration from fileName, falling back to the environment when the file is missing.
func Load(fileName string) (Config, error) {
	c := Config{}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	c = c.defaults()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func InitConfig() Config {
	var fileName string
	confFile := os.Getenv("CONFIG_FILE")
	if confFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		fileName = fmt.Sprintf("%s/conf.yaml", wd)
	} else {
		fileName = confFile
	}
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		fmt.Printf("Configuration file %s not found. Reading config from ENV.\n", fileName)
	}
	c, err := Load(fileName)
	if err != nil {
		fmt.Printf("Error occurred while reading the configuration: %s\n", err)
		panic(err)
	}
	return c
}
