package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	TransportHTTP = "http"
	TransportAMQP = "amqp"
)

type Config struct {
	HTTPAddr     string `yaml:"http_addr"`
	StoreBackend string `yaml:"store_backend"`

	PSQL  PSQLConfig  `yaml:"psql"`
	Redis RedisConfig `yaml:"redis"`
	S3    S3Config    `yaml:"s3"`

	UploadURLTTL time.Duration `yaml:"upload_url_ttl"`

	DispatchTransport      string        `yaml:"dispatch_transport"`
	WorkerURL              string        `yaml:"worker_url"`
	DispatchTimeout        time.Duration `yaml:"dispatch_timeout"`
	DispatchRecordFailures bool          `yaml:"dispatch_record_failures"`

	RabbitMQURL string `yaml:"rabbitmq_url"`
	RateLimit   int    `yaml:"rate_limit"`

	APIBaseURL   string `yaml:"api_base_url"`
	WorkerAddr   string `yaml:"worker_addr"`
	WorkerTmpDir string `yaml:"worker_tmp_dir"`

	LogLevel     string `yaml:"log_level"`
	OTelExporter string `yaml:"otel_exporter"`
	OTelEndpoint string `yaml:"otel_endpoint"`
}

type PSQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (c RedisConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	return net.JoinHostPort(c.Host, c.Port)
}

type S3Config struct {
	Host      string `yaml:"host"`
	Port      string `yaml:"port"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (c S3Config) Endpoint() string {
	if c.Port == "" {
		return c.Host
	}
	return net.JoinHostPort(c.Host, c.Port)
}

func (c S3Config) Enabled() bool { return c.Host != "" && c.Bucket != "" }

func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		StoreBackend:      BackendMemory,
		PSQL:              PSQLConfig{Port: 5432, SSLMode: "disable"},
		Redis:             RedisConfig{Port: "6379"},
		UploadURLTTL:      60 * time.Second,
		DispatchTransport: TransportHTTP,
		WorkerURL:         "http://localhost:8081",
		DispatchTimeout:   10 * time.Second,
		RateLimit:         10,
		APIBaseURL:        "http://localhost:8080",
		WorkerAddr:        ":8081",
		WorkerTmpDir:      os.TempDir(),
		LogLevel:          "info",
		OTelExporter:      "none",
	}
}

// Load reads .env.local when present, then the YAML file named by
// CAPTIONS_CONFIG, then the process environment. Later sources win.
func Load() (Config, error) {
	if err := godotenv.Load("./.env.local"); err != nil {
		slog.Debug("no .env.local file, using process environment")
	}

	cfg := Default()
	if path := os.Getenv("CAPTIONS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("STORE_BACKEND", &c.StoreBackend)

	str("PSQL_HOST", &c.PSQL.Host)
	integer("PSQL_PORT", &c.PSQL.Port)
	str("PSQL_USER", &c.PSQL.User)
	str("PSQL_PASSWORD", &c.PSQL.Password)
	str("PSQL_DB", &c.PSQL.DBName)
	str("PSQL_SSLMODE", &c.PSQL.SSLMode)

	str("REDIS_HOST", &c.Redis.Host)
	str("REDIS_PORT", &c.Redis.Port)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)

	str("S3_HOST", &c.S3.Host)
	str("S3_PORT", &c.S3.Port)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	str("S3_REGION", &c.S3.Region)
	boolean("S3_USE_SSL", &c.S3.UseSSL)

	duration("UPLOAD_URL_TTL", &c.UploadURLTTL)

	str("DISPATCH_TRANSPORT", &c.DispatchTransport)
	str("WORKER_URL", &c.WorkerURL)
	duration("DISPATCH_TIMEOUT", &c.DispatchTimeout)
	boolean("DISPATCH_RECORD_FAILURES", &c.DispatchRecordFailures)

	str("RABBITMQ_URL", &c.RabbitMQURL)
	if c.RabbitMQURL == "" {
		user, _ := lookup("RABBITMQ_USER")
		password, _ := lookup("RABBITMQ_PASSWORD")
		host, _ := lookup("RABBITMQ_HOST")
		port, _ := lookup("RABBITMQ_PORT")
		if host != "" {
			if port == "" {
				port = "5672"
			}
			c.RabbitMQURL = "amqp://" + user + ":" + password + "@" + net.JoinHostPort(host, port) + "/"
		}
	}
	integer("RATE_LIMIT", &c.RateLimit)

	str("API_BASE_URL", &c.APIBaseURL)
	str("WORKER_ADDR", &c.WorkerAddr)
	str("WORKER_TMP_DIR", &c.WorkerTmpDir)

	str("LOG_LEVEL", &c.LogLevel)
	str("OTEL_EXPORTER", &c.OTelExporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTelEndpoint)

	c.StoreBackend = strings.ToLower(c.StoreBackend)
	c.DispatchTransport = strings.ToLower(c.DispatchTransport)

	return errors.Join(errs...)
}

// parseDuration accepts Go durations and bare integers as seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// ValidateGateway reports every missing setting the gateway needs for the
// selected backends.
func (c Config) ValidateGateway() error {
	var errs []error

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		errs = append(errs, required(map[string]string{
			"PSQL_HOST":     c.PSQL.Host,
			"PSQL_USER":     c.PSQL.User,
			"PSQL_PASSWORD": c.PSQL.Password,
			"PSQL_DB":       c.PSQL.DBName,
		})...)
	case BackendRedis:
		errs = append(errs, required(map[string]string{"REDIS_HOST": c.Redis.Host})...)
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.DispatchTransport {
	case TransportHTTP:
		errs = append(errs, required(map[string]string{"WORKER_URL": c.WorkerURL})...)
	case TransportAMQP:
		errs = append(errs, required(map[string]string{"RABBITMQ_URL": c.RabbitMQURL})...)
	default:
		errs = append(errs, fmt.Errorf("unknown DISPATCH_TRANSPORT %q", c.DispatchTransport))
	}

	if c.S3.Host != "" {
		errs = append(errs, c.validateS3()...)
	}
	if c.DispatchTimeout <= 0 {
		errs = append(errs, errors.New("DISPATCH_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateWorker reports missing settings for the worker binary.
func (c Config) ValidateWorker() error {
	errs := required(map[string]string{
		"API_BASE_URL": c.APIBaseURL,
		"WORKER_ADDR":  c.WorkerAddr,
	})
	errs = append(errs, c.validateS3()...)
	return errors.Join(errs...)
}

func (c Config) validateS3() []error {
	return required(map[string]string{
		"S3_HOST":       c.S3.Host,
		"S3_BUCKET":     c.S3.Bucket,
		"S3_ACCESS_KEY": c.S3.AccessKey,
		"S3_SECRET_KEY": c.S3.SecretKey,
	})
}

func required(values map[string]string) []error {
	var errs []error
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if values[key] == "" {
			errs = append(errs, fmt.Errorf("%s is not set", key))
		}
	}
	return errs
}
