package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/skillforge-backend/internal/clients/rabbitmq"
	"github.com/yungbote/skillforge-backend/internal/data/db"
	"github.com/yungbote/skillforge-backend/internal/observability"
	"github.com/yungbote/skillforge-backend/internal/platform/envutil"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
	"github.com/yungbote/skillforge-backend/internal/realtime"
	"github.com/yungbote/skillforge-backend/internal/realtime/bus"
	"github.com/yungbote/skillforge-backend/internal/services"
)

type Config struct {
	HTTPAddr       string        `yaml:"http_addr"`
	LogMode        string        `yaml:"log_mode"`
	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`

	Database  DatabaseConfig           `yaml:"database"`
	Redis     RedisConfig              `yaml:"redis"`
	RabbitMQ  RabbitMQConfig           `yaml:"rabbitmq"`
	Agent     AgentConfig              `yaml:"agent"`
	Progress  ProgressConfig           `yaml:"progress"`
	Realtime  RealtimeConfig           `yaml:"realtime"`
	Telemetry observability.OtelConfig `yaml:"otel"`
}

type DatabaseConfig struct {
	Driver     string            `yaml:"driver"` // postgres | sqlite
	Postgres   db.PostgresConfig `yaml:"postgres"`
	SQLitePath string            `yaml:"sqlite_path"`
}

type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

type RabbitMQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

type AgentConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	StreamTimeout  time.Duration `yaml:"timeout"`
}

type ProgressConfig struct {
	CASRetries int `yaml:"cas_retries"`
}

type RealtimeConfig struct {
	Heartbeat time.Duration `yaml:"heartbeat"`
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:      ":8080",
		LogMode:       "development",
		ShutdownGrace: 20 * time.Second,
		Database: DatabaseConfig{
			Driver: "postgres",
			Postgres: db.PostgresConfig{
				Host:    "localhost",
				Port:    "5432",
				User:    "postgres",
				Name:    "skillforge",
				SSLMode: "disable",
			},
		},
		Redis:    RedisConfig{Channel: bus.DefaultChannel},
		RabbitMQ: RabbitMQConfig{Queue: rabbitmq.DefaultQueue},
		Agent: AgentConfig{
			ConnectTimeout: 30 * time.Second,
			StreamTimeout:  services.DefaultChatStreamTimeout,
		},
		Progress: ProgressConfig{CASRetries: services.DefaultProgressCASRetries},
		Realtime: RealtimeConfig{Heartbeat: realtime.DefaultHeartbeat},
		Telemetry: observability.OtelConfig{
			ServiceName: "skillforge",
			SampleRatio: 0.1,
		},
	}
}

// LoadConfig layers defaults, an optional .env, the YAML file named by
// CONFIG_FILE and finally environment variables.
func LoadConfig(log *logger.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to load .env", "error", err)
	}
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = envutil.String("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.CORSOrigins = envutil.List("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.ShutdownGrace = envutil.Duration("SHUTDOWN_GRACE", cfg.ShutdownGrace)

	cfg.Database.Driver = strings.ToLower(envutil.String("DB_DRIVER", cfg.Database.Driver))
	cfg.Database.SQLitePath = envutil.String("SQLITE_PATH", cfg.Database.SQLitePath)
	pg := &cfg.Database.Postgres
	pg.Host = envutil.String("POSTGRES_HOST", pg.Host)
	pg.Port = envutil.String("POSTGRES_PORT", pg.Port)
	pg.User = envutil.String("POSTGRES_USER", pg.User)
	pg.Password = envutil.String("POSTGRES_PASSWORD", pg.Password)
	pg.Name = envutil.String("POSTGRES_NAME", pg.Name)
	pg.SSLMode = envutil.String("POSTGRES_SSLMODE", pg.SSLMode)
	pg.MaxOpenConns = envutil.Int("POSTGRES_MAX_OPEN_CONNS", pg.MaxOpenConns)
	pg.MaxIdleConns = envutil.Int("POSTGRES_MAX_IDLE_CONNS", pg.MaxIdleConns)
	pg.ConnMaxLifetime = envutil.Duration("POSTGRES_CONN_MAX_LIFETIME", pg.ConnMaxLifetime)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.RabbitMQ.URL = envutil.String("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.Queue = envutil.String("ANALYTICS_QUEUE", cfg.RabbitMQ.Queue)

	cfg.Agent.BaseURL = envutil.String("AGENT_BASE_URL", cfg.Agent.BaseURL)
	cfg.Agent.APIKey = envutil.String("AGENT_API_KEY", cfg.Agent.APIKey)
	cfg.Agent.ConnectTimeout = envutil.Duration("AGENT_CONNECT_TIMEOUT", cfg.Agent.ConnectTimeout)
	cfg.Agent.StreamTimeout = envutil.Duration("AGENT_TIMEOUT", cfg.Agent.StreamTimeout)

	cfg.Progress.CASRetries = envutil.Int("PROGRESS_CAS_RETRIES", cfg.Progress.CASRetries)
	cfg.Realtime.Heartbeat = envutil.Duration("SSE_HEARTBEAT", cfg.Realtime.Heartbeat)

	tel := &cfg.Telemetry
	tel.Enabled = envutil.Bool("OTEL_ENABLED", tel.Enabled)
	tel.ServiceName = envutil.String("OTEL_SERVICE_NAME", tel.ServiceName)
	tel.Environment = envutil.String("OTEL_ENVIRONMENT", envutil.String("APP_ENV", tel.Environment))
	tel.Version = envutil.String("APP_VERSION", tel.Version)
	tel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", tel.SampleRatio)
	tel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", tel.Endpoint)
	tel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", tel.Insecure)
	if h := observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")); h != nil {
		tel.Headers = h
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Progress.CASRetries < 1 {
		return fmt.Errorf("PROGRESS_CAS_RETRIES must be at least 1")
	}
	return nil
}
