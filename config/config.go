package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/crm-api/pkg/messaging/redis"
	"github.com/jwalitptl/crm-api/pkg/worker"
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	Mode           string        `mapstructure:"mode"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
	AuditFile  string `mapstructure:"audit_file"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

type HousekeepingConfig struct {
	Schedule        string        `mapstructure:"schedule"`
	OutboxRetention time.Duration `mapstructure:"outbox_retention"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type WorkerConfig struct {
	HealthPort   int                `mapstructure:"health_port"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	Housekeeping HousekeepingConfig `mapstructure:"housekeeping"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type EmailConfig struct {
	Provider       string        `mapstructure:"provider"`
	FromAddress    string        `mapstructure:"from_address"`
	FromName       string        `mapstructure:"from_name"`
	FrontendURL    string        `mapstructure:"frontend_url"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	SMTP           SMTPConfig    `mapstructure:"smtp"`
	SendGridAPIKey string        `mapstructure:"sendgrid_api_key"`
}

type AssistantConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	HistoryLimit  int           `mapstructure:"history_limit"`
	BreakerFails  uint32        `mapstructure:"breaker_fails"`
	BreakerPeriod time.Duration `mapstructure:"breaker_period"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Email     EmailConfig     `mapstructure:"email"`
	Assistant AssistantConfig `mapstructure:"assistant"`
}

// envOverrides are read from CRM_* environment variables and win over the file.
type envOverrides struct {
	ServerPort     int     `envconfig:"SERVER_PORT"`
	ServerMode     string  `envconfig:"SERVER_MODE"`
	DBDriver       string  `envconfig:"DB_DRIVER"`
	DBHost         string  `envconfig:"DB_HOST"`
	DBPort         int     `envconfig:"DB_PORT"`
	DBUser         string  `envconfig:"DB_USER"`
	DBPassword     string  `envconfig:"DB_PASSWORD"`
	DBName         string  `envconfig:"DB_NAME"`
	DBSSLMode      string  `envconfig:"DB_SSLMODE"`
	JWTSecret      string  `envconfig:"JWT_SECRET"`
	LogLevel       string  `envconfig:"LOG_LEVEL"`
	RedisURL       string  `envconfig:"REDIS_URL"`
	FrontendURL    string  `envconfig:"FRONTEND_URL"`
	EmailProvider  string  `envconfig:"EMAIL_PROVIDER"`
	EmailsFrom     string  `envconfig:"EMAILS_FROM"`
	SMTPHost       string  `envconfig:"SMTP_HOST"`
	SMTPPort       int     `envconfig:"SMTP_PORT"`
	SMTPUser       string  `envconfig:"SMTP_USER"`
	SMTPPassword   string  `envconfig:"SMTP_PASSWORD"`
	SendGridAPIKey string  `envconfig:"SENDGRID_API_KEY"`
	OpenAIAPIKey   string  `envconfig:"OPENAI_API_KEY"`
	OpenAIModel    string  `envconfig:"OPENAI_MODEL"`
	OpenAITemp     float64 `envconfig:"OPENAI_TEMPERATURE"`
}

const envPrefix = "crm"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.max_body_bytes", 2<<20)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("jwt.issuer", "crm-api")
	v.SetDefault("jwt.session_ttl", 30*24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.time_format", time.RFC3339)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"})

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 500*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("worker.health_port", 8081)
	v.SetDefault("worker.outbox.batch_size", 50)
	v.SetDefault("worker.outbox.poll_interval", 2*time.Second)
	v.SetDefault("worker.outbox.retry_attempts", 3)
	v.SetDefault("worker.outbox.retry_delay", 200*time.Millisecond)
	v.SetDefault("worker.outbox.max_retries", 5)
	v.SetDefault("worker.housekeeping.schedule", "0 */15 * * * *")
	v.SetDefault("worker.housekeeping.outbox_retention", 7*24*time.Hour)
	v.SetDefault("worker.housekeeping.timeout", time.Minute)

	v.SetDefault("email.provider", "smtp")
	v.SetDefault("email.from_address", "noreply@example.com")
	v.SetDefault("email.from_name", "CRM")
	v.SetDefault("email.frontend_url", "http://localhost:3000")
	v.SetDefault("email.send_timeout", 30*time.Second)
	v.SetDefault("email.smtp.port", 587)

	v.SetDefault("assistant.base_url", "https://api.openai.com/v1")
	v.SetDefault("assistant.model", "gpt-4o")
	v.SetDefault("assistant.temperature", 0.7)
	v.SetDefault("assistant.max_tokens", 1000)
	v.SetDefault("assistant.timeout", 30*time.Second)
	v.SetDefault("assistant.history_limit", 20)
	v.SetDefault("assistant.breaker_fails", 5)
	v.SetDefault("assistant.breaker_period", 30*time.Second)
}

// LoadConfig reads .env, the config file and CRM_* environment overrides.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")           // current directory
		v.AddConfigPath("./config")    // config subdirectory
		v.AddConfigPath("/app")        // container root directory
		v.AddConfigPath("/app/config") // container config directory
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	setInt(&c.Server.Port, env.ServerPort)
	setString(&c.Server.Mode, env.ServerMode)
	setString(&c.Database.Driver, env.DBDriver)
	setString(&c.Database.Host, env.DBHost)
	setInt(&c.Database.Port, env.DBPort)
	setString(&c.Database.User, env.DBUser)
	setString(&c.Database.Password, env.DBPassword)
	setString(&c.Database.Name, env.DBName)
	setString(&c.Database.SSLMode, env.DBSSLMode)
	setString(&c.JWT.Secret, env.JWTSecret)
	setString(&c.Log.Level, env.LogLevel)
	setString(&c.Redis.URL, env.RedisURL)
	setString(&c.Email.FrontendURL, env.FrontendURL)
	setString(&c.Email.Provider, env.EmailProvider)
	setString(&c.Email.FromAddress, env.EmailsFrom)
	setString(&c.Email.SMTP.Host, env.SMTPHost)
	setInt(&c.Email.SMTP.Port, env.SMTPPort)
	setString(&c.Email.SMTP.Username, env.SMTPUser)
	setString(&c.Email.SMTP.Password, env.SMTPPassword)
	setString(&c.Email.SendGridAPIKey, env.SendGridAPIKey)
	setString(&c.Assistant.APIKey, env.OpenAIAPIKey)
	setString(&c.Assistant.Model, env.OpenAIModel)
	if env.OpenAITemp != 0 {
		c.Assistant.Temperature = env.OpenAITemp
	}
	return nil
}

// Validate rejects configurations the services cannot start with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.JWT.SessionTTL <= 0 {
		return fmt.Errorf("jwt session_ttl must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Email.Provider {
	case "smtp", "sendgrid", "log":
	default:
		return fmt.Errorf("unsupported email provider %q", c.Email.Provider)
	}
	if c.Email.Provider == "sendgrid" && c.Email.SendGridAPIKey == "" {
		return fmt.Errorf("sendgrid provider requires an api key")
	}
	return nil
}

// DSN builds the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		MaxRetries:    c.MaxRetries,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
