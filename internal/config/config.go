package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	Auth       AuthConfig       `yaml:"auth"`
	Slack      SlackConfig      `yaml:"slack"`
	Automation AutomationConfig `yaml:"automation"`
	Pin        PinConfig        `yaml:"pin"`
	Jobs       JobsConfig       `yaml:"jobs"`
}

type AppConfig struct {
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Mode            string        `yaml:"mode"`
	BasePath        string        `yaml:"base_path"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	SwaggerEnabled  bool          `yaml:"swagger_enabled"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	RetryMax        int           `yaml:"retry_max"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	AnonKey   string `yaml:"anon_key"`
}

type SlackConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	APIBaseURL string        `yaml:"api_base_url"`
}

type AutomationConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

type PinConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type JobsConfig struct {
	DueSoonSchedule    string        `yaml:"due_soon_schedule"`
	DueSoonWindow      time.Duration `yaml:"due_soon_window"`
	PinCleanupSchedule string        `yaml:"pin_cleanup_schedule"`
	MetricsSchedule    string        `yaml:"metrics_schedule"`
}

// Default returns the configuration used when no file or environment value overrides a field.
func Default() *Config {
	return &Config{
		App: AppConfig{URL: "http://localhost:3000"},
		Server: ServerConfig{
			Port:            "8000",
			Mode:            "debug",
			BasePath:        "/api",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Logger: LoggerConfig{Level: "info"},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			RetryMax:        2,
		},
		Slack: SlackConfig{
			Timeout:    5 * time.Second,
			APIBaseURL: "https://slack.com/api",
		},
		Automation: AutomationConfig{MaxDepth: 3},
		Pin:        PinConfig{TTL: 15 * time.Minute, MaxAttempts: 5},
		Jobs: JobsConfig{
			DueSoonSchedule:    "@hourly",
			DueSoonWindow:      24 * time.Hour,
			PinCleanupSchedule: "*/5 * * * *",
			MetricsSchedule:    "@every 1m",
		},
	}
}

// Load reads the YAML file at path (missing files are ignored), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString("APP_URL", &c.App.URL)
	setString("DATA_URL", &c.Database.DSN)
	setString("DATA_ANON_KEY", &c.Auth.AnonKey)
	setString("DATA_SERVICE_KEY", &c.Auth.JWTSecret)
	setMillis("SLACK_TIMEOUT_MS", &c.Slack.Timeout)
	setInt("AUTOMATION_MAX_DEPTH", &c.Automation.MaxDepth)
	if v, ok := lookupInt("PIN_TTL_MINUTES"); ok {
		c.Pin.TTL = time.Duration(v) * time.Minute
	}

	setString("SERVER_PORT", &c.Server.Port)
	setString("SERVER_MODE", &c.Server.Mode)
	setString("SERVER_BASE_PATH", &c.Server.BasePath)
	setMillis("REQUEST_TIMEOUT_MS", &c.Server.RequestTimeout)
	setBool("SWAGGER_ENABLED", &c.Server.SwaggerEnabled)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	setString("LOG_LEVEL", &c.Logger.Level)

	setInt("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	setInt("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	setInt("DB_RETRY_MAX", &c.Database.RetryMax)

	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_URL", &c.Redis.URL)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setInt("REDIS_DB", &c.Redis.DB)
	setString("NATS_URL", &c.NATS.URL)

	setString("DUE_SOON_CRON", &c.Jobs.DueSoonSchedule)
	if v, ok := lookupInt("DUE_SOON_WINDOW_HOURS"); ok {
		c.Jobs.DueSoonWindow = time.Duration(v) * time.Hour
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("config: database dsn is required (DATA_URL)")
	}
	if c.Auth.JWTSecret == "" && c.Server.Mode == "release" {
		return errors.New("config: jwt secret is required in release mode (DATA_SERVICE_KEY)")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("config: request timeout must be positive")
	}
	if c.Slack.Timeout <= 0 {
		return errors.New("config: slack timeout must be positive")
	}
	if c.Automation.MaxDepth < 1 {
		return errors.New("config: automation max depth must be at least 1")
	}
	if c.Pin.TTL <= 0 {
		return errors.New("config: pin ttl must be positive")
	}
	if c.Database.RetryMax < 0 {
		return errors.New("config: db retry max must not be negative")
	}
	return nil
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v, ok := lookupInt(key); ok {
		*dst = v
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setMillis(key string, dst *time.Duration) {
	if v, ok := lookupInt(key); ok {
		*dst = time.Duration(v) * time.Millisecond
	}
}

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
