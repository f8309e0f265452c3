package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported storage drivers
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Supported session stores
const (
	SessionStoreCookie = "cookie"
	SessionStoreRedis  = "redis"
)

// Development-only secrets. Validate refuses them in release mode.
const (
	defaultJWTSecret     = "default-jwt-secret-change-me"
	defaultSessionSecret = "default-secret-key-change-me"
)

type Config struct {
	Port     string `yaml:"port"`
	GinMode  string `yaml:"gin_mode"`
	LogLevel string `yaml:"log_level"`

	DBDriver      string `yaml:"db_driver"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	DBHost        string `yaml:"db_host"`
	DBPort        string `yaml:"db_port"`
	DBUser        string `yaml:"db_user"`
	DBPassword    string `yaml:"db_password"`
	DBName        string `yaml:"db_name"`
	SQLitePath    string `yaml:"sqlite_path"`

	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpire time.Duration `yaml:"jwt_expire"`

	SessionStore  string `yaml:"session_store"`
	SessionSecret string `yaml:"session_secret"`
	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`

	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:          "5000",
		GinMode:       "debug",
		LogLevel:      "info",
		DBDriver:      DriverMongo,
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "task_management",
		DBHost:        "localhost",
		DBPort:        "5432",
		DBUser:        "taskuser",
		DBPassword:    "taskpassword",
		DBName:        "task_management",
		SQLitePath:    "taskhub.db",
		JWTSecret:     defaultJWTSecret,
		JWTExpire:     30 * 24 * time.Hour,
		SessionStore:  SessionStoreCookie,
		SessionSecret: defaultSessionSecret,
		RedisHost:     "localhost",
		RedisPort:     "6379",
		OpenAIModel:   "gpt-4o",
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is read first if present.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if err := cfg.loadFile(configFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGO_DATABASE", c.MongoDatabase)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.SessionStore = getEnv("SESSION_STORE", c.SessionStore)
	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = getEnv("REDIS_PORT", c.RedisPort)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)

	if raw := os.Getenv("JWT_EXPIRE"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid JWT_EXPIRE %q: %w", raw, err)
		}
		c.JWTExpire = d
	}

	return nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMongo, DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.SessionStore {
	case SessionStoreCookie, SessionStoreRedis:
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.SessionStore)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.JWTExpire <= 0 {
		return fmt.Errorf("JWT_EXPIRE must be positive")
	}
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in release mode")
		}
		if c.SessionSecret == "" || c.SessionSecret == defaultSessionSecret {
			return fmt.Errorf("SESSION_SECRET must be set in release mode")
		}
	}
	return nil
}

// IsProduction reports whether the server runs in release mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
