package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DomainSecrets holds the signing secrets and lifetimes for one
// authentication domain. Access and refresh tokens are signed with
// independent secrets so neither kind verifies against the other.
type DomainSecrets struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// JWTConfig holds JWT configuration. Each authentication domain (system,
// tenant, end-user) gets its own secret pair and expirations so a token
// minted for one domain can never validate in another.
type JWTConfig struct {
	System DomainSecrets
	Tenant DomainSecrets
	User   DomainSecrets
}

// RedisConfig holds the optional session registry configuration. An empty
// Addr disables the registry entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SeedConfig holds the defaults seeded into freshly provisioned schemas.
type SeedConfig struct {
	AdminUsername string
	AdminPassword string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// Config holds all configuration
type Config struct {
	DB      DBConfig
	Server  ServerConfig
	JWT     JWTConfig
	Redis   RedisConfig
	Seed    SeedConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "saas_admin"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		JWT: JWTConfig{
			System: DomainSecrets{
				AccessSecret:  getEnv("JWT_SYSTEM_ACCESS_SECRET", "system-access-secret"),
				RefreshSecret: getEnv("JWT_SYSTEM_REFRESH_SECRET", "system-refresh-secret"),
				AccessTTL:     getEnvAsDuration("JWT_SYSTEM_ACCESS_TTL", 12*time.Hour),
				RefreshTTL:    getEnvAsDuration("JWT_SYSTEM_REFRESH_TTL", 7*24*time.Hour),
			},
			Tenant: DomainSecrets{
				AccessSecret:  getEnv("JWT_TENANT_ACCESS_SECRET", "tenant-access-secret"),
				RefreshSecret: getEnv("JWT_TENANT_REFRESH_SECRET", "tenant-refresh-secret"),
				AccessTTL:     getEnvAsDuration("JWT_TENANT_ACCESS_TTL", 12*time.Hour),
				RefreshTTL:    getEnvAsDuration("JWT_TENANT_REFRESH_TTL", 7*24*time.Hour),
			},
			User: DomainSecrets{
				AccessSecret:  getEnv("JWT_USER_ACCESS_SECRET", "user-access-secret"),
				RefreshSecret: getEnv("JWT_USER_REFRESH_SECRET", "user-refresh-secret"),
				AccessTTL:     getEnvAsDuration("JWT_USER_ACCESS_TTL", 12*time.Hour),
				RefreshTTL:    getEnvAsDuration("JWT_USER_REFRESH_TTL", 7*24*time.Hour),
			},
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Seed: SeedConfig{
			AdminUsername: getEnv("SEED_ADMIN_USERNAME", "admin"),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", "admin123"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "saas_admin"),
		},
	}

	return config, nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.Bool("session_registry", c.Redis.Addr != ""),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
