package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App        *AppConfig        `yaml:"app"`
	Database   *DatabaseConfig   `yaml:"database"`
	Redis      *RedisConfig      `yaml:"redis"`
	Storage    *StorageConfig    `yaml:"storage"`
	WebSocket  *WebSocketConfig  `yaml:"websocket"`
	Security   *SecurityConfig   `yaml:"security"`
	Auth       *AuthConfig       `yaml:"auth"`
	Membership *MembershipConfig `yaml:"membership"`
}

type AppConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	Environment     string        `yaml:"environment"`
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	BaseURL         string        `yaml:"base_url"`
	Debug           bool          `yaml:"debug"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	LogOutput       string        `yaml:"log_output"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SecurityConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	JWTIssuer          string        `yaml:"jwt_issuer"`
	JWTAccessTokenTTL  time.Duration `yaml:"jwt_access_token_ttl"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	TrustedProxies     []string      `yaml:"trusted_proxies"`
}

// Load reads the configuration from the environment. When CONFIG_FILE points
// to a YAML document, keys present there override the environment values.
func Load() (*Config, error) {
	config := &Config{
		App:        loadAppConfig(),
		Database:   loadDatabaseConfig(),
		Redis:      loadRedisConfig(),
		Storage:    loadStorageConfig(),
		WebSocket:  loadWebSocketConfig(),
		Security:   loadSecurityConfig(),
		Auth:       loadAuthConfig(),
		Membership: loadMembershipConfig(),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Auth.Provider {
	case AuthProviderJWT:
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for the jwt auth provider")
		}
	case AuthProviderFirebase:
	default:
		return fmt.Errorf("unsupported auth provider %q", c.Auth.Provider)
	}
	if c.Membership.MaxRetries < 1 {
		return fmt.Errorf("membership max retries must be at least 1")
	}
	return nil
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:            getEnv("APP_NAME", "RideMate"),
		Version:         getEnv("APP_VERSION", "1.0.0"),
		Environment:     getEnv("APP_ENV", "development"),
		Port:            getEnvAsInt("APP_PORT", 8080),
		Host:            getEnv("APP_HOST", "0.0.0.0"),
		BaseURL:         getEnv("APP_BASE_URL", "http://localhost:8080"),
		Debug:           getEnvAsBool("APP_DEBUG", true),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		LogOutput:       getEnv("LOG_OUTPUT", "stdout"),
		ShutdownTimeout: getEnvAsDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		JWTIssuer:          getEnv("JWT_ISSUER", "ridemate"),
		JWTAccessTokenTTL:  getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
