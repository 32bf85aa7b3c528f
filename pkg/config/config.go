package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Auth       AuthConfig
	Mail       MailConfig
	Storage    StorageConfig
	Routes     RoutesConfig
	Tariff     TariffConfig
	Vehicles   VehiclesConfig
	Events     EventsConfig
	RateLimit  RateLimitConfig
	Resilience ResilienceConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration. When neither DATABASE_URL nor
// DB_HOST is set the API boots without persistence and serves health/docs only.
type DatabaseConfig struct {
	URL            string
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	MigrationsPath string
	AutoMigrate    bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// AuthConfig holds identity subsystem settings
type AuthConfig struct {
	AllowedEmailDomain      string
	MinPasswordLength       int
	PasswordResetTTLMinutes int
	BcryptCost              int
}

// MailConfig holds SMTP sender settings
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// StorageConfig holds blob storage settings for vehicle documents
type StorageConfig struct {
	Provider      string // local | s3
	UploadsDir    string
	MaxFileSizeMB int
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3BaseURL     string
}

// RoutesConfig holds route provider and cache settings
type RoutesConfig struct {
	Provider              string // ors | osrm | google
	ORSAPIKey             string
	ORSBaseURL            string
	OSRMBaseURL           string
	GoogleAPIKey          string
	CacheTTLMinutes       int
	RequestTimeoutSeconds int
}

// TariffConfig holds the linear tariff model coefficients (COP)
type TariffConfig struct {
	BaseBoarding float64
	PerKm        float64
	PerMinute    float64
	RangePercent float64
}

// VehiclesConfig holds vehicle registry bounds
type VehiclesConfig struct {
	MinCapacity int
	MaxCapacity int
}

// EventsConfig holds NATS event bus settings
type EventsConfig struct {
	Enabled    bool
	URL        string
	StreamName string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	WindowSeconds     int
	DefaultLimit      int
	AnonymousLimit    int
	RedisPrefix       string
	EndpointOverrides map[string]EndpointRateLimitConfig
}

// EndpointRateLimitConfig allows customizing limits per endpoint
type EndpointRateLimitConfig struct {
	AuthenticatedLimit int `json:"authenticated_limit"`
	AnonymousLimit     int `json:"anonymous_limit"`
	WindowSeconds      int `json:"window_seconds"`
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-provider breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream provider
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			Host:           getEnv("DB_HOST", ""),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "ridesharing"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 5),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
			AutoMigrate:    getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			ExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 168),
		},
		Auth: AuthConfig{
			AllowedEmailDomain:      getEnv("ALLOWED_EMAIL_DOMAIN", "unisabana.edu.co"),
			MinPasswordLength:       getEnvAsInt("MIN_PASSWORD_LENGTH", 8),
			PasswordResetTTLMinutes: getEnvAsInt("PASSWORD_RESET_TTL_MINUTES", 15),
			BcryptCost:              getEnvAsInt("BCRYPT_COST", 10),
		},
		Mail: MailConfig{
			Enabled:  getEnvAsBool("MAIL_ENABLED", false),
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "no-reply@sabanago.co"),
		},
		Storage: StorageConfig{
			Provider:      getEnv("STORAGE_PROVIDER", "local"),
			UploadsDir:    getEnv("UPLOADS_DIR", "./uploads"),
			MaxFileSizeMB: getEnvAsInt("UPLOAD_MAX_SIZE_MB", 5),
			S3Bucket:      getEnv("S3_BUCKET", ""),
			S3Region:      getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:    getEnv("S3_ENDPOINT", ""),
			S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:   getEnv("S3_SECRET_KEY", ""),
			S3BaseURL:     getEnv("S3_BASE_URL", ""),
		},
		Routes: RoutesConfig{
			Provider:              getEnv("ROUTE_PROVIDER", "ors"),
			ORSAPIKey:             getEnv("ORS_API_KEY", ""),
			ORSBaseURL:            getEnv("ORS_BASE_URL", "https://api.openrouteservice.org"),
			OSRMBaseURL:           getEnv("OSRM_BASE_URL", "https://router.project-osrm.org"),
			GoogleAPIKey:          getEnv("GOOGLE_MAPS_API_KEY", ""),
			CacheTTLMinutes:       getEnvAsInt("ROUTE_CACHE_TTL_MINUTES", 15),
			RequestTimeoutSeconds: getEnvAsInt("ROUTE_REQUEST_TIMEOUT_SECONDS", 10),
		},
		Tariff: TariffConfig{
			BaseBoarding: getEnvAsFloat("TARIFF_BASE_BOARDING", 1500),
			PerKm:        getEnvAsFloat("TARIFF_PER_KM", 450),
			PerMinute:    getEnvAsFloat("TARIFF_PER_MINUTE", 80),
			RangePercent: getEnvAsFloat("TARIFF_RANGE_PERCENT", 15),
		},
		Vehicles: VehiclesConfig{
			MinCapacity: getEnvAsInt("VEHICLE_MIN_CAPACITY", 1),
			MaxCapacity: getEnvAsInt("VEHICLE_MAX_CAPACITY", 8),
		},
		Events: EventsConfig{
			Enabled:    getEnvAsBool("NATS_ENABLED", false),
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName: getEnv("NATS_STREAM", "RIDESHARING"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", false),
			WindowSeconds:  getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			DefaultLimit:   getEnvAsInt("RATE_LIMIT_DEFAULT_LIMIT", 120),
			AnonymousLimit: getEnvAsInt("RATE_LIMIT_ANON_LIMIT", 30),
			RedisPrefix:    getEnv("RATE_LIMIT_REDIS_PREFIX", "rate-limit"),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	if overrides := getEnv("RATE_LIMIT_ENDPOINTS", ""); overrides != "" {
		var endpointConfig map[string]EndpointRateLimitConfig
		if err := json.Unmarshal([]byte(overrides), &endpointConfig); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_ENDPOINTS value: %w", err)
		}
		cfg.RateLimit.EndpointOverrides = endpointConfig
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = int((time.Minute).Seconds())
	}

	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		cfg.Auth.BcryptCost = 10
	}

	if cfg.Vehicles.MinCapacity < 1 {
		cfg.Vehicles.MinCapacity = 1
	}
	if cfg.Vehicles.MaxCapacity < cfg.Vehicles.MinCapacity {
		cfg.Vehicles.MaxCapacity = cfg.Vehicles.MinCapacity
	}

	if cfg.Routes.CacheTTLMinutes < 10 {
		cfg.Routes.CacheTTLMinutes = 10
	}

	return cfg, nil
}

// SettingsFor returns effective breaker settings for a specific upstream provider
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if c.ServiceOverrides != nil {
		if override, ok := c.ServiceOverrides[service]; ok {
			if override.FailureThreshold > 0 {
				settings.FailureThreshold = override.FailureThreshold
			}
			if override.SuccessThreshold > 0 {
				settings.SuccessThreshold = override.SuccessThreshold
			}
			if override.TimeoutSeconds > 0 {
				settings.TimeoutSeconds = override.TimeoutSeconds
			}
			if override.IntervalSeconds > 0 {
				settings.IntervalSeconds = override.IntervalSeconds
			}
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// Configured reports whether a database target was supplied at all.
func (c *DatabaseConfig) Configured() bool {
	return c.URL != "" || c.Host != ""
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// MigrateURL returns a database/sql style URL for golang-migrate.
func (c *DatabaseConfig) MigrateURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// PasswordResetTTL returns the reset-token lifetime as a duration.
func (c AuthConfig) PasswordResetTTL() time.Duration {
	if c.PasswordResetTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.PasswordResetTTLMinutes) * time.Minute
}

// JWTExpiry returns the access-token lifetime as a duration.
func (c JWTConfig) JWTExpiry() time.Duration {
	if c.ExpiryHours <= 0 {
		return 168 * time.Hour
	}
	return time.Duration(c.ExpiryHours) * time.Hour
}

// CacheTTL returns the route cache entry lifetime.
func (c RoutesConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// RequestTimeout returns the per-request timeout for provider calls.
func (c RoutesConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// MaxFileSizeBytes returns the per-file upload cap in bytes.
func (c StorageConfig) MaxFileSizeBytes() int64 {
	if c.MaxFileSizeMB <= 0 {
		return 5 << 20
	}
	return int64(c.MaxFileSizeMB) << 20
}

// AllowedOrigins splits the configured CORS origins.
func (c ServerConfig) AllowedOrigins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// Window returns the configured rate limit window duration
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}
