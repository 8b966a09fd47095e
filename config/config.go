package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/arp-template-pdp/internal/version"
)

// Policy modes understood by the evaluator
const (
	PolicyModeAllowAll = "allow_all"
	PolicyModeFile     = "file"
)

// Auth modes for the decide endpoint
const (
	AuthModeDisabled = "disabled"
	AuthModeRequired = "required"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Service       ServiceConfig
	Policy        PolicyConfig
	Auth          AuthConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	AllowedOrigins  []string
}

// ServiceConfig holds the identity reported by the version endpoint
type ServiceConfig struct {
	Name    string
	Version string
}

// PolicyConfig selects how decisions are made.
// Mode is kept verbatim; normalisation and rejection of unknown modes happen at decision time.
type PolicyConfig struct {
	Mode string // ARP_POLICY_MODE
	Path string // ARP_POLICY_PATH
}

// NormalizedMode returns the trimmed, lower-cased mode, defaulting to allow_all
func (p PolicyConfig) NormalizedMode() string {
	mode := strings.ToLower(strings.TrimSpace(p.Mode))
	if mode == "" {
		return PolicyModeAllowAll
	}
	return mode
}

// NormalizedPath returns the trimmed policy path
func (p PolicyConfig) NormalizedPath() string {
	return strings.TrimSpace(p.Path)
}

// AuthConfig holds bearer-token settings for the decide endpoint
type AuthConfig struct {
	Mode       string
	HMACSecret string
	Issuer     string
	Audience   string
	// RequiredScope, when set, must appear in the token's scopes claim
	RequiredScope string
}

// Enabled reports whether bearer tokens are required
func (a AuthConfig) Enabled() bool {
	return a.Mode == AuthModeRequired
}

// AuditConfig holds the optional decision audit trail configuration
type AuditConfig struct {
	Enabled         bool
	Driver          string // postgres or sqlite
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BufferSize      int
	WorkerCount     int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Load()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Load reads the configuration from the environment without validating it
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
		},
		Service: ServiceConfig{
			Name:    getEnv("ARP_SERVICE_NAME", "arp-template-pdp"),
			Version: getEnv("ARP_SERVICE_VERSION", version.Version),
		},
		Policy: LoadPolicyConfig(),
		Auth: AuthConfig{
			Mode:          strings.ToLower(getEnv("ARP_AUTH_MODE", AuthModeDisabled)),
			HMACSecret:    getEnv("ARP_AUTH_HMAC_SECRET", ""),
			Issuer:        getEnv("ARP_AUTH_ISSUER", ""),
			Audience:      getEnv("ARP_AUTH_AUDIENCE", ""),
			RequiredScope: getEnv("ARP_AUTH_REQUIRED_SCOPE", ""),
		},
		Audit: AuditConfig{
			Enabled:         getEnvAsBool("AUDIT_ENABLED", false),
			Driver:          strings.ToLower(getEnv("AUDIT_DB_DRIVER", "postgres")),
			DatabaseURL:     getEnv("AUDIT_DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("AUDIT_DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("AUDIT_DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("AUDIT_DB_CONN_MAX_LIFETIME", 5*time.Minute),
			BufferSize:      getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount:     getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// LoadPolicyConfig reads ARP_POLICY_MODE and ARP_POLICY_PATH
func LoadPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Mode: os.Getenv("ARP_POLICY_MODE"),
		Path: os.Getenv("ARP_POLICY_PATH"),
	}
}

// Validate checks if all required configuration fields are set.
// The policy mode is deliberately not validated here: an unknown mode must
// still start the service and then deny every request.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}

	switch c.Auth.Mode {
	case AuthModeDisabled:
	case AuthModeRequired:
		if c.Auth.HMACSecret == "" {
			return fmt.Errorf("ARP_AUTH_HMAC_SECRET is required when ARP_AUTH_MODE=required")
		}
	default:
		return fmt.Errorf("unsupported ARP_AUTH_MODE: %s", c.Auth.Mode)
	}

	if c.Audit.Enabled {
		if c.Audit.Driver != "postgres" && c.Audit.Driver != "sqlite" {
			return fmt.Errorf("unsupported AUDIT_DB_DRIVER: %s", c.Audit.Driver)
		}
		if c.Audit.DatabaseURL == "" {
			return fmt.Errorf("AUDIT_DATABASE_URL is required when AUDIT_ENABLED=true")
		}
		if c.Audit.BufferSize <= 0 || c.Audit.WorkerCount <= 0 {
			return fmt.Errorf("audit buffer size and worker count must be positive")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogString returns a safe string for logging (no password)
func (c *AuditConfig) LogString() string {
	if c.Driver == "sqlite" {
		return "sqlite:" + c.DatabaseURL
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil || u.Host == "" {
		return "host=<from AUDIT_DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8086)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8086
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
