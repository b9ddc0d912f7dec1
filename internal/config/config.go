// Package config loads application configuration from environment variables
// and an optional .env file, using viper with development-friendly defaults.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
// Priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv       string // Application environment (dev, staging, prod)
	HTTPAddr     string // HTTP server bind address (e.g., ":8080")
	Env          string // Rule-set environment to serve (prod, dev, etc.)
	StoreBackend string // Storage backend (memory, postgres, file, nats)
	DatabaseDSN  string // PostgreSQL connection string (postgres backend)
	RuleFile     string // Path to the YAML rule-set file (file backend)
	NATSURL      string // NATS server URL (nats backend)
	NATSBucket   string // NATS KV bucket name (nats backend)

	AdminAPIKey string // API key for write operations
	APIKeysFile string // Optional YAML file with additional API keys
	SampleSalt  string // Salt for deterministic subject bucketing

	EvalRateLimit  int           // Evaluate requests per window per IP (0 disables)
	EvalRateWindow time.Duration // Rate-limit window for evaluation requests

	LogLevel  string // zerolog level (trace, debug, info, warn, error)
	LogPretty bool   // Human-readable console output instead of JSON

	WebhookURLs     []string // Outbound webhook endpoints
	WebhookSecret   string   // HMAC secret for webhook signatures
	AuditLogFile    string   // Path for the JSON-lines audit sink ("" = log sink only)
	AuditRedactKeys []string // Attribute keys scrubbed from audit payloads

	ShutdownTimeout time.Duration // Grace period for in-flight requests on shutdown

	sampleSaltGenerated bool // tracks whether the salt was auto-generated
}

const (
	saltByteSize         = 16 // 128 bits of entropy
	defaultSaltFallback  = "default-random-salt"
	sampleSaltWarningMsg = "WARNING: SAMPLE_SALT not configured. Generated random salt: %s. Subject bucket assignments will change on restart; set SAMPLE_SALT in production."
)

// generateRandomSalt creates a random hex-encoded salt, falling back to a
// fixed value if the system source fails.
func generateRandomSalt() string {
	bytes := make([]byte, saltByteSize)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("ERROR: Failed to generate random salt: %v. Using fallback.", err)
		return defaultSaltFallback
	}
	return hex.EncodeToString(bytes)
}

// Load reads configuration from environment variables and a .env file if one
// is present. It does not enforce production constraints; call Validate for
// that.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // optional; ignored when missing
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setConfigDefaults(v)
	sampleSalt, sampleSaltGenerated := getOrGenerateSampleSalt(v)

	return &Config{
		AppEnv:              v.GetString("APP_ENV"),
		HTTPAddr:            v.GetString("APP_HTTP_ADDR"),
		Env:                 v.GetString("ENV"),
		StoreBackend:        v.GetString("STORE_BACKEND"),
		DatabaseDSN:         v.GetString("DATABASE_DSN"),
		RuleFile:            v.GetString("RULE_FILE"),
		NATSURL:             v.GetString("NATS_URL"),
		NATSBucket:          v.GetString("NATS_BUCKET"),
		AdminAPIKey:         v.GetString("ADMIN_API_KEY"),
		APIKeysFile:         v.GetString("API_KEYS_FILE"),
		SampleSalt:          sampleSalt,
		EvalRateLimit:       v.GetInt("EVAL_RATE_LIMIT"),
		EvalRateWindow:      v.GetDuration("EVAL_RATE_WINDOW"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogPretty:           v.GetBool("LOG_PRETTY"),
		WebhookURLs:         splitList(v.GetString("WEBHOOK_URLS")),
		WebhookSecret:       v.GetString("WEBHOOK_SECRET"),
		AuditLogFile:        v.GetString("AUDIT_LOG_FILE"),
		AuditRedactKeys:     splitList(v.GetString("AUDIT_REDACT_KEYS")),
		ShutdownTimeout:     v.GetDuration("SHUTDOWN_TIMEOUT"),
		sampleSaltGenerated: sampleSaltGenerated,
	}, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("ENV", "prod")
	v.SetDefault("STORE_BACKEND", "memory")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("RULE_FILE", "rulesets.yaml")
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_BUCKET", "condgate-rulesets")
	v.SetDefault("ADMIN_API_KEY", "admin-123") // change in production
	v.SetDefault("API_KEYS_FILE", "")
	v.SetDefault("EVAL_RATE_LIMIT", 300)
	v.SetDefault("EVAL_RATE_WINDOW", time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("WEBHOOK_URLS", "")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("AUDIT_LOG_FILE", "")
	v.SetDefault("AUDIT_REDACT_KEYS", "password,token,secret,api_key")
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
}

// getOrGenerateSampleSalt retrieves SAMPLE_SALT or generates a random one.
// A generated salt changes subject bucketing across restarts, so production
// deployments must set it explicitly; Validate enforces that.
func getOrGenerateSampleSalt(v *viper.Viper) (string, bool) {
	salt := v.GetString("SAMPLE_SALT")
	if salt == "" {
		salt = generateRandomSalt()
		log.Printf(sampleSaltWarningMsg, salt)
		return salt, true
	}
	return salt, false
}

// splitList parses a comma-separated environment value into a slice,
// dropping empty entries.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ValidationError describes a configuration field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks that the configuration can actually run, and applies
// stricter rules when AppEnv is prod. Call it at startup to fail fast.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory", "postgres", "file", "nats":
	default:
		return ValidationError{
			Field:   "STORE_BACKEND",
			Message: fmt.Sprintf("must be 'memory', 'postgres', 'file' or 'nats', got '%s'", c.StoreBackend),
		}
	}

	if c.StoreBackend == "postgres" && c.DatabaseDSN == "" {
		return ValidationError{
			Field:   "DATABASE_DSN",
			Message: "database DSN is required when STORE_BACKEND=postgres",
		}
	}
	if c.StoreBackend == "file" && c.RuleFile == "" {
		return ValidationError{
			Field:   "RULE_FILE",
			Message: "rule file path is required when STORE_BACKEND=file",
		}
	}
	if c.StoreBackend == "nats" {
		if c.NATSURL == "" {
			return ValidationError{
				Field:   "NATS_URL",
				Message: "NATS URL is required when STORE_BACKEND=nats",
			}
		}
		if c.NATSBucket == "" {
			return ValidationError{
				Field:   "NATS_BUCKET",
				Message: "NATS bucket name is required when STORE_BACKEND=nats",
			}
		}
	}

	if c.HTTPAddr == "" {
		return ValidationError{
			Field:   "APP_HTTP_ADDR",
			Message: "HTTP server address cannot be empty",
		}
	}
	if c.Env == "" {
		return ValidationError{
			Field:   "ENV",
			Message: "environment name cannot be empty",
		}
	}
	if c.EvalRateLimit < 0 {
		return ValidationError{
			Field:   "EVAL_RATE_LIMIT",
			Message: "rate limit cannot be negative",
		}
	}
	if c.EvalRateLimit > 0 && c.EvalRateWindow <= 0 {
		return ValidationError{
			Field:   "EVAL_RATE_WINDOW",
			Message: "rate window must be positive when rate limiting is enabled",
		}
	}
	if len(c.WebhookURLs) > 0 && c.WebhookSecret == "" {
		return ValidationError{
			Field:   "WEBHOOK_SECRET",
			Message: "webhook secret is required when webhook URLs are configured",
		}
	}
	if c.SampleSalt == "" {
		return ValidationError{
			Field:   "SAMPLE_SALT",
			Message: "sample salt cannot be empty (required for consistent subject bucketing)",
		}
	}

	if c.AppEnv == "prod" || c.AppEnv == "production" {
		if c.AdminAPIKey == "admin-123" {
			return ValidationError{
				Field:   "ADMIN_API_KEY",
				Message: "default admin API key 'admin-123' is not allowed in production",
			}
		}
		if c.sampleSaltGenerated {
			return ValidationError{
				Field:   "SAMPLE_SALT",
				Message: "sample salt must be explicitly configured in production (not auto-generated). Set SAMPLE_SALT.",
			}
		}
	}

	return nil
}
