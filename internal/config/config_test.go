package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

var knownEnvKeys = []string{
	"APP_ENV", "APP_HTTP_ADDR", "ENV", "STORE_BACKEND", "DATABASE_DSN",
	"RULE_FILE", "NATS_URL", "NATS_BUCKET", "ADMIN_API_KEY", "SAMPLE_SALT",
	"EVAL_RATE_LIMIT", "EVAL_RATE_WINDOW", "LOG_LEVEL", "LOG_PRETTY",
	"WEBHOOK_URLS", "WEBHOOK_SECRET", "AUDIT_LOG_FILE", "AUDIT_REDACT_KEYS",
	"SHUTDOWN_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range knownEnvKeys {
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("Expected AppEnv='dev', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr=':8080', got '%s'", cfg.HTTPAddr)
	}
	if cfg.Env != "prod" {
		t.Errorf("Expected Env='prod', got '%s'", cfg.Env)
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("Expected StoreBackend='memory', got '%s'", cfg.StoreBackend)
	}
	if cfg.AdminAPIKey != "admin-123" {
		t.Errorf("Expected AdminAPIKey='admin-123', got '%s'", cfg.AdminAPIKey)
	}
	if cfg.EvalRateLimit != 300 {
		t.Errorf("Expected EvalRateLimit=300, got %d", cfg.EvalRateLimit)
	}
	if cfg.EvalRateWindow != time.Minute {
		t.Errorf("Expected EvalRateWindow=1m, got %v", cfg.EvalRateWindow)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel='info', got '%s'", cfg.LogLevel)
	}
	if cfg.SampleSalt == "" {
		t.Error("SampleSalt should be auto-generated when unset")
	}
	if !cfg.sampleSaltGenerated {
		t.Error("sampleSaltGenerated should be true when SAMPLE_SALT is unset")
	}
	wantRedact := []string{"password", "token", "secret", "api_key"}
	if !reflect.DeepEqual(cfg.AuditRedactKeys, wantRedact) {
		t.Errorf("Expected AuditRedactKeys=%v, got %v", wantRedact, cfg.AuditRedactKeys)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("APP_ENV", "test")
	os.Setenv("APP_HTTP_ADDR", ":9999")
	os.Setenv("ENV", "staging")
	os.Setenv("STORE_BACKEND", "nats")
	os.Setenv("NATS_BUCKET", "custom-rules")
	os.Setenv("ADMIN_API_KEY", "custom-key")
	os.Setenv("SAMPLE_SALT", "fixed-salt")
	os.Setenv("EVAL_RATE_LIMIT", "42")
	os.Setenv("WEBHOOK_URLS", "https://a.example.com/hook, https://b.example.com/hook")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "test" {
		t.Errorf("Expected AppEnv='test', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTPAddr=':9999', got '%s'", cfg.HTTPAddr)
	}
	if cfg.Env != "staging" {
		t.Errorf("Expected Env='staging', got '%s'", cfg.Env)
	}
	if cfg.StoreBackend != "nats" {
		t.Errorf("Expected StoreBackend='nats', got '%s'", cfg.StoreBackend)
	}
	if cfg.NATSBucket != "custom-rules" {
		t.Errorf("Expected NATSBucket='custom-rules', got '%s'", cfg.NATSBucket)
	}
	if cfg.SampleSalt != "fixed-salt" {
		t.Errorf("Expected SampleSalt='fixed-salt', got '%s'", cfg.SampleSalt)
	}
	if cfg.sampleSaltGenerated {
		t.Error("sampleSaltGenerated should be false when SAMPLE_SALT is set")
	}
	if cfg.EvalRateLimit != 42 {
		t.Errorf("Expected EvalRateLimit=42, got %d", cfg.EvalRateLimit)
	}
	wantURLs := []string{"https://a.example.com/hook", "https://b.example.com/hook"}
	if !reflect.DeepEqual(cfg.WebhookURLs, wantURLs) {
		t.Errorf("Expected WebhookURLs=%v, got %v", wantURLs, cfg.WebhookURLs)
	}
}

func TestLoad_MissingEnvFileIsAcceptable(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not fail when .env is missing: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AppEnv:         "dev",
			HTTPAddr:       ":8080",
			Env:            "prod",
			StoreBackend:   "memory",
			AdminAPIKey:    "admin-123",
			SampleSalt:     "salt",
			EvalRateLimit:  100,
			EvalRateWindow: time.Minute,
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad backend", mutate: func(c *Config) { c.StoreBackend = "redis" }, wantField: "STORE_BACKEND"},
		{name: "postgres needs dsn", mutate: func(c *Config) { c.StoreBackend = "postgres" }, wantField: "DATABASE_DSN"},
		{name: "file needs path", mutate: func(c *Config) { c.StoreBackend = "file"; c.RuleFile = "" }, wantField: "RULE_FILE"},
		{name: "nats needs url", mutate: func(c *Config) { c.StoreBackend = "nats"; c.NATSBucket = "b" }, wantField: "NATS_URL"},
		{name: "empty http addr", mutate: func(c *Config) { c.HTTPAddr = "" }, wantField: "APP_HTTP_ADDR"},
		{name: "empty env", mutate: func(c *Config) { c.Env = "" }, wantField: "ENV"},
		{name: "negative rate limit", mutate: func(c *Config) { c.EvalRateLimit = -1 }, wantField: "EVAL_RATE_LIMIT"},
		{name: "zero window with limit", mutate: func(c *Config) { c.EvalRateWindow = 0 }, wantField: "EVAL_RATE_WINDOW"},
		{name: "webhooks need secret", mutate: func(c *Config) { c.WebhookURLs = []string{"https://x"} }, wantField: "WEBHOOK_SECRET"},
		{name: "empty salt", mutate: func(c *Config) { c.SampleSalt = "" }, wantField: "SAMPLE_SALT"},
		{name: "prod default admin key", mutate: func(c *Config) { c.AppEnv = "prod" }, wantField: "ADMIN_API_KEY"},
		{name: "prod generated salt", mutate: func(c *Config) {
			c.AppEnv = "prod"
			c.AdminAPIKey = "real-key"
			c.sampleSaltGenerated = true
		}, wantField: "SAMPLE_SALT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Fatalf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}
