package config

import (
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/messledger/internal/model"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBPath != "messledger.db" {
		t.Errorf("port/db = %q/%q", cfg.Port, cfg.DBPath)
	}
	if cfg.MealWeighting != model.WeightingUnit {
		t.Errorf("weighting = %q, want unit", cfg.MealWeighting)
	}
	if cfg.CloseRateLimit != 10 || cfg.TokenTTL != 24*time.Hour {
		t.Errorf("rate limit/ttl = %d/%v", cfg.CloseRateLimit, cfg.TokenTTL)
	}
	if cfg.S3.Configured() {
		t.Error("S3 should not be configured by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"MESSLEDGER_PORT":           "9000",
		"MESSLEDGER_MEAL_WEIGHTING": "slot",
		"MESSLEDGER_LOG_FORMAT":     "json",
		"MESSLEDGER_TOKEN_TTL":      "2h",
		"MESSLEDGER_S3_BUCKET":      "reports",
		"MESSLEDGER_S3_ACCESS_KEY":  "ak",
		"MESSLEDGER_S3_SECRET_KEY":  "sk",
	}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Port != "9000" || cfg.MealWeighting != model.WeightingSlot || cfg.LogFormat != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Errorf("ttl = %v, want 2h", cfg.TokenTTL)
	}
	if !cfg.S3.Configured() {
		t.Error("S3 should be configured")
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	if _, err := LoadFrom(envMap(map[string]string{"MESSLEDGER_CLOSE_RATE_LIMIT": "ten"})); err == nil {
		t.Error("expected error for non-numeric rate limit")
	}
	if _, err := LoadFrom(envMap(map[string]string{"MESSLEDGER_TOKEN_TTL": "forever"})); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, _ := LoadFrom(envMap(map[string]string{"MESSLEDGER_JWT_SECRET": "0123456789abcdef"}))
		return cfg
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 16"},
		{"weighting", func(c *Config) { c.MealWeighting = "half" }, "MEAL_WEIGHTING"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"rate limit", func(c *Config) { c.CloseRateLimit = 0 }, "CLOSE_RATE_LIMIT"},
		{"archive passphrase", func(c *Config) {
			c.S3 = S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}
		}, "ARCHIVE_PASSPHRASE"},
		{"postmark from", func(c *Config) { c.PostmarkToken = "tok" }, "POSTMARK_FROM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadAllowedOrigins(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"MESSLEDGER_ALLOWED_ORIGINS": "mess.example.com, , localhost:5173",
	}))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	want := []string{"mess.example.com", "localhost:5173"}
	if strings.Join(cfg.AllowedOrigins, ",") != strings.Join(want, ",") {
		t.Errorf("origins = %v, want %v", cfg.AllowedOrigins, want)
	}
}
