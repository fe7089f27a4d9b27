// Package config reads the MESSLEDGER_* environment into a typed Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/messledger/internal/logging"
	"github.com/dukerupert/messledger/internal/model"
)

const prefix = "MESSLEDGER_"

type Config struct {
	Port     string
	DBPath   string
	LogLevel string
	// LogFormat is text, json or tint.
	LogFormat string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	MealWeighting model.Weighting
	// CloseRateLimit caps validate/close calls per member per minute.
	CloseRateLimit int

	S3                S3Config
	ArchivePassphrase string

	PostmarkToken  string
	PostmarkFrom   string
	CurrencySymbol string

	// AllowedOrigins are the cross-origin hosts allowed to open /ws.
	AllowedOrigins []string
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Configured reports whether enough is set to upload archives.
func (c S3Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv, applying defaults.
func LoadFrom(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(prefix + key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:              get("PORT", "8080"),
		DBPath:            get("DB_PATH", "messledger.db"),
		LogLevel:          get("LOG_LEVEL", "info"),
		LogFormat:         get("LOG_FORMAT", logging.FormatText),
		JWTSecret:         get("JWT_SECRET", ""),
		JWTIssuer:         get("JWT_ISSUER", "messledger"),
		MealWeighting:     model.Weighting(get("MEAL_WEIGHTING", string(model.WeightingUnit))),
		ArchivePassphrase: get("ARCHIVE_PASSPHRASE", ""),
		PostmarkToken:     get("POSTMARK_SERVER_TOKEN", ""),
		PostmarkFrom:      get("POSTMARK_FROM", ""),
		CurrencySymbol:    get("CURRENCY_SYMBOL", "৳"),
		S3: S3Config{
			Endpoint:  get("S3_ENDPOINT", ""),
			Bucket:    get("S3_BUCKET", ""),
			Region:    get("S3_REGION", "us-east-1"),
			AccessKey: get("S3_ACCESS_KEY", ""),
			SecretKey: get("S3_SECRET_KEY", ""),
		},
	}

	for _, o := range strings.Split(get("ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	var err error
	if cfg.TokenTTL, err = time.ParseDuration(get("TOKEN_TTL", "24h")); err != nil {
		return cfg, fmt.Errorf("parse %sTOKEN_TTL: %w", prefix, err)
	}
	if cfg.CloseRateLimit, err = strconv.Atoi(get("CLOSE_RATE_LIMIT", "10")); err != nil {
		return cfg, fmt.Errorf("parse %sCLOSE_RATE_LIMIT: %w", prefix, err)
	}
	return cfg, nil
}

// Validate checks settings the server cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("%sJWT_SECRET is required", prefix))
	} else if len(c.JWTSecret) < 16 {
		errs = append(errs, fmt.Errorf("%sJWT_SECRET must be at least 16 characters", prefix))
	}
	if !c.MealWeighting.Valid() {
		errs = append(errs, fmt.Errorf("%sMEAL_WEIGHTING %q: want unit or slot", prefix, c.MealWeighting))
	}
	if !logging.ValidFormat(c.LogFormat) {
		errs = append(errs, fmt.Errorf("%sLOG_FORMAT %q: want text, json or tint", prefix, c.LogFormat))
	}
	if c.CloseRateLimit < 1 {
		errs = append(errs, fmt.Errorf("%sCLOSE_RATE_LIMIT must be positive", prefix))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("%sTOKEN_TTL must be positive", prefix))
	}
	if c.S3.Configured() && c.ArchivePassphrase == "" {
		errs = append(errs, fmt.Errorf("%sARCHIVE_PASSPHRASE is required when S3 is configured", prefix))
	}
	if c.PostmarkToken != "" && c.PostmarkFrom == "" {
		errs = append(errs, fmt.Errorf("%sPOSTMARK_FROM is required when POSTMARK_SERVER_TOKEN is set", prefix))
	}
	return errors.Join(errs...)
}
