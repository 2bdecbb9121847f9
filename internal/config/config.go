// Package config loads the service configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"authsession-service/internal/db"
	"authsession-service/internal/pkg/jwt"

	"github.com/spf13/viper"
)

type AppConfig struct {
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	Env       string `mapstructure:"APP_ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPass     string `mapstructure:"REDIS_PASS"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
	RedisCluster  bool   `mapstructure:"REDIS_CLUSTER"`

	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	JWTPrivateKeyPath string        `mapstructure:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string        `mapstructure:"JWT_PUBLIC_KEY_PATH"`
	JWTIssuer         string        `mapstructure:"JWT_ISSUER"`
	JWTAudience       string        `mapstructure:"JWT_AUDIENCE"`
	JWTKID            string        `mapstructure:"JWT_KID"`
	JWTAccessTTL      time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRememberMeTTL  time.Duration `mapstructure:"JWT_REMEMBER_ME_TTL"`
	JWTRefreshTTL     time.Duration `mapstructure:"JWT_REFRESH_TTL"`

	// Session timeouts are in seconds.
	SessionAbsoluteTimeout   int           `mapstructure:"SESSION_ABSOLUTE_TIMEOUT"`
	SessionIdleTimeout       int           `mapstructure:"SESSION_IDLE_TIMEOUT"`
	SessionRememberMeTimeout int           `mapstructure:"SESSION_REMEMBER_ME_TIMEOUT"`
	SessionMaxPerAccount     int           `mapstructure:"SESSION_MAX_PER_ACCOUNT"`
	SessionSweepInterval     time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`

	LoginMaxFailures  int64         `mapstructure:"LOGIN_MAX_FAILURES"`
	LoginLockDuration time.Duration `mapstructure:"LOGIN_LOCK_DURATION"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	BcryptCost         int    `mapstructure:"BCRYPT_COST"`

	// First super admin, created on startup when none exists.
	AdminUsername string `mapstructure:"ADMIN_USERNAME"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
}

var defaults = map[string]any{
	"HTTP_ADDR":  ":8000",
	"APP_ENV":    "development",
	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"DATABASE_URL": "",
	"DB_MAX_CONNS": 10,

	"REDIS_ADDR":      "localhost:6379",
	"REDIS_PASS":      "",
	"REDIS_DB":        0,
	"REDIS_POOL_SIZE": 10,
	"REDIS_CLUSTER":   false,

	"JWT_SECRET":           "",
	"JWT_PRIVATE_KEY_PATH": "",
	"JWT_PUBLIC_KEY_PATH":  "",
	"JWT_ISSUER":           "authsession-service",
	"JWT_AUDIENCE":         "authsession-clients",
	"JWT_KID":              "session-key",
	"JWT_ACCESS_TTL":       "2h",
	"JWT_REMEMBER_ME_TTL":  "720h",
	"JWT_REFRESH_TTL":      "168h",

	"SESSION_ABSOLUTE_TIMEOUT":    28800,
	"SESSION_IDLE_TIMEOUT":        1800,
	"SESSION_REMEMBER_ME_TIMEOUT": 2592000,
	"SESSION_MAX_PER_ACCOUNT":     5,
	"SESSION_SWEEP_INTERVAL":      "10m",

	"LOGIN_MAX_FAILURES":  5,
	"LOGIN_LOCK_DURATION": "30m",

	"CORS_ALLOWED_ORIGINS": "*",
	"BCRYPT_COST":          12,

	"ADMIN_USERNAME": "admin",
	"ADMIN_EMAIL":    "",
	"ADMIN_PASSWORD": "",
}

// Load reads .env when present, then the environment. Environment values win.
func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.RedisAddr == "" {
		return errors.New("config: REDIS_ADDR must be set")
	}
	if c.SessionAbsoluteTimeout <= 0 || c.SessionIdleTimeout <= 0 || c.SessionRememberMeTimeout <= 0 {
		return errors.New("config: session timeouts must be positive")
	}
	if c.SessionMaxPerAccount <= 0 {
		return errors.New("config: SESSION_MAX_PER_ACCOUNT must be positive")
	}
	if c.LoginMaxFailures <= 0 {
		return errors.New("config: LOGIN_MAX_FAILURES must be positive")
	}
	if c.LoginLockDuration <= 0 {
		return errors.New("config: LOGIN_LOCK_DURATION must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if (c.JWTPrivateKeyPath == "") != (c.JWTPublicKeyPath == "") {
		return errors.New("config: JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	return nil
}

func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// JWT returns the token manager configuration.
func (c *AppConfig) JWT() jwt.Config {
	return jwt.Config{
		Secret:        c.JWTSecret,
		PrivPath:      c.JWTPrivateKeyPath,
		PubPath:       c.JWTPublicKeyPath,
		Issuer:        c.JWTIssuer,
		Audience:      c.JWTAudience,
		KID:           c.JWTKID,
		AccessTTL:     c.JWTAccessTTL,
		RememberMeTTL: c.JWTRememberMeTTL,
		RefreshTTL:    c.JWTRefreshTTL,
	}
}

func (c *AppConfig) Redis() db.RedisConfig {
	return db.RedisConfig{
		ClusterMode: c.RedisCluster,
		Addresses:   splitList(c.RedisAddr),
		Password:    c.RedisPass,
		DB:          c.RedisDB,
		PoolSize:    c.RedisPoolSize,
	}
}

func (c *AppConfig) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
