// internal/pkg/jwt/loader.go
package jwt

import (
	"fmt"
	"time"
)

const (
	DefaultAccessTTL     = 2 * time.Hour
	DefaultRememberMeTTL = 30 * 24 * time.Hour
	DefaultRefreshTTL    = 7 * 24 * time.Hour

	minSecretLength = 32
)

// Config selects HS256 when Secret is set and no key paths are given, RS256 otherwise.
type Config struct {
	Secret   string
	PrivPath string
	PubPath  string

	Issuer   string
	Audience string
	KID      string

	AccessTTL     time.Duration
	RememberMeTTL time.Duration
	RefreshTTL    time.Duration
}

type Manager struct {
	Generator *Generator
	Verifier  *Verifier
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func LoadAndBuild(cfg Config, opts ...Option) (*Manager, error) {
	keys, err := loadKeys(cfg)
	if err != nil {
		return nil, err
	}
	return build(keys, cfg, opts...), nil
}

func loadKeys(cfg Config) (keySet, error) {
	if cfg.PrivPath == "" && cfg.PubPath == "" {
		if len(cfg.Secret) < minSecretLength {
			return keySet{}, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
		}
		return hmacKeySet([]byte(cfg.Secret)), nil
	}

	priv, err := LoadRSAPrivateKeyFromPEM(cfg.PrivPath)
	if err != nil {
		return keySet{}, fmt.Errorf("failed to load private key from %s: %w", cfg.PrivPath, err)
	}

	pub, err := LoadRSAPublicKeyFromPEM(cfg.PubPath)
	if err != nil {
		return keySet{}, fmt.Errorf("failed to load public key from %s: %w", cfg.PubPath, err)
	}

	return rsaKeySet(priv, pub), nil
}

func build(keys keySet, cfg Config, opts ...Option) *Manager {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RememberMeTTL <= 0 {
		cfg.RememberMeTTL = DefaultRememberMeTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	return &Manager{
		Generator: newGenerator(keys, cfg, o.now),
		Verifier:  newVerifier(keys, cfg.Issuer, cfg.Audience, o.now),
	}
}

func (m *Manager) Issue(accountID int64, display Display, sessionID string, rememberMe bool) (*IssuedToken, error) {
	return m.Generator.Issue(accountID, display, sessionID, rememberMe)
}

func (m *Manager) IssueRefresh(accountID int64, sessionID string, rememberMe bool) (*IssuedToken, error) {
	return m.Generator.IssueRefresh(accountID, sessionID, rememberMe)
}

func (m *Manager) Verify(token string) (*Claims, error) {
	return m.Verifier.Verify(token)
}

func (m *Manager) RemainingTTL(token string) time.Duration {
	return m.Verifier.RemainingTTL(token)
}
