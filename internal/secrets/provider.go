package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SecretSource defines where secrets are loaded from
type SecretSource string

const (
	SourceEnvironment SecretSource = "environment"
	SourceVault       SecretSource = "vault"
	// SourceAuto resolves to vault outside development
	SourceAuto SecretSource = "auto"
)

const defaultCacheTTL = 5 * time.Minute

// Store reads a single secret value by name
type Store interface {
	Get(ctx context.Context, name string) (string, error)
}

// envStore reads secrets from process environment variables
type envStore struct{}

func (envStore) Get(_ context.Context, name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("environment variable '%s' not set", name)
	}
	return value, nil
}

// Provider resolves secrets from a Store with an optional TTL cache
type Provider struct {
	source SecretSource
	store  Store
	logger *zap.Logger

	cacheEnabled bool
	cacheTTL     time.Duration
	mu           sync.Mutex
	cache        map[string]cachedSecret
	now          func() time.Time
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// ProviderConfig holds configuration for the secrets provider
type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ResolveSource maps SourceAuto to a concrete source for the environment
func ResolveSource(source SecretSource, environment string) SecretSource {
	if source != SourceAuto {
		return source
	}
	switch environment {
	case "development", "local", "test", "":
		return SourceEnvironment
	default:
		return SourceVault
	}
}

// NewProvider creates a provider backed by environment variables or Azure Key Vault
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	source := ResolveSource(cfg.Source, cfg.Environment)

	var store Store
	switch source {
	case SourceEnvironment:
		store = envStore{}
	case SourceVault:
		vault, err := NewVaultStore(cfg.VaultName, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vault client: %w", err)
		}
		store = vault
	default:
		return nil, fmt.Errorf("unknown secret source: %s", source)
	}

	logger.Info("Secrets provider initialized",
		zap.String("source", string(source)),
		zap.String("environment", cfg.Environment),
		zap.Bool("cache_enabled", cfg.CacheEnabled),
	)

	return NewProviderWithStore(source, store, cfg.CacheEnabled, cfg.CacheTTL, logger), nil
}

// NewProviderWithStore wraps an existing store
func NewProviderWithStore(source SecretSource, store Store, cacheEnabled bool, cacheTTL time.Duration, logger *zap.Logger) *Provider {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Provider{
		source:       source,
		store:        store,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		cache:        make(map[string]cachedSecret),
		now:          time.Now,
	}
}

// GetSecret retrieves a secret by name, consulting the cache first
func (p *Provider) GetSecret(ctx context.Context, name string) (string, error) {
	if p.cacheEnabled {
		p.mu.Lock()
		cached, ok := p.cache[name]
		if ok && p.now().Before(cached.expiresAt) {
			p.mu.Unlock()
			p.logger.Debug("Secret retrieved from cache", zap.String("secret_name", name))
			return cached.value, nil
		}
		delete(p.cache, name)
		p.mu.Unlock()
	}

	value, err := p.store.Get(ctx, name)
	if err != nil {
		return "", err
	}

	if p.cacheEnabled {
		p.mu.Lock()
		p.cache[name] = cachedSecret{value: value, expiresAt: p.now().Add(p.cacheTTL)}
		p.mu.Unlock()
	}
	return value, nil
}

// GetSecretOrEnv prefers an explicitly set environment variable over the configured source
func (p *Provider) GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error) {
	if envValue := os.Getenv(envName); envValue != "" {
		p.logger.Debug("Using environment variable override", zap.String("env_name", envName))
		return envValue, nil
	}
	return p.GetSecret(ctx, secretName)
}

// Source returns the resolved secret source
func (p *Provider) Source() SecretSource {
	return p.source
}
