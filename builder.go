package authority

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Samson23-ux/authority/credential"
	"github.com/Samson23-ux/authority/internal/rate"
	"github.com/Samson23-ux/authority/jwt"
	"github.com/Samson23-ux/authority/password"
)

// Builder assembles an [Authority]. Obtain one with [New], chain the WithX
// calls, then call [Builder.Build] exactly once.
type Builder struct {
	config Config
	redis  *redis.Client
	logger *zap.Logger

	store      credential.Store
	identities IdentityProvider
	auditSink  AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client used for rate limiting.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the refresh-credential store.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithIdentityProvider sets the account lookup backend.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identities = p
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles validation latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires all components, and returns the
// Authority. When the reaper is enabled its background loop starts here;
// call [Authority.Close] to stop it.
func (b *Builder) Build() (*Authority, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	if b.identities == nil {
		return nil, errors.New("identity provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Authority{
		config:     cfg,
		store:      b.store,
		identities: b.identities,
		logger:     logger,
	}

	a.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:        cfg.Security.EnableIPThrottle,
		EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
		MaxSignInAttempts:       cfg.Security.MaxSignInAttempts,
		SignInCooldownDuration:  cfg.Security.SignInCooldownDuration,
		MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
		RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
	})
	a.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	a.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		Pepper:      cloneBytes(cfg.Password.Pepper),
	})
	if err != nil {
		return nil, err
	}
	a.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		SigningMethod:    jwt.SigningMethod(cfg.JWT.SigningMethod),
		AccessSecret:     cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret:    cloneBytes(cfg.JWT.RefreshSecret),
		AccessPublicKey:  cloneBytes(cfg.JWT.AccessPublicKey),
		RefreshPublicKey: cloneBytes(cfg.JWT.RefreshPublicKey),
		Issuer:           cfg.JWT.Issuer,
		Leeway:           cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	a.jwtManager = jm

	if cfg.Reaper.Enabled {
		a.startReaper()
	}

	b.built = true

	return a, nil
}
