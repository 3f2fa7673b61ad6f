package duoauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/venaticus/duoauth/internal/stores"
	"github.com/venaticus/duoauth/jwt"
	"github.com/venaticus/duoauth/notify"
	"github.com/venaticus/duoauth/password"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, and discard it; a Builder is not safe for concurrent use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	senders   []notify.Sender
	auditSink AuditSink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration. Zero-valued fields are
// filled from defaults at Build time; the session secret has no default and
// must be set.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the code vault.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the account store. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithNotifier registers delivery channels for verification codes and
// notices. Calling it repeatedly appends.
func (b *Builder) WithNotifier(senders ...notify.Sender) *Builder {
	b.senders = append(b.senders, senders...)
	return b
}

// WithAuditSink sets the audit destination and enables audit emission.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the session-validation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. It can be called
// at most once per Builder.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := normalizeConfig(cloneConfig(b.config))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	issuer, err := jwt.NewManager(jwt.Config{
		Secret:     cfg.Session.Secret,
		SessionTTL: cfg.Session.TTL,
		Issuer:     cfg.Session.Issuer,
		Leeway:     cfg.Session.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		store:        b.store,
		vault:        stores.NewCodeVault(b.redis, cfg.Code.RedisPrefix, cfg.Code.Retention),
		issuer:       issuer,
		gateway:      notify.NewGateway(cfg.Notify.DispatchTimeout, b.senders...),
		metrics:      NewMetrics(cfg.Metrics),
		passwordHash: hasher,
	}

	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NoOpSink{}
		}
		engine.audit = newAuditDispatcher(cfg.Audit, sink)
	}

	return engine, nil
}

// normalizeConfig fills zero-valued fields from defaults so callers can set
// only what they care about.
func normalizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Code.Digits == 0 {
		cfg.Code.Digits = def.Code.Digits
	}
	if cfg.Code.TTL == 0 {
		cfg.Code.TTL = def.Code.TTL
	}
	if cfg.Code.RedisPrefix == "" {
		cfg.Code.RedisPrefix = def.Code.RedisPrefix
	}
	if cfg.Code.Retention == 0 {
		cfg.Code.Retention = def.Code.Retention
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = def.Session.TTL
	}
	if cfg.Password.Memory == 0 {
		cfg.Password = def.Password
	}
	if cfg.Notify.DispatchTimeout == 0 {
		cfg.Notify.DispatchTimeout = def.Notify.DispatchTimeout
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}

	return cfg
}
