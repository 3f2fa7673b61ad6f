package duoauth

import (
	"errors"
	"time"
)

// Config groups every tunable of the engine. Zero values are filled from
// defaultConfig by the Builder; Build rejects configurations that would
// weaken the authentication invariants.
type Config struct {
	Code     CodeConfig
	Session  SessionConfig
	Password PasswordConfig
	Account  AccountConfig
	Notify   NotifyConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// CodeConfig controls verification-code issuance. The lockout threshold is
// not configurable; it is a fixed policy constant.
type CodeConfig struct {
	// Digits is the code length, 6 through 10.
	Digits int
	// TTL is the code validity window from issuance.
	TTL time.Duration
	// RedisPrefix namespaces vault keys.
	RedisPrefix string
	// Retention bounds how long consumed and superseded records stay
	// queryable before Redis expiry removes them.
	Retention time.Duration
}

// SessionConfig feeds the session issuer.
type SessionConfig struct {
	// Secret is the HS256 signing key. Required; there is no default.
	Secret []byte
	// TTL is the session lifetime from issuance.
	TTL time.Duration
	// Issuer, when set, is stamped into and required from every token.
	Issuer string
	// Leeway tolerates clock skew during validation, at most two minutes.
	Leeway time.Duration
}

// PasswordConfig sets the Argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AccountConfig controls the registration path.
type AccountConfig struct {
	// Enabled gates CreateAccount entirely.
	Enabled bool
	// SendWelcome dispatches a welcome notice after creation.
	SendWelcome bool
}

// NotifyConfig controls outbound dispatch.
type NotifyConfig struct {
	// DispatchTimeout bounds one whole fan-out across all channels.
	DispatchTimeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events under backpressure instead of blocking the
	// authentication path. Dropped counts are observable.
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms adds a validation-latency histogram.
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Code: CodeConfig{
			Digits:      6,
			TTL:         5 * time.Minute,
			RedisPrefix: "vc",
			Retention:   time.Hour,
		},
		Session: SessionConfig{
			TTL: 10 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Account: AccountConfig{
			Enabled:     true,
			SendWelcome: true,
		},
		Notify: NotifyConfig{
			DispatchTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Session.Secret != nil {
		out.Session.Secret = make([]byte, len(cfg.Session.Secret))
		copy(out.Session.Secret, cfg.Session.Secret)
	}
	return out
}

func validateConfig(cfg Config) error {
	if cfg.Code.Digits < 6 || cfg.Code.Digits > 10 {
		return errors.New("code digits must be 6 through 10")
	}
	if cfg.Code.TTL <= 0 {
		return errors.New("code TTL must be positive")
	}
	if cfg.Code.Retention < 0 {
		return errors.New("code retention must not be negative")
	}
	if len(cfg.Session.Secret) == 0 {
		return errors.New("session secret required")
	}
	if len(cfg.Session.Secret) < 16 {
		return errors.New("session secret must be at least 16 bytes")
	}
	if cfg.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if cfg.Session.Leeway < 0 || cfg.Session.Leeway > 2*time.Minute {
		return errors.New("session leeway must be within [0, 2m]")
	}
	if cfg.Notify.DispatchTimeout < 0 {
		return errors.New("dispatch timeout must not be negative")
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive when audit is enabled")
	}
	return nil
}
