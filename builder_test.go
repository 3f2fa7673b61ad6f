package duoauth

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedisClient(t *testing.T) redis.UniversalClient {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testBuilderConfig() Config {
	cfg := defaultConfig()
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestBuildRequiresDependencies(t *testing.T) {
	client := testRedisClient(t)
	store := newMemStore()
	cfg := testBuilderConfig()

	if _, err := New().WithConfig(cfg).WithCredentialStore(store).Build(); err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("missing redis: got %v", err)
	}
	if _, err := New().WithConfig(cfg).WithRedis(client).Build(); err == nil || !strings.Contains(err.Error(), "credential store") {
		t.Fatalf("missing store: got %v", err)
	}
	if _, err := New().WithRedis(client).WithCredentialStore(store).Build(); err == nil || !strings.Contains(err.Error(), "secret") {
		t.Fatalf("missing secret: got %v", err)
	}
}

func TestBuildRejectsSecondUse(t *testing.T) {
	b := New().
		WithConfig(testBuilderConfig()).
		WithRedis(testRedisClient(t)).
		WithCredentialStore(newMemStore())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build on the same builder succeeded")
	}
}

func TestBuildFillsZeroFieldsFromDefaults(t *testing.T) {
	cfg := Config{}
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef")

	engine, err := New().
		WithConfig(cfg).
		WithRedis(testRedisClient(t)).
		WithCredentialStore(newMemStore()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if engine.config.Code.Digits != 6 {
		t.Fatalf("Code.Digits = %d, want default 6", engine.config.Code.Digits)
	}
	if engine.config.Code.TTL != 5*time.Minute {
		t.Fatalf("Code.TTL = %v, want default 5m", engine.config.Code.TTL)
	}
	if engine.config.Session.TTL != 10*time.Minute {
		t.Fatalf("Session.TTL = %v, want default 10m", engine.config.Session.TTL)
	}
}

func TestBuildClonesSecret(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	cfg := testBuilderConfig()
	cfg.Session.Secret = secret

	engine, err := New().
		WithConfig(cfg).
		WithRedis(testRedisClient(t)).
		WithCredentialStore(newMemStore()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	// Mutating the caller's slice must not touch the engine's copy.
	secret[0] ^= 0xff
	if engine.config.Session.Secret[0] == secret[0] {
		t.Fatal("engine shares the caller's secret slice")
	}
}

func TestValidateConfigRejections(t *testing.T) {
	base := testBuilderConfig()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"digits too small", func(c *Config) { c.Code.Digits = 5 }},
		{"digits too large", func(c *Config) { c.Code.Digits = 11 }},
		{"negative code ttl", func(c *Config) { c.Code.TTL = -time.Second }},
		{"short secret", func(c *Config) { c.Session.Secret = []byte("short") }},
		{"negative session ttl", func(c *Config) { c.Session.TTL = -time.Second }},
		{"excess leeway", func(c *Config) { c.Session.Leeway = 3 * time.Minute }},
		{"negative dispatch timeout", func(c *Config) { c.Notify.DispatchTimeout = -time.Second }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := cloneConfig(base)
			tc.mutate(&cfg)
			if err := validateConfig(cfg); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}

	if err := validateConfig(base); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
