package goAccount

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigNeedsSigningKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without a key to fail")
	}

	cfg.JWT.PrivateKey = testSigningKey
	cfg.JWT.SigningMethod = "hs256"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, "AccessTTL"},
		{"refresh ttl", func(c *Config) { c.JWT.RefreshTTL = -time.Second }, "RefreshTTL"},
		{"signing method", func(c *Config) { c.JWT.SigningMethod = "rs256" }, "signing method"},
		{"leeway", func(c *Config) { c.JWT.Leeway = 3 * time.Minute }, "Leeway"},
		{"session prefix", func(c *Config) { c.Session.RedisPrefix = "" }, "Session RedisPrefix"},
		{"prefix clash", func(c *Config) { c.PasswordReset.RedisPrefix = c.Session.RedisPrefix }, "must differ"},
		{"argon memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"max below min", func(c *Config) { c.Password.MinLength = 10; c.Password.MaxLength = 5 }, "MaxLength"},
		{"code digits", func(c *Config) { c.PasswordReset.CodeDigits = 3 }, "CodeDigits"},
		{"code ttl", func(c *Config) { c.PasswordReset.CodeTTL = 0 }, "CodeTTL"},
		{"request window", func(c *Config) { c.PasswordReset.RequestWindow = 0 }, "RequestWindow"},
		{"default role", func(c *Config) { c.Account.DefaultRole = Role(99) }, "DefaultRole"},
		{"assignable role", func(c *Config) { c.Account.AssignableRoles = []Role{RoleUnset, Role(42)} }, "AssignableRoles"},
		{"default not assignable", func(c *Config) {
			c.Account.DefaultRole = RoleDeveloper
			c.Account.AssignableRoles = []Role{RoleUnset}
		}, "DefaultRole must be one of AssignableRoles"},
		{"limiter prefix", func(c *Config) { c.Security.RedisPrefix = "" }, "Security RedisPrefix"},
		{"limiter prefix clash", func(c *Config) { c.Security.RedisPrefix = c.Session.RedisPrefix }, "must differ"},
		{"audit buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
		{"cooldown", func(c *Config) { c.Security.LoginCooldownDuration = 0 }, "LoginCooldownDuration"},
		{"production cookies", func(c *Config) {
			c.Security.ProductionMode = true
			c.Security.RequireSecureCookies = false
		}, "RequireSecureCookies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigZeroLimitsAreValid(t *testing.T) {
	cfg := testConfig()
	cfg.Security.MaxLoginAttempts = 0
	cfg.Security.LoginCooldownDuration = 0
	cfg.PasswordReset.MaxRequests = 0
	cfg.PasswordReset.RequestWindow = 0
	cfg.PasswordReset.MaxVerifyFailures = 0
	cfg.PasswordReset.VerifyWindow = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled limits should validate: %v", err)
	}
}

func TestConfigCloneIsolatesKeys(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	clone.JWT.PrivateKey[0] ^= 0xff
	if cfg.JWT.PrivateKey[0] == clone.JWT.PrivateKey[0] {
		t.Fatal("clone shares key bytes with the original")
	}
}

func TestConfigCloneIsolatesAssignableRoles(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	clone.Account.AssignableRoles[0] = RoleAdmin
	if cfg.Account.AssignableRoles[0] == RoleAdmin {
		t.Fatal("clone shares the assignable role list")
	}
}

func TestDefaultAssignableRolesExcludeAdmin(t *testing.T) {
	roles := DefaultConfig().Account.AssignableRoles
	if len(roles) != 4 || slices.Contains(roles, RoleAdmin) {
		t.Fatalf("unexpected default assignable roles %v", roles)
	}
}

func TestEngineConfigReturnsCopy(t *testing.T) {
	env := newTestEnv(t, nil)
	cfg := env.engine.Config()
	cfg.JWT.PrivateKey[0] ^= 0xff
	cfg.Session.MaxSessionsPerUser = 99

	again := env.engine.Config()
	if again.Session.MaxSessionsPerUser == 99 || again.JWT.PrivateKey[0] != testSigningKey[0] {
		t.Fatal("engine config mutated through returned copy")
	}
}
