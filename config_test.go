package authority

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessSecret = []byte("config-test-access-secret-012345")
	cfg.JWT.RefreshSecret = []byte("config-test-refresh-secret-01234")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secrets",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "access ttl zero",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl not above access ttl",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = c.JWT.AccessTTL
			},
			wantValid: false,
		},
		{
			name: "signing method invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "access secret missing",
			mutate: func(c *Config) {
				c.JWT.AccessSecret = nil
			},
			wantValid: false,
		},
		{
			name: "secrets must differ",
			mutate: func(c *Config) {
				c.JWT.RefreshSecret = append([]byte(nil), c.JWT.AccessSecret...)
			},
			wantValid: false,
		},
		{
			name: "ed25519 requires public keys",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "leeway too large",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "password memory too low",
			mutate: func(c *Config) {
				c.Password.Memory = 4 * 1024
			},
			wantValid: false,
		},
		{
			name: "password time zero",
			mutate: func(c *Config) {
				c.Password.Time = 0
			},
			wantValid: false,
		},
		{
			name: "password salt too short",
			mutate: func(c *Config) {
				c.Password.SaltLength = 8
			},
			wantValid: false,
		},
		{
			name: "password key too short",
			mutate: func(c *Config) {
				c.Password.KeyLength = 8
			},
			wantValid: false,
		},
		{
			name: "audit enabled needs buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "sign-in attempts zero",
			mutate: func(c *Config) {
				c.Security.MaxSignInAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "sign-in cooldown zero",
			mutate: func(c *Config) {
				c.Security.SignInCooldownDuration = 0
			},
			wantValid: false,
		},
		{
			name: "refresh throttle needs attempts",
			mutate: func(c *Config) {
				c.Security.EnableRefreshThrottle = true
				c.Security.MaxRefreshAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "refresh throttle disabled skips attempt check",
			mutate: func(c *Config) {
				c.Security.EnableRefreshThrottle = false
				c.Security.MaxRefreshAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "reaper enabled needs interval",
			mutate: func(c *Config) {
				c.Reaper.Enabled = true
				c.Reaper.Interval = 0
			},
			wantValid: false,
		},
		{
			name: "production mode with defaults",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
			},
			wantValid: true,
		},
		{
			name: "production mode caps access ttl",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.JWT.AccessTTL = time.Hour
			},
			wantValid: false,
		},
		{
			name: "production mode caps refresh ttl",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.JWT.RefreshTTL = 90 * 24 * time.Hour
			},
			wantValid: false,
		},
		{
			name: "production mode requires long hmac keys",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.JWT.AccessSecret = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "production mode requires strong argon params",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Password.Memory = 16 * 1024
			},
			wantValid: false,
		},
		{
			name: "production mode requires refresh throttle",
			mutate: func(c *Config) {
				c.Security.ProductionMode = true
				c.Security.EnableRefreshThrottle = false
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestDefaultConfigMissesSecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config should not validate without secrets")
	}
}

func TestCloneConfigCopiesKeyMaterial(t *testing.T) {
	cfg := validTestConfig()
	cfg.Password.Pepper = []byte("pepper-material")

	clone := cloneConfig(cfg)
	clone.JWT.AccessSecret[0] ^= 0xff
	clone.Password.Pepper[0] ^= 0xff

	if cfg.JWT.AccessSecret[0] == clone.JWT.AccessSecret[0] {
		t.Fatal("clone shares access secret backing array")
	}
	if cfg.Password.Pepper[0] == clone.Password.Pepper[0] {
		t.Fatal("clone shares pepper backing array")
	}
}
