package rampart

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.Lockout.Window = 0 }},
		{"episode shorter than window", func(c *Config) { c.Lockout.EpisodeWindow = time.Minute }},
		{"zero low threshold", func(c *Config) { c.Lockout.LowThreshold = 0 }},
		{"lockout not above low", func(c *Config) { c.Lockout.LockoutThreshold = c.Lockout.LowThreshold }},
		{"zero base lockout", func(c *Config) { c.Lockout.BaseLockout = 0 }},
		{"negative lockout step", func(c *Config) { c.Lockout.LockoutStep = -time.Minute }},
		{"max below base", func(c *Config) { c.Lockout.MaxLockout = time.Minute }},
		{"negative delay", func(c *Config) { c.Delay.Base = -time.Second }},
		{"weight out of range", func(c *Config) { c.Weights.Identity = 1.5 }},
		{"weights not summing to 1", func(c *Config) { c.Weights.Identity = 0.5 }},
		{"risk thresholds unordered", func(c *Config) { c.Risk.Medium = 0.9 }},
		{"risk high not positive", func(c *Config) { c.Risk.High = 0 }},
		{"negative score age", func(c *Config) { c.MaxScoreAge = -time.Minute }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestEscalationLevelText(t *testing.T) {
	for _, l := range []EscalationLevel{LevelNone, LevelElevated, LevelLocked, LevelExtendedLockout} {
		got, err := ParseEscalationLevel(l.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != l {
			t.Fatalf("round trip failed for %s", l)
		}
	}
	if _, err := ParseEscalationLevel("bogus"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestRiskLevelText(t *testing.T) {
	for _, r := range []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical} {
		got, err := ParseRiskLevel(r.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != r {
			t.Fatalf("round trip failed for %s", r)
		}
	}
	if _, err := ParseRiskLevel("bogus"); err == nil {
		t.Fatal("expected error for unknown risk level")
	}
}
