package config

import "testing"

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Token:   "123:abc",
			RunMode: "longpoll",
		},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Session.Store != SessionStoreMemory {
		t.Fatalf("session store default = %q", cfg.Session.Store)
	}
	if cfg.Session.IdleTTLMinutes != 30 {
		t.Fatalf("idle ttl default = %d", cfg.Session.IdleTTLMinutes)
	}
}

func TestNormalizeRunModeAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }},
		{"bad run mode", func(c *Config) { c.Telegram.RunMode = "carrier-pigeon" }},
		{"webhook without url", func(c *Config) { c.Telegram.RunMode = "webhook" }},
		{"bad session store", func(c *Config) { c.Session.Store = "tape" }},
		{"redis without addr", func(c *Config) { c.Session.Store = "redis" }},
		{"negative idle ttl", func(c *Config) { c.Session.IdleTTLMinutes = -1 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		if err := Normalize(cfg); err == nil {
			t.Errorf("%s: accepted", tc.name)
		}
	}
}
