package config

import "time"

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() Config {
	return Config{
		Forge: ForgeConfig{
			Concurrency:     8,
			CooldownInitial: 30 * time.Second,
			CooldownMax:     10 * time.Minute,
			CycleTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			UserAgent:       "grove-status",
			GhAuth:          true,
		},
		Git: GitConfig{
			Timeout: 5 * time.Second,
		},
		Poll: PollConfig{
			Interval: 60 * time.Second,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:7420",
			AllowedOrigins: []string{"*"},
		},
	}
}
