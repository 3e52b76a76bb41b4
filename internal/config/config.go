package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		ReadTimeout    string   `yaml:"read_timeout"`
		WriteTimeout   string   `yaml:"write_timeout"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Assessment struct {
		CacheTTL string `yaml:"cache_ttl"`
		// SeedSample loads the bundled sample assessment into the definition store.
		SeedSample bool `yaml:"seed_sample"`
	} `yaml:"assessment"`
	Grading struct {
		ExecutorURL           string `yaml:"executor_url"`
		ExecutorTimeout       string `yaml:"executor_timeout"`
		LightCopyingThreshold int    `yaml:"light_copying_threshold"`
		Concurrency           int    `yaml:"concurrency"`
	} `yaml:"grading"`
	Rewards struct {
		LedgerURL     string             `yaml:"ledger_url"`
		LedgerTimeout string             `yaml:"ledger_timeout"`
		Chances       map[string]float64 `yaml:"chances"`
		Amounts       map[string]float64 `yaml:"amounts"`
		// Wallets maps candidate ids to ledger addresses registered at startup.
		Wallets map[string]string `yaml:"wallets"`
	} `yaml:"rewards"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
