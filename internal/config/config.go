package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the listsync service.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	Worker    WorkerConfig     `yaml:"worker"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for the snapshot cache and worker lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WorkerConfig holds queue-drain worker settings.
type WorkerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	BatchLimit      int `yaml:"batch_limit"`
	LockTTLSeconds  int `yaml:"lock_ttl_seconds"`
}

// Interval returns the drain interval as a duration.
func (c WorkerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LockTTL returns the distributed lock TTL as a duration.
func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ProviderConfig describes one Mailchimp list (a "provider instance").
// Several can be configured; the shortcut distinguishes them on the
// customer record. Immutable after Load.
type ProviderConfig struct {
	Shortcut string `yaml:"shortcut"`
	ListID   string `yaml:"list_id"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`

	// StatusMapping translates local newsletter statuses to provider
	// statuses; ReverseStatusMapping goes the other way on webhooks.
	StatusMapping        map[string]string `yaml:"status_mapping"`
	ReverseStatusMapping map[string]string `yaml:"reverse_status_mapping"`

	// MergeFieldMapping maps local field names to provider merge-field tags
	// (e.g. firstname -> FNAME). FieldTransformers names a registered value
	// transformer per local field.
	MergeFieldMapping map[string]string `yaml:"merge_field_mapping"`
	FieldTransformers map[string]string `yaml:"field_transformers"`

	// BatchThreshold is the item count above which one batch request is
	// used instead of one request per item.
	BatchThreshold int `yaml:"batch_threshold"`
}

// shortcutPattern accepts identifiers safe to embed in filenames, redis
// keys, and URL paths.
var shortcutPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate rejects provider configs that would misbehave at runtime.
func (p ProviderConfig) Validate() error {
	if p.Shortcut == "" || !shortcutPattern.MatchString(p.Shortcut) {
		return fmt.Errorf("provider shortcut %q is not a valid identifier", p.Shortcut)
	}
	if p.ListID == "" {
		return fmt.Errorf("provider %s: list_id is required", p.Shortcut)
	}
	for local, remote := range p.StatusMapping {
		switch remote {
		case "subscribed", "unsubscribed", "pending", "cleaned":
		default:
			return fmt.Errorf("provider %s: status_mapping[%s]=%q is not a provider status", p.Shortcut, local, remote)
		}
	}
	return nil
}

// Load reads and parses the configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Worker.IntervalSeconds == 0 {
		cfg.Worker.IntervalSeconds = 60
	}
	if cfg.Worker.BatchLimit == 0 {
		cfg.Worker.BatchLimit = 500
	}
	if cfg.Worker.LockTTLSeconds == 0 {
		cfg.Worker.LockTTLSeconds = 300
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].BatchThreshold == 0 {
			cfg.Providers[i].BatchThreshold = 50
		}
		if cfg.Providers[i].BaseURL == "" {
			cfg.Providers[i].BaseURL = "https://us1.api.mailchimp.com/3.0"
		}
		if err := cfg.Providers[i].Validate(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first, so secrets can live in .env
// locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if apiKey := os.Getenv("MAILCHIMP_API_KEY"); apiKey != "" {
		for i := range cfg.Providers {
			if cfg.Providers[i].APIKey == "" {
				cfg.Providers[i].APIKey = apiKey
			}
		}
	}

	return cfg, nil
}
