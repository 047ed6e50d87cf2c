package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen       = ":8080"
	defaultNodeConfig   = "config.toml"
	defaultBlockTime    = 5 * time.Second
	defaultStreamBuffer = 64
)

// Config captures the runtime settings for the credit daemon.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	NodeConfig    string          `yaml:"node_config"`
	BlockTime     time.Duration   `yaml:"block_time"`
	TLS           TLSConfig       `yaml:"tls"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimits    RateLimitConfig `yaml:"rate_limits"`
	CORS          CORSConfig      `yaml:"cors"`
	Stream        StreamConfig    `yaml:"stream"`
	Indexer       IndexerConfig   `yaml:"indexer"`
}

// TLSConfig describes the TLS material for the HTTP server.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig verifies the HS256 bearer tokens whose subject is the sender of
// executed messages.
type AuthConfig struct {
	HMACSecret            string        `yaml:"hmac_secret"`
	Issuer                string        `yaml:"issuer"`
	Audience              string        `yaml:"audience"`
	ClockSkew             time.Duration `yaml:"clock_skew"`
	AllowAnonymousQueries bool          `yaml:"allow_anonymous_queries"`
}

// RateLimit is a token bucket per sender.
type RateLimit struct {
	RatePerSecond float64        `yaml:"rate_per_second"`
	Burst         int            `yaml:"burst"`
	Tokens        map[string]int `yaml:"tokens"`
}

// RateLimitConfig holds one bucket policy per route group.
type RateLimitConfig struct {
	Execute RateLimit `yaml:"execute"`
	Query   RateLimit `yaml:"query"`
	Stream  RateLimit `yaml:"stream"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StreamConfig bounds the websocket event stream.
type StreamConfig struct {
	// Buffer is the number of results queued per subscriber before it is
	// disconnected as too slow.
	Buffer int `yaml:"buffer"`
}

// IndexerConfig enables the event journal when Driver is set.
type IndexerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Enabled reports whether a journal database is configured.
func (cfg IndexerConfig) Enabled() bool {
	return cfg.Driver != ""
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.NodeConfig = strings.TrimSpace(cfg.NodeConfig)
	if cfg.NodeConfig == "" {
		cfg.NodeConfig = defaultNodeConfig
	}
	if cfg.BlockTime == 0 {
		cfg.BlockTime = defaultBlockTime
	}
	cfg.TLS.CertPath = strings.TrimSpace(cfg.TLS.CertPath)
	cfg.TLS.KeyPath = strings.TrimSpace(cfg.TLS.KeyPath)
	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	cfg.Auth.Issuer = strings.TrimSpace(cfg.Auth.Issuer)
	cfg.Auth.Audience = strings.TrimSpace(cfg.Auth.Audience)
	cfg.RateLimits.Execute.normalize(5, 10)
	cfg.RateLimits.Query.normalize(20, 40)
	cfg.RateLimits.Stream.normalize(1, 2)
	origins := make([]string, 0, len(cfg.CORS.AllowedOrigins))
	for _, origin := range cfg.CORS.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.CORS.AllowedOrigins = origins
	if cfg.Stream.Buffer <= 0 {
		cfg.Stream.Buffer = defaultStreamBuffer
	}
	cfg.Indexer.Driver = strings.ToLower(strings.TrimSpace(cfg.Indexer.Driver))
	cfg.Indexer.DSN = strings.TrimSpace(cfg.Indexer.DSN)
}

func (l *RateLimit) normalize(rate float64, burst int) {
	if l.RatePerSecond <= 0 {
		l.RatePerSecond = rate
	}
	if l.Burst <= 0 {
		l.Burst = burst
	}
}

func (cfg *Config) validate() error {
	if cfg.BlockTime < 0 {
		return fmt.Errorf("block_time must be positive")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("auth: hmac_secret is required")
	}
	if len(cfg.Auth.HMACSecret) < 32 {
		return fmt.Errorf("auth: hmac_secret must be at least 32 bytes")
	}
	for name, limit := range map[string]RateLimit{"execute": cfg.RateLimits.Execute, "query": cfg.RateLimits.Query} {
		for route, cost := range limit.Tokens {
			if cost <= 0 || cost > limit.Burst {
				return fmt.Errorf("rate_limits.%s: token cost of %q must be within 1..burst", name, route)
			}
		}
	}
	switch cfg.Indexer.Driver {
	case "":
	case "postgres", "sqlite":
		if cfg.Indexer.DSN == "" {
			return fmt.Errorf("indexer: dsn is required for driver %s", cfg.Indexer.Driver)
		}
	default:
		return fmt.Errorf("indexer: unsupported driver %q", cfg.Indexer.Driver)
	}
	return nil
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	return nil
}

// Enabled reports whether the server terminates TLS itself.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != ""
}
