package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "creditd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: " :6000 "
tls:
  allow_insecure: true
auth:
  hmac_secret: " `+secret+` "
cors:
  allowed_origins: [" https://app.example ", " "]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != ":6000" {
		t.Fatalf("unexpected listen address: %q", cfg.ListenAddress)
	}
	if cfg.NodeConfig != "config.toml" {
		t.Fatalf("unexpected node config default: %q", cfg.NodeConfig)
	}
	if cfg.BlockTime != 5*time.Second {
		t.Fatalf("unexpected block time default: %s", cfg.BlockTime)
	}
	if cfg.Auth.HMACSecret != secret {
		t.Fatalf("expected trimmed secret")
	}
	if cfg.RateLimits.Execute.Burst != 10 || cfg.RateLimits.Query.RatePerSecond != 20 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimits)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://app.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Stream.Buffer != 64 {
		t.Fatalf("unexpected stream buffer: %d", cfg.Stream.Buffer)
	}
	if cfg.Indexer.Enabled() {
		t.Fatalf("indexer should be disabled without a driver")
	}
}

func TestLoadConfigParsesDurationsAndIndexer(t *testing.T) {
	path := writeConfig(t, `
block_time: 2s
tls:
  cert: server.crt
  key: server.key
auth:
  hmac_secret: `+secret+`
  clock_skew: 30s
rate_limits:
  query:
    rate_per_second: 2
    burst: 4
    tokens:
      "POST /v1/query/creditmanager/health": 3
indexer:
  driver: " Postgres "
  dsn: postgres://indexer:pw@db/credit
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BlockTime != 2*time.Second || cfg.Auth.ClockSkew != 30*time.Second {
		t.Fatalf("durations not decoded: %s %s", cfg.BlockTime, cfg.Auth.ClockSkew)
	}
	if !cfg.TLS.Enabled() {
		t.Fatalf("expected tls enabled")
	}
	if cfg.Indexer.Driver != "postgres" || !cfg.Indexer.Enabled() {
		t.Fatalf("unexpected indexer config: %+v", cfg.Indexer)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"missing secret": `
tls: {allow_insecure: true}
`,
		"short secret": `
tls: {allow_insecure: true}
auth: {hmac_secret: short}
`,
		"tls key missing": `
tls: {cert: server.crt}
auth: {hmac_secret: ` + secret + `}
`,
		"tls required": `
auth: {hmac_secret: ` + secret + `}
`,
		"token cost above burst": `
tls: {allow_insecure: true}
auth: {hmac_secret: ` + secret + `}
rate_limits:
  execute: {burst: 2, tokens: {"POST /v1/execute": 3}}
`,
		"indexer without dsn": `
tls: {allow_insecure: true}
auth: {hmac_secret: ` + secret + `}
indexer: {driver: sqlite}
`,
		"unknown driver": `
tls: {allow_insecure: true}
auth: {hmac_secret: ` + secret + `}
indexer: {driver: mysql, dsn: x}
`,
		"unknown key": `
tls: {allow_insecure: true}
auth: {hmac_secret: ` + secret + `}
listen_addr: ":1"
`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, contents)); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	if _, err := Load(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
