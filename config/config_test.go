package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
domain: example.com
accountId: acct-123
pagesProject: example-site
records:
  - name: "@"
    type: CNAME
    content: example-site.pages.dev
    proxied: true
    ttl: auto
  - name: www
    type: CNAME
    content: example-site.pages.dev
    proxied: true
    ttl: 300
settings:
  sslMode: full
  alwaysUseHttps: true
  minTlsVersion: "1.2"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Domain != "example.com" {
		t.Errorf("expected domain example.com, got %s", cfg.Domain)
	}
	if len(cfg.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(cfg.Records))
	}
	if !cfg.Records[0].TTL.IsAuto() {
		t.Errorf("expected apex ttl to be auto, got %d", cfg.Records[0].TTL)
	}
	if cfg.Records[1].TTL != 300 {
		t.Errorf("expected www ttl 300, got %d", cfg.Records[1].TTL)
	}
	if cfg.Apply.Concurrency != defaultConcurrency {
		t.Errorf("expected default concurrency %d, got %d", defaultConcurrency, cfg.Apply.Concurrency)
	}
	if cfg.Auth.CallbackPort != defaultCallbackPort {
		t.Errorf("expected default callback port %d, got %d", defaultCallbackPort, cfg.Auth.CallbackPort)
	}
	if len(cfg.Auth.Scopes) == 0 {
		t.Error("expected default scopes to be set")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing domain",
			content: "accountId: acct-123\n",
		},
		{
			name:    "missing account and zone",
			content: "domain: example.com\n",
		},
		{
			name: "record without name",
			content: `
domain: example.com
accountId: acct-123
records:
  - type: CNAME
    content: target.pages.dev
`,
		},
		{
			name: "bad ssl mode",
			content: `
domain: example.com
accountId: acct-123
settings:
  sslMode: sideways
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected validation error but got nil")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CF_ZONE_PROVISION_TOKEN", "env-token")
	t.Setenv("CF_ZONE_PROVISION_DOMAIN", "override.com")
	t.Setenv("CF_ZONE_PROVISION_DRYRUN", "true")

	path := writeConfig(t, "domain: example.com\naccountId: acct-123\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.Token != "env-token" {
		t.Errorf("expected token from env, got %q", cfg.Auth.Token)
	}
	if cfg.Domain != "override.com" {
		t.Errorf("expected domain override.com, got %s", cfg.Domain)
	}
	if !cfg.Apply.DryRun {
		t.Error("expected dry run enabled from env")
	}
}

func TestTTLUnmarshal(t *testing.T) {
	tests := []struct {
		in       string
		expected TTL
		auto     bool
	}{
		{"auto", TTLAuto, true},
		{"Auto", TTLAuto, true},
		{"1", TTLAuto, true},
		{"300", 300, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ttl TTL
			if err := yaml.Unmarshal([]byte(tt.in), &ttl); err != nil {
				t.Fatalf("unmarshal %q: %v", tt.in, err)
			}
			if ttl != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, ttl)
			}
			if ttl.IsAuto() != tt.auto {
				t.Errorf("expected IsAuto=%v for %q", tt.auto, tt.in)
			}
		})
	}

	var ttl TTL
	if err := yaml.Unmarshal([]byte("soon"), &ttl); err == nil {
		t.Error("expected error for non-numeric ttl")
	}
}
