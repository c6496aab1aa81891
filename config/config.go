package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHistoryPath  = "cfzoneprovision.db"
	defaultLogLevel     = "info"
	defaultLogEnv       = "prod"
	defaultConcurrency  = 3
	defaultCallbackPort = 8976
	defaultAuthTimeout  = 5 * time.Minute
	defaultClientID     = "54d11594-84e4-41aa-b438-e81b8fa78ee7"
)

// defaultScopes is the wrangler scope set plus zone:edit and dns:edit, which
// zone creation and record writes require.
var defaultScopes = []string{
	"account:read", "user:read", "zone:read", "zone:edit", "dns:edit",
	"pages:write", "ssl_certs:write", "offline_access",
}

// TTL is a record TTL in seconds. The provider uses 1 as the "automatic"
// sentinel, and the config accepts the literal "auto" for it.
type TTL int

const TTLAuto TTL = 1

func (t TTL) IsAuto() bool { return t <= TTLAuto }

func (t *TTL) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if strings.EqualFold(s, "auto") || s == "" {
		*t = TTLAuto
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("ttl must be a number of seconds or %q: %w", "auto", err)
	}
	*t = TTL(n)
	return nil
}

type Config struct {
	Domain       string   `yaml:"domain"`
	AccountID    string   `yaml:"accountId"`
	ZoneID       string   `yaml:"zoneId"`
	PagesProject string   `yaml:"pagesProject"`
	Records      []Record `yaml:"records"`
	Settings     Settings `yaml:"settings"`
	Apply        Apply    `yaml:"apply"`
	Auth         Auth     `yaml:"auth"`
	HistoryPath  string   `yaml:"historyPath"`
	Metrics      Metrics  `yaml:"metrics"`
	Log          Log      `yaml:"log"`
}

type Record struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Content string `yaml:"content"`
	Proxied bool   `yaml:"proxied"`
	TTL     TTL    `yaml:"ttl"`
}

type Settings struct {
	SSLMode        string `yaml:"sslMode"`
	AlwaysUseHTTPS bool   `yaml:"alwaysUseHttps"`
	MinTLSVersion  string `yaml:"minTlsVersion"`
}

type Apply struct {
	Concurrency int  `yaml:"concurrency"`
	DryRun      bool `yaml:"dryRun"`
}

type Auth struct {
	// Token is a static API token. When set, the OAuth flow is skipped.
	Token          string        `yaml:"token"`
	ClientID       string        `yaml:"clientId"`
	Scopes         []string      `yaml:"scopes"`
	CallbackPort   int           `yaml:"callbackPort"`
	Timeout        time.Duration `yaml:"timeout"`
	CredentialPath string        `yaml:"credentialPath"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

func Load(path string) (*Config, error) {
	var cfg Config

	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding with env only", "path", path)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			f.Close()
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = defaultHistoryPath
	}
	if cfg.Apply.Concurrency <= 0 {
		cfg.Apply.Concurrency = defaultConcurrency
	}
	if cfg.Auth.ClientID == "" {
		cfg.Auth.ClientID = defaultClientID
	}
	if len(cfg.Auth.Scopes) == 0 {
		cfg.Auth.Scopes = defaultScopes
	}
	if cfg.Auth.CallbackPort == 0 {
		cfg.Auth.CallbackPort = defaultCallbackPort
	}
	if cfg.Auth.Timeout == 0 {
		cfg.Auth.Timeout = defaultAuthTimeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}
	if cfg.Settings.SSLMode == "" {
		cfg.Settings.SSLMode = "full"
	}
	if cfg.Settings.MinTLSVersion == "" {
		cfg.Settings.MinTLSVersion = "1.2"
	}
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("CF_ZONE_PROVISION_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("CF_ZONE_PROVISION_DOMAIN"); v != "" {
		cfg.Domain = v
	}
	if v := os.Getenv("CF_ZONE_PROVISION_ACCOUNT_ID"); v != "" {
		cfg.AccountID = v
	}
	if v := os.Getenv("CF_ZONE_PROVISION_ZONE_ID"); v != "" {
		cfg.ZoneID = v
	}
	if v := os.Getenv("CF_ZONE_PROVISION_PAGES_PROJECT"); v != "" {
		cfg.PagesProject = v
	}
	if v := os.Getenv("CF_ZONE_PROVISION_HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}
	if v := os.Getenv("CF_ZONE_PROVISION_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("CF_ZONE_PROVISION_DRYRUN"); v != "" {
		switch strings.ToLower(v) {
		case "true":
			cfg.Apply.DryRun = true
		case "false":
			cfg.Apply.DryRun = false
		default:
			slog.Default().Warn("fail parse dryrun to bool from string", "dryrun", v)
		}
	}
	if v := os.Getenv("CF_ZONE_PROVISION_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Apply.Concurrency = n
		} else {
			slog.Default().Warn("fail parse concurrency to int from string", "concurrency", v, "error", err)
		}
	}
	if v := os.Getenv("CF_ZONE_PROVISION_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CF_ZONE_PROVISION_LOG_ENV"); v != "" {
		cfg.Log.Env = v
	}
}

func (cfg *Config) Validate() error {
	if cfg.Domain == "" {
		return errors.New("config: domain is required")
	}
	if cfg.AccountID == "" && cfg.ZoneID == "" {
		return errors.New("config: accountId is required when zoneId is not set")
	}
	for i, r := range cfg.Records {
		if r.Name == "" {
			return fmt.Errorf("config: records[%d]: name is required, use %q for the apex", i, "@")
		}
		if r.Type == "" || r.Content == "" {
			return fmt.Errorf("config: records[%d]: type and content are required", i)
		}
	}
	switch cfg.Settings.SSLMode {
	case "off", "flexible", "full", "strict":
	default:
		return fmt.Errorf("config: settings.sslMode %q is not one of off, flexible, full, strict", cfg.Settings.SSLMode)
	}
	return nil
}
