// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package config loads server configuration from an optional YAML file
// overlaid with command line flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/sceneforge/sceneforge/internal/access"
	"github.com/sceneforge/sceneforge/internal/logging"
	"github.com/sceneforge/sceneforge/internal/store"
)

// CodeInvalidConfig marks configuration errors.
const CodeInvalidConfig = "INVALID_CONFIG"

// Default values.
const (
	DefaultListenAddr   = "127.0.0.1:7420"
	DefaultMetricsAddr  = "127.0.0.1:9100"
	DefaultLogFormat    = "json"
	DefaultLogLevel     = "info"
	DefaultSaveInterval = 2 * time.Second
)

// Config is the serve configuration.
type Config struct {
	ListenAddr   string        `koanf:"listen-addr"`
	MetricsAddr  string        `koanf:"metrics-addr"`
	LogFormat    string        `koanf:"log-format"`
	LogLevel     string        `koanf:"log-level"`
	SaveInterval time.Duration `koanf:"save-interval"`
	Store        Store         `koanf:"store"`
	Access       Access        `koanf:"access"`
	TLS          TLS           `koanf:"tls"`
}

// TLS enables HTTPS and wss:// on the listen address, either from a
// certificate pair or from a self-signed certificate kept in Dir.
type TLS struct {
	CertFile   string   `koanf:"cert-file"`
	KeyFile    string   `koanf:"key-file"`
	SelfSigned bool     `koanf:"self-signed"`
	Hosts      []string `koanf:"hosts"`
	// Dir holds self-signed material. Empty means the XDG certs directory.
	Dir string `koanf:"dir"`
}

// Enabled reports whether the listen address serves TLS.
func (t TLS) Enabled() bool {
	return t.SelfSigned || t.CertFile != ""
}

// Store selects the document backend.
type Store struct {
	Driver      string `koanf:"driver"`
	DSN         string `koanf:"dsn"`
	RedisAddr   string `koanf:"redis-addr"`
	RedisPrefix string `koanf:"redis-prefix"`
}

// Access configures roles, role assignments and client tokens.
type Access struct {
	// Roles maps a role to its "action:resource" patterns. Empty means
	// access.DefaultRoles.
	Roles map[string][]string `koanf:"roles"`
	// Subjects maps a subject such as "user:ada" to a role.
	Subjects map[string]string `koanf:"subjects"`
	// Tokens maps a bearer token to its subject. Without tokens every
	// client connects as Anonymous.
	Tokens      map[string]string `koanf:"tokens"`
	DefaultRole string            `koanf:"default-role"`
	Anonymous   string            `koanf:"anonymous"`
}

// BindFlags registers the flags Load reads on fs. Nested keys use dotted
// flag names.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("listen-addr", DefaultListenAddr, "HTTP and WebSocket listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.Duration("save-interval", DefaultSaveInterval, "delay between a change and its autosave")
	fs.String("store.driver", store.DriverMemory, "document store (memory, postgres or redis)")
	fs.String("store.dsn", "", "PostgreSQL connection string (default: $DATABASE_URL)")
	fs.String("store.redis-addr", "127.0.0.1:6379", "Redis address")
	fs.String("store.redis-prefix", store.DefaultRedisPrefix, "Redis key prefix")
	fs.String("access.default-role", "", "role of subjects without an assignment")
	fs.String("access.anonymous", "user:anonymous", "subject of clients when no tokens are configured")
	fs.String("tls.cert-file", "", "PEM certificate for HTTPS and wss://")
	fs.String("tls.key-file", "", "PEM private key for tls.cert-file")
	fs.Bool("tls.self-signed", false, "serve TLS with a generated self-signed certificate")
	fs.StringSlice("tls.hosts", nil, "hosts of the self-signed certificate (default localhost)")
	fs.String("tls.dir", "", "directory of self-signed certificates (default: XDG data dir)")
}

// Load reads path, when set, then applies the flags of fs that were set
// explicitly or that the file left out.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeInvalidConfig).With("path", path).Wrapf(err, "load config file")
		}
	}
	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "load flags")
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeInvalidConfig).Wrapf(err, "decode config")
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = os.Getenv("DATABASE_URL")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return invalid("listen-addr", "listen-addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log-format", "log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.SaveInterval <= 0 {
		return invalid("save-interval", "save-interval must be positive, got %s", c.SaveInterval)
	}

	switch c.Store.Driver {
	case store.DriverMemory:
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn", "store.dsn or DATABASE_URL is required for the postgres driver")
		}
	case store.DriverRedis:
		if c.Store.RedisAddr == "" {
			return invalid("store.redis-addr", "store.redis-addr is required for the redis driver")
		}
	default:
		return invalid("store.driver", "unknown store driver %q", c.Store.Driver)
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return invalid("tls.cert-file", "tls.cert-file and tls.key-file must be set together")
	}
	if c.TLS.SelfSigned && c.TLS.CertFile != "" {
		return invalid("tls.self-signed", "tls.self-signed cannot be combined with tls.cert-file")
	}

	roles := c.roles()
	if c.Access.DefaultRole != "" {
		if _, ok := roles[c.Access.DefaultRole]; !ok {
			return invalid("access.default-role", "unknown role %q", c.Access.DefaultRole)
		}
	}
	for subject, role := range c.Access.Subjects {
		if _, ok := roles[role]; !ok {
			return invalid("access.subjects", "subject %s has unknown role %q", subject, role)
		}
	}
	for token, subject := range c.Access.Tokens {
		if strings.TrimSpace(token) == "" {
			return invalid("access.tokens", "empty token for subject %s", subject)
		}
		if prefix, id := access.ParseSubject(subject); prefix == "" || id == "" {
			return invalid("access.tokens", "token subject %q must look like kind:id", subject)
		}
	}
	return nil
}

// StoreOptions returns the options for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      c.Store.Driver,
		DSN:         c.Store.DSN,
		RedisAddr:   c.Store.RedisAddr,
		RedisPrefix: c.Store.RedisPrefix,
	}
}

// LoggingOptions returns the options for logging.Setup.
func (c *Config) LoggingOptions(service, version string) logging.Options {
	return logging.Options{Service: service, Version: version, Format: c.LogFormat, Level: c.LogLevel}
}

// AccessControl builds the role table with every configured assignment.
func (c *Config) AccessControl() (*access.Static, error) {
	var opts []access.StaticOption
	if c.Access.DefaultRole != "" {
		opts = append(opts, access.WithDefaultRole(c.Access.DefaultRole))
	}
	ac, err := access.NewStatic(c.roles(), opts...)
	if err != nil {
		return nil, err
	}
	for subject, role := range c.Access.Subjects {
		if err := ac.Assign(subject, role); err != nil {
			return nil, err
		}
	}
	return ac, nil
}

func (c *Config) roles() map[string][]string {
	if len(c.Access.Roles) == 0 {
		return access.DefaultRoles()
	}
	return c.Access.Roles
}

func invalid(key, format string, args ...any) error {
	return oops.Code(CodeInvalidConfig).With("key", key).Errorf(format, args...)
}
