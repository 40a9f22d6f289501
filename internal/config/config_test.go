// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneforge/sceneforge/internal/access"
	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sceneforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load("", flags(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultMetricsAddr, cfg.MetricsAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultSaveInterval, cfg.SaveInterval)
	assert.Equal(t, store.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, store.DefaultRedisPrefix, cfg.Store.RedisPrefix)
	assert.Equal(t, "user:anonymous", cfg.Access.Anonymous)
}

func TestLoad_FileThenFlags(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := writeFile(t, `
listen-addr: 0.0.0.0:8080
log-format: text
save-interval: 500ms
store:
  driver: redis
  redis-addr: redis:6379
access:
  default-role: viewer
  subjects:
    "user:ada": editor
  tokens:
    secret: "user:ada"
`)

	cfg, err := Load(path, flags(t, "--listen-addr", "127.0.0.1:9999"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr, "explicit flag wins")
	assert.Equal(t, "text", cfg.LogFormat, "file wins over flag default")
	assert.Equal(t, 500*time.Millisecond, cfg.SaveInterval)
	assert.Equal(t, store.DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, store.DefaultRedisPrefix, cfg.Store.RedisPrefix, "flag default fills what the file omits")
	assert.Equal(t, map[string]string{"user:ada": "editor"}, cfg.Access.Subjects)
	assert.Equal(t, map[string]string{"secret": "user:ada"}, cfg.Access.Tokens)

	opts := cfg.StoreOptions()
	assert.Equal(t, store.Options{Driver: "redis", RedisAddr: "redis:6379", RedisPrefix: store.DefaultRedisPrefix}, opts)
}

func TestLoad_DatabaseURLFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sceneforge")
	cfg, err := Load("", flags(t, "--store.driver", "postgres"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/sceneforge", cfg.Store.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), flags(t))
	errutil.AssertErrorCode(t, err, CodeInvalidConfig)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ListenAddr:   DefaultListenAddr,
			LogFormat:    "json",
			LogLevel:     "info",
			SaveInterval: time.Second,
			Store:        Store{Driver: store.DriverMemory},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		key    string
	}{
		{"missing listen addr", func(c *Config) { c.ListenAddr = "" }, "listen-addr"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log-format"},
		{"zero save interval", func(c *Config) { c.SaveInterval = 0 }, "save-interval"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = store.DriverPostgres }, "store.dsn"},
		{"redis without addr", func(c *Config) { c.Store.Driver = store.DriverRedis }, "store.redis-addr"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"unknown default role", func(c *Config) { c.Access.DefaultRole = "owner" }, "access.default-role"},
		{"unknown subject role", func(c *Config) { c.Access.Subjects = map[string]string{"user:ada": "owner"} }, "access.subjects"},
		{"token subject without kind", func(c *Config) { c.Access.Tokens = map[string]string{"t": "ada"} }, "access.tokens"},
		{"cert without key", func(c *Config) { c.TLS.CertFile = "server.crt" }, "tls.cert-file"},
		{"self-signed with cert", func(c *Config) { c.TLS = TLS{CertFile: "a", KeyFile: "b", SelfSigned: true} }, "tls.self-signed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			errutil.AssertErrorCode(t, err, CodeInvalidConfig)
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}

	t.Run("bad log level", func(t *testing.T) {
		c := valid()
		c.LogLevel = "loud"
		errutil.AssertErrorCode(t, c.Validate(), CodeInvalidConfig)
	})

	assert.NoError(t, valid().Validate())
}

func TestLoad_TLSFlags(t *testing.T) {
	cfg, err := Load("", flags(t, "--tls.self-signed", "--tls.hosts", "localhost,10.0.0.5"))
	require.NoError(t, err)
	assert.True(t, cfg.TLS.Enabled())
	assert.Equal(t, []string{"localhost", "10.0.0.5"}, cfg.TLS.Hosts)
}

func TestAccessControl(t *testing.T) {
	c := &Config{Access: Access{
		DefaultRole: "viewer",
		Subjects:    map[string]string{"user:ada": "editor"},
	}}
	ac, err := c.AccessControl()
	require.NoError(t, err)

	ctx := context.Background()
	res := access.Resource("scene", "s1")
	assert.True(t, ac.Check(ctx, "user:ada", access.ActionWrite, res))
	assert.True(t, ac.Check(ctx, "user:bob", access.ActionRead, res))
	assert.False(t, ac.Check(ctx, "user:bob", access.ActionWrite, res))
	assert.Equal(t, "editor", ac.Role("user:ada"))
}

func TestAccessControl_CustomRoles(t *testing.T) {
	c := &Config{Access: Access{
		Roles:    map[string][]string{"scener": {"*:document:scene:*"}},
		Subjects: map[string]string{"user:ada": "scener"},
	}}
	ac, err := c.AccessControl()
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, ac.Check(ctx, "user:ada", access.ActionDelete, access.Resource("scene", "s1")))
	assert.False(t, ac.Check(ctx, "user:ada", access.ActionRead, access.Resource("cubicmodel", "m1")))
}
