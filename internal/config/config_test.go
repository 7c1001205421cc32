package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsOnly(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "/auth", c.Auth.PathPrefix)
	assert.True(t, c.Auth.FailureRoute)
	assert.True(t, c.Auth.OriginHint)
	assert.Equal(t, 100, c.Auth.MaxScopeLength)
	assert.Equal(t, []string{"developer"}, c.Auth.Providers)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.True(t, c.Session.SecretGenerated)
	assert.Len(t, c.Session.Secret, 2*MinSessionSecretLen)
}

func TestLoad_YAMLKeepsUnsetDefaults(t *testing.T) {
	p := writeYAML(t, `
auth:
  path_prefix: /sso
  failure_route: false
  providers: [developer, facebook]
  provider_options:
    developer:
      fields: name,nickname
      uid_field: nickname
session:
  secret: "0123456789abcdef0123456789abcdef"
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "/sso", c.Auth.PathPrefix)
	assert.False(t, c.Auth.FailureRoute)
	assert.True(t, c.Auth.OriginHint, "unset keys keep their default")
	assert.Equal(t, []string{"developer", "facebook"}, c.Auth.Providers)
	assert.Equal(t, map[string]string{"fields": "name,nickname", "uid_field": "nickname"}, c.Auth.ProviderOptions["developer"])
	assert.Nil(t, c.Auth.ProviderOptions["facebook"])
	assert.False(t, c.Session.SecretGenerated)
	assert.Equal(t, "12h", c.Session.TTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("AUTH_PATH_PREFIX", "/login")
	t.Setenv("AUTH_PROVIDERS", "developer, github ,")
	t.Setenv("CACHE_KIND", "REDIS")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.Server.Addr)
	assert.Equal(t, "/login", c.Auth.PathPrefix)
	assert.Equal(t, []string{"developer", "github"}, c.Auth.Providers)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, 3, c.Cache.Redis.DB)
}

func TestLoad_ProdRequiresStrongSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.secret")

	t.Setenv("SESSION_SECRET", strings.Repeat("k", MinSessionSecretLen))
	c, err := Load("")
	require.NoError(t, err)
	assert.False(t, c.Session.SecretGenerated)
}

func TestValidate_CollectsErrors(t *testing.T) {
	c := Default()
	c.App.Env = "qa"
	c.Server.ReadTimeout = "soon"
	c.Auth.PathPrefix = "/"
	c.Auth.RedirectAfterCallback = "//evil.example"
	c.Auth.Providers = []string{"a/b"}
	c.Session.SameSite = "None"
	c.Cache.Kind = "redis"

	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"app.env", "server.read_timeout", "auth.path_prefix", "auth.redirect_after_callback",
		"auth.providers", "session.secure", "cache.redis.addr",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_BadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeYAML(t, "auth: [unclosed"))
	assert.Error(t, err)
}

func TestDur(t *testing.T) {
	assert.Equal(t, 5*time.Second, Dur("5s", time.Minute))
	assert.Equal(t, time.Minute, Dur("", time.Minute))
}
