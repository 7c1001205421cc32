package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinSessionSecretLen es el largo mínimo del secreto de sesión en prod.
const MinSessionSecretLen = 32

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Auth struct {
		PathPrefix            string   `yaml:"path_prefix"`
		FailureRoute          bool     `yaml:"failure_route"`
		RedirectAfterCallback string   `yaml:"redirect_after_callback"`
		RedirectToOrigin      bool     `yaml:"redirect_to_origin"`
		OriginHint            bool     `yaml:"origin_hint"`
		DefaultScope          string   `yaml:"default_scope"`
		MaxScopeLength        int      `yaml:"max_scope_length"`
		Providers             []string `yaml:"providers"`
		// ProviderOptions se pasa tal cual a la factory de cada provider.
		ProviderOptions map[string]map[string]string `yaml:"provider_options"`
	} `yaml:"auth"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Secret     string `yaml:"secret"`
		TTL        string `yaml:"ttl"`
		Secure     bool   `yaml:"secure"`
		SameSite   string `yaml:"same_site"`
		Domain     string `yaml:"domain"`

		// SecretGenerated indica que Load generó un secreto efímero (solo fuera de prod).
		SecretGenerated bool `yaml:"-"`
	} `yaml:"session"`

	Cache struct {
		Kind   string `yaml:"kind"`
		Memory struct {
			DefaultTTL      string `yaml:"default_ttl"`
			CleanupInterval string `yaml:"cleanup_interval"`
		} `yaml:"memory"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Default devuelve la configuración base. Load la usa como punto de partida
// para que los campos ausentes en el YAML conserven su default.
func Default() *Config {
	var c Config
	c.App.Env = "dev"
	c.Log.Level = "info"

	c.Server.Addr = ":8080"
	c.Server.ReadTimeout = "10s"
	c.Server.WriteTimeout = "15s"
	c.Server.ShutdownTimeout = "10s"

	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	c.Auth.PathPrefix = "/auth"
	c.Auth.FailureRoute = true
	c.Auth.RedirectAfterCallback = "/"
	c.Auth.RedirectToOrigin = true
	c.Auth.OriginHint = true
	c.Auth.DefaultScope = "user"
	c.Auth.MaxScopeLength = 100
	c.Auth.Providers = []string{"developer"}

	c.Session.CookieName = "sid"
	c.Session.TTL = "12h"
	c.Session.SameSite = "Lax"

	c.Cache.Kind = "memory"
	c.Cache.Memory.DefaultTTL = "12h"
	c.Cache.Memory.CleanupInterval = "10m"
	c.Cache.Redis.Prefix = "socialgate"
	return &c
}

// Load lee path (vacío = solo defaults), aplica env overrides y valida.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()

	if c.Session.Secret == "" && c.App.Env != "prod" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		c.Session.Secret = secret
		c.Session.SecretGenerated = true
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func randomSecret() (string, error) {
	var b [MinSessionSecretLen]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("config: generate session secret: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_PATH_PREFIX"); ok {
		c.Auth.PathPrefix = v
	}
	if v, ok := getEnvStr("AUTH_REDIRECT_AFTER_CALLBACK"); ok {
		c.Auth.RedirectAfterCallback = v
	}
	if v, ok := getEnvCSV("AUTH_PROVIDERS"); ok {
		c.Auth.Providers = v
	}

	// SESSION
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		c.Session.Secure = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
}

// Validate revisa valores críticos. Los errores se acumulan con errors.Join.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("config: "+format, args...))
	}

	switch c.App.Env {
	case "dev", "staging", "prod":
	default:
		add("app.env %q must be dev, staging or prod", c.App.Env)
	}

	for name, v := range map[string]string{
		"server.read_timeout":           c.Server.ReadTimeout,
		"server.write_timeout":          c.Server.WriteTimeout,
		"server.shutdown_timeout":       c.Server.ShutdownTimeout,
		"session.ttl":                   c.Session.TTL,
		"cache.memory.default_ttl":      c.Cache.Memory.DefaultTTL,
		"cache.memory.cleanup_interval": c.Cache.Memory.CleanupInterval,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			add("%s: %v", name, err)
		}
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path %q must start with /", c.Metrics.Path)
	}
	if !strings.HasPrefix(c.Auth.PathPrefix, "/") || strings.Trim(c.Auth.PathPrefix, "/") == "" {
		add("auth.path_prefix %q must be a non-root absolute path", c.Auth.PathPrefix)
	}
	if !strings.HasPrefix(c.Auth.RedirectAfterCallback, "/") || strings.HasPrefix(c.Auth.RedirectAfterCallback, "//") {
		add("auth.redirect_after_callback %q must be a local path", c.Auth.RedirectAfterCallback)
	}
	if c.Auth.DefaultScope == "" {
		add("auth.default_scope is required")
	}
	if c.Auth.MaxScopeLength <= 0 {
		add("auth.max_scope_length must be positive")
	} else if len(c.Auth.DefaultScope) > c.Auth.MaxScopeLength {
		add("auth.default_scope is longer than auth.max_scope_length")
	}
	for _, p := range c.Auth.Providers {
		if p == "" || strings.ContainsAny(p, "/?#") {
			add("auth.providers: invalid id %q", p)
		}
	}

	switch strings.ToLower(c.Session.SameSite) {
	case "lax", "strict", "none":
	default:
		add("session.same_site %q must be Lax, Strict or None", c.Session.SameSite)
	}
	if strings.EqualFold(c.Session.SameSite, "none") && !c.Session.Secure {
		add("session.same_site None requires session.secure")
	}
	if c.App.Env == "prod" && len(c.Session.Secret) < MinSessionSecretLen {
		add("session.secret must be at least %d bytes in prod", MinSessionSecretLen)
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			add("cache.redis.addr is required when cache.kind is redis")
		}
	default:
		add("cache.kind %q must be memory or redis", c.Cache.Kind)
	}

	return errors.Join(errs...)
}

// Dur parsea una duración ya validada; devuelve def si está vacía o es inválida.
func Dur(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}
