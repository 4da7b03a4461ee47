package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		MetricsAddr        string   `yaml:"metrics_addr"`
		BaseURL            string   `yaml:"base_url"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		Migrate bool `yaml:"migrate"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`  // default 20m (1200s)
		RefreshTTL string `yaml:"refresh_ttl"` // default 720h (30d)
		CodeTTL    string `yaml:"code_ttl"`    // default 5m
	} `yaml:"jwt"`

	Login struct {
		// Whitelist estática del operador para redirects post-login.
		RedirectWhitelist []string `yaml:"redirect_whitelist"`
		// MockGoogleAuth saltea el round-trip con Google (solo dev/test).
		MockGoogleAuth bool   `yaml:"mock_google_auth"`
		MockGoogleUser string `yaml:"mock_google_user"`
	} `yaml:"login"`

	Providers struct {
		Google struct {
			Enabled      bool     `yaml:"enabled"`
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			RedirectURL  string   `yaml:"redirect_url"` // vacío => <base_url>/login/google/callback
			Scopes       []string `yaml:"scopes"`       // default: openid,email,profile
		} `yaml:"google"`
	} `yaml:"providers"`

	Admin struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"admin"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9100"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = c.Server.BaseURL
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "20m" // 1200s
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.JWT.CodeTTL == "" {
		c.JWT.CodeTTL = "5m"
	}
	if c.Login.MockGoogleUser == "" {
		c.Login.MockGoogleUser = "test@example.com"
	}
	if len(c.Providers.Google.Scopes) == 0 {
		c.Providers.Google.Scopes = []string{"openid", "email", "profile"}
	}
	if c.Providers.Google.RedirectURL == "" {
		c.Providers.Google.RedirectURL = strings.TrimRight(c.Server.BaseURL, "/") + "/login/google/callback"
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvBool(key string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func getEnvCSV(key string) ([]string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil, false
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides pisa el YAML con variables GATEJOHN_* (secrets y deploy).
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("GATEJOHN_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("GATEJOHN_BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := getEnvStr("GATEJOHN_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("GATEJOHN_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("GATEJOHN_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("GATEJOHN_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("GATEJOHN_JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvCSV("GATEJOHN_LOGIN_REDIRECT_WHITELIST"); ok {
		c.Login.RedirectWhitelist = v
	}
	if v, ok := getEnvBool("GATEJOHN_MOCK_GOOGLE_AUTH"); ok {
		c.Login.MockGoogleAuth = v
	}
	if v, ok := getEnvStr("GATEJOHN_GOOGLE_CLIENT_ID"); ok {
		c.Providers.Google.ClientID = v
		c.Providers.Google.Enabled = true
	}
	if v, ok := getEnvStr("GATEJOHN_GOOGLE_CLIENT_SECRET"); ok {
		c.Providers.Google.ClientSecret = v
	}
	if v, ok := getEnvStr("GATEJOHN_ADMIN_API_KEY"); ok {
		c.Admin.APIKey = v
	}
}

// AccessTTLDuration parsea el TTL de access/id tokens.
func (c *Config) AccessTTLDuration() time.Duration { return mustDur(c.JWT.AccessTTL, 20*time.Minute) }

// RefreshTTLDuration parsea el TTL de refresh tokens.
func (c *Config) RefreshTTLDuration() time.Duration { return mustDur(c.JWT.RefreshTTL, 720*time.Hour) }

// CodeTTLDuration parsea el TTL de authorization codes.
func (c *Config) CodeTTLDuration() time.Duration { return mustDur(c.JWT.CodeTTL, 5*time.Minute) }

func mustDur(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) Validate() error {
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn requerido con driver postgres")
	}
	if _, err := time.ParseDuration(c.JWT.AccessTTL); err != nil {
		return fmt.Errorf("config: jwt.access_ttl inválido: %w", err)
	}
	if _, err := time.ParseDuration(c.JWT.RefreshTTL); err != nil {
		return fmt.Errorf("config: jwt.refresh_ttl inválido: %w", err)
	}
	if c.Providers.Google.Enabled && !c.Login.MockGoogleAuth && c.Providers.Google.ClientID == "" {
		return fmt.Errorf("config: providers.google.client_id requerido con google habilitado")
	}
	return nil
}
