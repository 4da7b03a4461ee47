package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Errorf("addr = %q", c.Server.Addr)
	}
	if c.Storage.Driver != "memory" {
		t.Errorf("driver = %q", c.Storage.Driver)
	}
	if c.Cache.Kind != "memory" {
		t.Errorf("cache = %q", c.Cache.Kind)
	}
	if c.JWT.Issuer != c.Server.BaseURL {
		t.Errorf("issuer should default to base_url, got %q", c.JWT.Issuer)
	}
	if got := c.AccessTTLDuration(); got != 20*time.Minute {
		t.Errorf("access ttl = %v", got)
	}
	if got := c.RefreshTTLDuration(); got != 720*time.Hour {
		t.Errorf("refresh ttl = %v", got)
	}
	if got := c.CodeTTLDuration(); got != 5*time.Minute {
		t.Errorf("code ttl = %v", got)
	}
	if c.Providers.Google.RedirectURL != "http://localhost:8080/login/google/callback" {
		t.Errorf("google redirect = %q", c.Providers.Google.RedirectURL)
	}
}

func TestLoadFromYAML(t *testing.T) {
	p := writeConfig(t, `
server:
  addr: ":9000"
  base_url: "https://idp.example.com"
jwt:
  access_ttl: "10m"
login:
  redirect_whitelist:
    - "https://portal.example.com"
  mock_google_auth: true
admin:
  api_key: "k-123"
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":9000" {
		t.Errorf("addr = %q", c.Server.Addr)
	}
	if c.JWT.Issuer != "https://idp.example.com" {
		t.Errorf("issuer = %q", c.JWT.Issuer)
	}
	if c.AccessTTLDuration() != 10*time.Minute {
		t.Errorf("access ttl = %v", c.AccessTTLDuration())
	}
	if len(c.Login.RedirectWhitelist) != 1 {
		t.Errorf("whitelist = %v", c.Login.RedirectWhitelist)
	}
	if !c.Login.MockGoogleAuth {
		t.Error("mock_google_auth should be true")
	}
	if c.Admin.APIKey != "k-123" {
		t.Errorf("api key = %q", c.Admin.APIKey)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GATEJOHN_ADDR", ":7777")
	t.Setenv("GATEJOHN_JWT_ISSUER", "https://env.example.com")
	t.Setenv("GATEJOHN_LOGIN_REDIRECT_WHITELIST", "https://a.example.com, https://b.example.com")
	t.Setenv("GATEJOHN_ADMIN_API_KEY", "env-key")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":7777" {
		t.Errorf("addr = %q", c.Server.Addr)
	}
	if c.JWT.Issuer != "https://env.example.com" {
		t.Errorf("issuer = %q", c.JWT.Issuer)
	}
	if len(c.Login.RedirectWhitelist) != 2 || c.Login.RedirectWhitelist[1] != "https://b.example.com" {
		t.Errorf("whitelist = %v", c.Login.RedirectWhitelist)
	}
	if c.Admin.APIKey != "env-key" {
		t.Errorf("api key = %q", c.Admin.APIKey)
	}
}

func TestGoogleClientIDEnvEnablesProvider(t *testing.T) {
	t.Setenv("GATEJOHN_GOOGLE_CLIENT_ID", "gid-123")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Providers.Google.Enabled {
		t.Error("google should be enabled when client id comes from env")
	}
	if c.Providers.Google.ClientID != "gid-123" {
		t.Errorf("client id = %q", c.Providers.Google.ClientID)
	}
}

func TestValidateFailures(t *testing.T) {
	if _, err := Load(writeConfig(t, "storage:\n  driver: postgres\n")); err == nil {
		t.Error("postgres without dsn should fail")
	}
	if _, err := Load(writeConfig(t, "jwt:\n  access_ttl: \"not-a-duration\"\n")); err == nil {
		t.Error("bad access_ttl should fail")
	}
	if _, err := Load(writeConfig(t, "providers:\n  google:\n    enabled: true\n")); err == nil {
		t.Error("google enabled without client id should fail")
	}
}

func TestBadTTLFallsBackToDefault(t *testing.T) {
	c := &Config{}
	c.JWT.AccessTTL = "garbage"
	if got := c.AccessTTLDuration(); got != 20*time.Minute {
		t.Errorf("fallback = %v", got)
	}
}
