package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
web:
  api_secret: "secret"
backend:
  base_url: "http://localhost:9000"
`

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, minimalConfig), true)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Web.Port != 8080 || cfg.Web.TokenTTL != 30*time.Minute {
		t.Errorf("web defaults not applied: %+v", cfg.Web)
	}
	if cfg.Web.RateLimit != 10 || cfg.Web.RateWindow != time.Minute {
		t.Errorf("rate defaults not applied: %+v", cfg.Web)
	}
	if cfg.Backend.Timeout != 15*time.Second || cfg.Backend.Currency != "XOF" {
		t.Errorf("backend defaults not applied: %+v", cfg.Backend)
	}
	if cfg.Redis.TTL != 15*time.Minute {
		t.Errorf("redis ttl default not applied: %v", cfg.Redis.TTL)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults not applied: %+v", cfg.Log)
	}
	if !cfg.Runtime.Dev {
		t.Errorf("dev flag not carried")
	}
}

func TestLoadConfig_ServiceRules(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
services:
  - slug: electricite-cashpower
    identifier_pattern: "^[0-9]{6,10}$"
    min_amount: 1000
    channels: ["Airtel Money", "Orange Money"]
  - slug: impots
    pin_length: 5
`), false)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	rules := cfg.ServiceRules()
	elec, ok := rules["electricite-cashpower"]
	if !ok {
		t.Fatalf("missing electricite-cashpower rules")
	}
	if elec.MinAmount != 1000 || elec.PINLength != 4 || len(elec.Channels) != 2 {
		t.Errorf("explicit and defaulted fields mixed wrong: %+v", elec)
	}
	if !elec.MatchIdentifier("12345678") || elec.MatchIdentifier("abc") {
		t.Errorf("identifier pattern not applied")
	}

	tax := rules["impots"]
	if tax.PINLength != 5 || tax.MinAmount != 1 {
		t.Errorf("partial entry must inherit defaults: %+v", tax)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"missing backend url", `
web:
  api_secret: "secret"
`},
		{"missing api secret", `
backend:
  base_url: "http://localhost:9000"
`},
		{"service without slug", minimalConfig + `
services:
  - min_amount: 100
`},
		{"bad identifier pattern", minimalConfig + `
services:
  - slug: eau
    identifier_pattern: "(["
`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, c.body), false); err == nil {
				t.Fatalf("expected a load error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
