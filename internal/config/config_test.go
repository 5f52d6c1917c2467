package config

import (
	"os"
	"path/filepath"
	"testing"

	"techrider/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Show.Artist != "Afke Flaviana" || !cfg.Seed.Enabled || cfg.Server.BasePath != "/v0" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	names := cfg.DisplayNames()
	if names[domain.RoleBand] != "Band" || names[domain.RoleEngineer] != "Engineer" {
		t.Fatalf("unexpected display names: %v", names)
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("show:\n  artist: Lester\nroles:\n  BAND:\n    display_name: Lester\nseed:\n  enabled: false\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Show.Artist != "Lester" || cfg.Seed.Enabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Show.Event != "The Spoken Quintet Tour" {
		t.Fatalf("default event lost: %q", cfg.Show.Event)
	}
	if cfg.DisplayNames()[domain.RoleBand] != "Lester" {
		t.Fatalf("display name not applied")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown role":  "roles:\n  VENUE:\n    display_name: Venue\n",
		"blank artist":  "show:\n  artist: \"\"\n",
		"bad base path": "server:\n  base_path: v0\n",
		"bad redis url": "redis:\n  url: localhost:6379\n",
		"bad log level": "log:\n  level: loud\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("expected defaults for missing file: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected Load to fail without a file")
	}
	if err := os.WriteFile(filepath.Join(dir, "rider.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load generated default: %v", err)
	}
}
