package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"techrider/internal/domain"
)

// Config models rider.yml.
type Config struct {
	Show struct {
		Artist string `yaml:"artist"`
		Event  string `yaml:"event"`
	} `yaml:"show"`
	Roles map[domain.Role]RoleConfig `yaml:"roles"`
	Seed  struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"seed"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

type RoleConfig struct {
	DisplayName string `yaml:"display_name"`
}

// DisplayNames maps each role to the author name written into event logs.
func (c *Config) DisplayNames() map[domain.Role]string {
	names := map[domain.Role]string{}
	for role, rc := range c.Roles {
		if rc.DisplayName != "" {
			names[role] = rc.DisplayName
		}
	}
	return names
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with rider config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Show.Artist) == "" {
		return fmt.Errorf("config.show.artist is required")
	}
	for role, rc := range c.Roles {
		if !role.Valid() {
			return fmt.Errorf("config.roles has unknown role %s", role)
		}
		if strings.TrimSpace(rc.DisplayName) == "" {
			return fmt.Errorf("config.roles.%s.display_name is empty", role)
		}
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("config.redis.url must be a redis:// or rediss:// url")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config.log.level %q is not supported", c.Log.Level)
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "rider.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from
// data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `show:
  artist: "Afke Flaviana"
  event: "The Spoken Quintet Tour"

roles:
  BAND:
    display_name: Band
  ENGINEER:
    display_name: Engineer

seed:
  enabled: true

redis:
  url: ""

server:
  addr: 127.0.0.1:8080
  base_path: /v0

log:
  level: info
`
