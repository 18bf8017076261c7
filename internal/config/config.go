package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/yuriy-kovalchuk/geo-dns-sync/internal/controller"
)

// Defaults used when neither the config file nor the environment sets a value.
const (
	DefaultSourceURL    = "https://raw.githubusercontent.com/ymyuuu/IPDB/main/bestproxy.txt"
	DefaultLocalPath    = "CloudflareST/sgcs.txt"
	DefaultGeoBackend   = "maxmind"
	DefaultGeoDatabase  = "GeoLite2-Country.mmdb"
	DefaultCountry      = "SG"
	DefaultArtifactPath = "sgfd_ips.txt"
	DefaultProvider     = "cloudflare"
	DefaultTimeout      = 30 * time.Second
)

// Config is the complete configuration of one sync run.
type Config struct {
	Sources  SourcesConfig  `yaml:"sources"`
	Geo      GeoConfig      `yaml:"geo"`
	Artifact ArtifactConfig `yaml:"artifact"`
	Record   RecordConfig   `yaml:"record"`
	DNS      ProviderConfig `yaml:"dns"`
}

// SourcesConfig lists where candidate addresses come from.
type SourcesConfig struct {
	URLs      []string `yaml:"urls"`
	LocalPath string   `yaml:"local_path"`
	Timeout   Duration `yaml:"timeout"`
}

// GeoConfig selects the offline geolocation database and target country.
type GeoConfig struct {
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	Country      string `yaml:"country"`
}

// ArtifactConfig sets where the filtered address list is written.
type ArtifactConfig struct {
	Path string `yaml:"path"`
}

// RecordConfig describes the records created for every surviving address.
type RecordConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	TTL     int    `yaml:"ttl"`
	Proxied bool   `yaml:"proxied"`
	Comment string `yaml:"comment"`
}

// Duration is a time.Duration written as a Go duration string ("30s") in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration the tool runs with when no file is given.
func Default() *Config {
	return &Config{
		Sources: SourcesConfig{
			URLs:      []string{DefaultSourceURL},
			LocalPath: DefaultLocalPath,
			Timeout:   Duration{DefaultTimeout},
		},
		Geo: GeoConfig{
			Backend:      DefaultGeoBackend,
			DatabasePath: DefaultGeoDatabase,
			Country:      DefaultCountry,
		},
		Artifact: ArtifactConfig{Path: DefaultArtifactPath},
		Record: RecordConfig{
			Type: controller.DefaultRecordType,
			TTL:  controller.DefaultTTL,
		},
		DNS: ProviderConfig{Provider: DefaultProvider},
	}
}

// LoadFromPath overlays the YAML file at path on top of the defaults (an
// empty path keeps the defaults), applies environment overrides and
// validates the result.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.DNS.resolve()
	if v := os.Getenv(EnvDNSName); v != "" {
		cfg.Record.Name = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every field a run needs is set.
func (c *Config) Validate() error {
	if len(c.Sources.URLs) == 0 && c.Sources.LocalPath == "" {
		return fmt.Errorf("config: at least one of 'sources.urls' or 'sources.local_path' is required")
	}
	if c.Sources.Timeout.Duration < 0 {
		return fmt.Errorf("config: 'sources.timeout' must not be negative")
	}
	if c.Geo.Backend == "" {
		return fmt.Errorf("config: missing required field 'geo.backend'")
	}
	if c.Geo.DatabasePath == "" {
		return fmt.Errorf("config: missing required field 'geo.database_path'")
	}
	if len(c.Geo.Country) != 2 {
		return fmt.Errorf("config: 'geo.country' must be a two-letter ISO code, got %q", c.Geo.Country)
	}
	if c.Artifact.Path == "" {
		return fmt.Errorf("config: missing required field 'artifact.path'")
	}
	if c.Record.Name == "" {
		return fmt.Errorf("config: missing required field 'record.name' (or %s)", EnvDNSName)
	}
	if c.Record.Type == "" {
		return fmt.Errorf("config: missing required field 'record.type'")
	}
	if c.Record.TTL < 1 {
		return fmt.Errorf("config: 'record.ttl' must be at least 1, got %d", c.Record.TTL)
	}
	return c.DNS.validate()
}
