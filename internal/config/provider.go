package config

import (
	"fmt"
	"os"
)

// ProviderConfig holds the DNS provider type and provider-specific
// connection settings.
type ProviderConfig struct {
	Provider string            `yaml:"provider"`
	Settings map[string]string `yaml:"settings"`
}

// Environment variables that override provider settings and the record name.
const (
	EnvAPIToken = "CF_API_KEY"
	EnvZoneID   = "CF_ZONE_YID"
	EnvDNSName  = "CF_DNS_NAME"
)

// resolve expands ${ENV_VAR} references in setting values and applies the
// CF_API_KEY / CF_ZONE_YID overrides.
func (p *ProviderConfig) resolve() {
	if p.Settings == nil {
		p.Settings = make(map[string]string)
	}
	for k, v := range p.Settings {
		p.Settings[k] = os.ExpandEnv(v)
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		p.Settings["api_token"] = v
	}
	if v := os.Getenv(EnvZoneID); v != "" {
		p.Settings["zone_id"] = v
	}
}

func (p *ProviderConfig) validate() error {
	if p.Provider == "" {
		return fmt.Errorf("provider config: missing required field 'provider'")
	}
	return nil
}
