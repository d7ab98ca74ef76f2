package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProxySettings overrides one proxy provider. Empty fields keep the
// built-in value.
type ProxySettings struct {
	Key     string `yaml:"key"`
	BaseURL string `yaml:"base_url"`
}

type proxyFile struct {
	Providers map[string]ProxySettings `yaml:"providers"`
}

var proxyEnvKeys = map[string]string{
	"scraperapi":  "SCRAPERAPI_KEY",
	"scrapedo":    "SCRAPEDO_TOKEN",
	"scrapingant": "SCRAPINGANT_KEY",
	"abstractapi": "ABSTRACTAPI_KEY",
	"proxyscrape": "PROXYSCRAPE_AUTH",
}

// LoadProxyFile reads provider keys and endpoints from a YAML file shaped
// like:
//
//	providers:
//	  scrapedo:
//	    key: xxx
//	    base_url: https://api.scrape.do
//
// A missing file yields an empty map.
func LoadProxyFile(path string) (map[string]ProxySettings, error) {
	out := map[string]ProxySettings{}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return out, nil
	}

	content, err := os.ReadFile(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read proxy config: %w", err)
	}

	var file proxyFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse proxy config %s: %w", trimmed, err)
	}

	for id, settings := range file.Providers {
		out[strings.ToLower(strings.TrimSpace(id))] = ProxySettings{
			Key:     strings.TrimSpace(settings.Key),
			BaseURL: strings.TrimSpace(settings.BaseURL),
		}
	}
	return out, nil
}

// mergeProxyEnv lets environment variables win over the YAML file.
func mergeProxyEnv(settings map[string]ProxySettings) map[string]ProxySettings {
	for id, envKey := range proxyEnvKeys {
		value := strings.TrimSpace(os.Getenv(envKey))
		if value == "" {
			continue
		}
		current := settings[id]
		current.Key = value
		settings[id] = current
	}
	return settings
}

func (c Config) ProxyKeys() map[string]string {
	out := make(map[string]string, len(c.Proxies))
	for id, settings := range c.Proxies {
		if settings.Key != "" {
			out[id] = settings.Key
		}
	}
	return out
}

func (c Config) ProxyBaseURLs() map[string]string {
	out := make(map[string]string, len(c.Proxies))
	for id, settings := range c.Proxies {
		if settings.BaseURL != "" {
			out[id] = settings.BaseURL
		}
	}
	return out
}
