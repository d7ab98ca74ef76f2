package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("CHAPTER_DELAY_MS", "")
	t.Setenv("PROXY_CONFIG_PATH", "")
	t.Setenv("SCRAPERAPI_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StorageLocal {
		t.Fatalf("expected local storage, got %s", cfg.Storage.Driver)
	}
	if cfg.ChapterDelay != time.Second {
		t.Fatalf("expected 1s chapter delay, got %s", cfg.ChapterDelay)
	}
	if cfg.HTTPTimeout != 60*time.Second {
		t.Fatalf("expected 60s timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.RehostRatePerSecond != 4 {
		t.Fatalf("expected rehost rate 4, got %v", cfg.RehostRatePerSecond)
	}
	if len(cfg.ProxyKeys()) != 0 {
		t.Fatalf("expected no proxy keys, got %v", cfg.ProxyKeys())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("LOG_LEVEL", "LOUD")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid log level error")
	}

	t.Setenv("LOG_LEVEL", "INFO")
	t.Setenv("STORAGE_DRIVER", "r2")
	t.Setenv("R2_ENDPOINT", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected r2 without credentials to fail")
	}
}

func TestProxyFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)
	path := filepath.Join(dir, "proxies.yaml")
	content := `
providers:
  scrapedo:
    key: file-token
    base_url: http://localhost:9000/
  ScraperAPI:
    key: file-key
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write proxy file: %v", err)
	}

	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("STORAGE_DRIVER", "local")
	t.Setenv("PROXY_CONFIG_PATH", path)
	t.Setenv("SCRAPERAPI_KEY", "env-key")
	t.Setenv("SCRAPINGANT_KEY", "ant")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	keys := cfg.ProxyKeys()
	if keys["scrapedo"] != "file-token" {
		t.Fatalf("expected file token, got %q", keys["scrapedo"])
	}
	if keys["scraperapi"] != "env-key" {
		t.Fatalf("expected env to win, got %q", keys["scraperapi"])
	}
	if keys["scrapingant"] != "ant" {
		t.Fatalf("expected env-only key, got %q", keys["scrapingant"])
	}
	if cfg.ProxyBaseURLs()["scrapedo"] != "http://localhost:9000/" {
		t.Fatalf("unexpected base url %q", cfg.ProxyBaseURLs()["scrapedo"])
	}
}

func TestLoadProxyFileRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.yaml")
	if err := os.WriteFile(path, []byte("providers: [unterminated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadProxyFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

// chdirForTest changes the working directory for the duration of the test
// and restores it on cleanup (equivalent to testing.T.Chdir on Go 1.24+).
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	})
}
