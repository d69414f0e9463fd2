package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fwlog.yml")
	raw := `fwlog:
  directory:
    path: /etc/fwlog/devices.yml
  retrieval:
    workers: 8
    poll_interval: 500ms
  normalize:
    extra_aliases:
      traffic:
        src: [client_addr]
  logging:
    enabled: true
    level: debug
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ApplyDefaults(cfg)

	c := cfg.FWLog
	if c.Directory.Path != "/etc/fwlog/devices.yml" {
		t.Fatalf("unexpected directory path %q", c.Directory.Path)
	}
	if c.Retrieval.Workers != 8 {
		t.Fatalf("expected explicit workers to survive defaults, got %d", c.Retrieval.Workers)
	}
	if c.Retrieval.PollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval %v", c.Retrieval.PollInterval)
	}
	if c.Retrieval.Deadline != 20*time.Second {
		t.Fatalf("expected default deadline 20s, got %v", c.Retrieval.Deadline)
	}
	if c.Retrieval.PageSize != 100 {
		t.Fatalf("expected default page size 100, got %d", c.Retrieval.PageSize)
	}
	if got := c.Normalize.ExtraAliases.Traffic["src"]; len(got) != 1 || got[0] != "client_addr" {
		t.Fatalf("unexpected extra aliases %v", got)
	}
	if c.Queue.Redis.Key != "fwlog:queries" {
		t.Fatalf("unexpected queue key %q", c.Queue.Redis.Key)
	}
	if c.API.Listen != ":8080" || len(c.API.CORSOrigins) != 1 || c.API.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected api defaults %+v", c.API)
	}
	if c.Logging.Level != "debug" {
		t.Fatalf("unexpected level %q", c.Logging.Level)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFindConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	if err := os.WriteFile(path, []byte("fwlog: {}\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if got := FindConfigFile(path); got != path {
		t.Fatalf("expected explicit path, got %q", got)
	}
	if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yml")); got != DefaultFileName {
		t.Fatalf("expected fallback %q, got %q", DefaultFileName, got)
	}
}
