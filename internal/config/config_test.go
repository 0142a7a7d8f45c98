package config

import (
	"os"
	"path/filepath"
	"testing"

	"comicloader/internal/core/types"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff(types.DefaultConfig(), *cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comicloader.yaml")
	data := `
debug: true
cache:
  page_dir: /srv/pages
thumbnail:
  width: 240
  max_decode: 32MiB
warm:
  rate: 2.5
sources:
  rate_limit: 2MiB
  s3:
    region: eu-west-1
  http:
    headers:
      Authorization: Bearer x
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	defaults := types.DefaultConfig()

	want := defaults
	want.Debug = true
	want.Cache.PageDir = "/srv/pages"
	want.Thumbnail.Width = 240
	want.Thumbnail.MaxDecode = 32 * 1024 * 1024
	want.Warm.Rate = 2.5
	want.Sources.S3.Region = "eu-west-1"
	want.Sources.RateLimit = 2 * 1024 * 1024
	want.Sources.HTTP.Headers = map[string]string{"Authorization": "Bearer x"}
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Errorf("merged config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("thumbnail: [unclosed"), 0o644)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadConfigOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	created, err := LoadConfigOrCreate(path)
	if err != nil {
		t.Fatalf("LoadConfigOrCreate() error = %v", err)
	}
	if !fileExists(path) {
		t.Fatal("config file was not written")
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff(created, reloaded); diff != "" {
		t.Errorf("written config does not load back (-want +got):\n%s", diff)
	}
}

func TestResolveConfigPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "explicit.yaml")
	if got := ResolveConfigPath(abs); got != abs {
		t.Errorf("ResolveConfigPath(%s) = %s", abs, got)
	}
}
